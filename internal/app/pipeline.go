package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/logger"
	"github.com/ayusman/natya/internal/plugin"
	"github.com/ayusman/natya/internal/recognition"
	"github.com/ayusman/natya/internal/store"
)

// Result outcomes stored per episode.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// handleEvent runs on the coordinator's dispatcher goroutine, in event order.
func (a *App) handleEvent(e recognition.Event) {
	switch e.Kind {
	case recognition.EpisodeStarted:
		a.armTimeout(e.EpisodeID)
	case recognition.RecognitionSucceeded:
		a.disarmTimeout()
		if e.Result == nil {
			return
		}
		a.log.Info(a.ctx, "gesture recognized",
			logger.String("gesture", e.Result.Gesture),
			logger.String("metric", e.Result.Metric.String()),
			logger.Float64("aggregate", e.Result.Aggregate))
		a.saveResult(e)
		a.recognized(e.Result.Gesture)
		a.runActions(e.Result)
	case recognition.RecognitionFailed:
		a.disarmTimeout()
		if e.Failure != nil {
			a.log.Info(a.ctx, "recognition failed", logger.String("reason", string(e.Failure.Reason)))
		}
		a.saveResult(e)
	}
}

// armTimeout abandons the episode if it is still active after the configured
// timeout.
func (a *App) armTimeout(episodeID string) {
	if a.config.EpisodeTimeout <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.config.EpisodeTimeout, func() {
		a.log.Info(a.ctx, "episode timed out", logger.String("episode", episodeID))
		a.coordinator.Abandon(a.ctx, episodeID)
	})
}

func (a *App) disarmTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *App) recognized(name string) {
	a.mu.Lock()
	a.lastGesture = name
	callbacks := append([]func(string){}, a.callbacks...)
	a.mu.Unlock()

	for _, fn := range callbacks {
		fn(name)
	}
}

// saveResult persists the outcome of a resolved episode.
func (a *App) saveResult(e recognition.Event) {
	if a.config.Store == nil {
		return
	}

	res := &store.Result{
		ID:        uuid.New().String(),
		EpisodeID: e.EpisodeID,
		CreatedAt: e.Time,
	}
	switch {
	case e.Result != nil:
		res.Outcome = OutcomeSuccess
		res.GestureName = e.Result.Gesture
		res.Tier = e.Result.Tier
		res.Metric = e.Result.Metric.String()
		res.Aggregate = e.Result.Aggregate
		res.Scores = map[string]map[string]float64{
			recognition.Euclidean.String(): channelScores(e.Result.Euclidean),
		}
		if len(e.Result.DTW) > 0 {
			res.Scores[recognition.DTW.String()] = channelScores(e.Result.DTW)
		}
	case e.Failure != nil:
		res.Outcome = OutcomeFailure
		res.Reason = string(e.Failure.Reason)
		res.GestureName = e.Failure.Gesture
	default:
		return
	}

	if err := a.config.Store.Results().Create(res); err != nil {
		a.log.Error(a.ctx, "failed to save result", logger.String("episode", e.EpisodeID), logger.Error(err))
	}
}

func channelScores(scores map[gesture.Channel]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	for ch, v := range scores {
		out[ch.String()] = v
	}
	return out
}

// runActions executes every enabled action bound to the recognized gesture
// in the background.
func (a *App) runActions(res *recognition.Result) {
	if a.config.Store == nil {
		return
	}

	gestureID := res.GestureID
	if gestureID == "" {
		g, err := a.config.Store.Gestures().GetByName(res.Gesture)
		if err != nil {
			return
		}
		gestureID = g.ID
	}

	actions, err := a.config.Store.Actions().ListByGestureID(gestureID)
	if err != nil {
		a.log.Error(a.ctx, "failed to load actions", logger.String("gesture", res.Gesture), logger.Error(err))
		return
	}
	if len(actions) == 0 {
		return
	}

	scores := res.Euclidean
	if res.Metric == recognition.DTW {
		scores = res.DTW
	}
	req := plugin.Request{
		Gesture:   res.Gesture,
		Tier:      res.Tier,
		Metric:    res.Metric.String(),
		Aggregate: res.Aggregate,
		Scores:    channelScores(scores),
	}

	for _, action := range actions {
		a.actions.Add(1)
		go func() {
			defer a.actions.Done()
			a.executeAction(action, req)
		}()
	}
}

func (a *App) executeAction(action *store.Action, req plugin.Request) {
	p, err := a.pluginMgr.Get(action.PluginName)
	if err != nil {
		a.log.Warn(a.ctx, "bound plugin is not installed", logger.String("plugin", action.PluginName))
		a.config.Metrics.ActionExecuted(action.PluginName, "missing")
		return
	}

	req.Action = action.ActionName
	req.Config = action.Config

	resp, err := a.pluginExec.Execute(a.ctx, p, &req)
	switch {
	case err != nil:
		a.log.Error(a.ctx, "plugin execution failed",
			logger.String("plugin", action.PluginName),
			logger.String("action", action.ActionName),
			logger.Error(err))
		a.config.Metrics.ActionExecuted(action.PluginName, "error")
	case !resp.Success:
		a.log.Warn(a.ctx, "plugin reported failure",
			logger.String("plugin", action.PluginName),
			logger.String("action", action.ActionName),
			logger.String("error", resp.Error))
		a.config.Metrics.ActionExecuted(action.PluginName, "failed")
	default:
		a.log.Info(a.ctx, "plugin action executed",
			logger.String("plugin", action.PluginName),
			logger.String("action", action.ActionName))
		a.config.Metrics.ActionExecuted(action.PluginName, "ok")
	}
}
