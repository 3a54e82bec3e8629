package recognition

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/natya/internal/gesture"
)

// EventKind identifies what happened in an episode.
type EventKind int

const (
	EpisodeStarted EventKind = iota
	CandidateEliminated
	RecognitionSucceeded
	RecognitionFailed
	EpisodeReset
)

var eventKindNames = [...]string{
	EpisodeStarted:       "episode_started",
	CandidateEliminated:  "candidate_eliminated",
	RecognitionSucceeded: "recognition_succeeded",
	RecognitionFailed:    "recognition_failed",
	EpisodeReset:         "episode_reset",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	for i, name := range eventKindNames {
		if name == string(text) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// FailureReason explains why an episode ended without a match.
type FailureReason string

const (
	AllEliminated      FailureReason = "all_eliminated"
	Disagreement       FailureReason = "disagreement"
	InsufficientMotion FailureReason = "insufficient_motion"
	Abandoned          FailureReason = "abandoned"
)

// Elimination describes a candidate dropped for exceeding its threshold.
type Elimination struct {
	Gesture   string  `json:"gesture"`
	Metric    Metric  `json:"metric"`
	Aggregate float64 `json:"aggregate"`
	Threshold float64 `json:"threshold"`
	Remaining int     `json:"remaining"`
}

// Result is the payload of a successful recognition.
type Result struct {
	GestureID    string                      `json:"gesture_id,omitempty"`
	Gesture      string                      `json:"gesture"`
	Tier         int                         `json:"tier"`
	Metric       Metric                      `json:"metric"`
	Aggregate    float64                     `json:"aggregate"`
	Euclidean    map[gesture.Channel]float64 `json:"euclidean"`
	DTW          map[gesture.Channel]float64 `json:"dtw,omitempty"`
	AverageSpeed float64                     `json:"average_speed"`
	Duration     time.Duration               `json:"duration"`
}

// Failure is the payload of a failed recognition.
type Failure struct {
	Reason    FailureReason              `json:"reason"`
	Proposals map[gesture.Channel]string `json:"proposals,omitempty"`
	Gesture   string                     `json:"gesture,omitempty"`
}

// Event is delivered to handlers registered with OnEvent, in emission order.
type Event struct {
	Kind        EventKind    `json:"kind"`
	EpisodeID   string       `json:"episode_id,omitempty"`
	Time        time.Time    `json:"time"`
	Candidates  []string     `json:"candidates,omitempty"`
	Elimination *Elimination `json:"elimination,omitempty"`
	Result      *Result      `json:"result,omitempty"`
	Failure     *Failure     `json:"failure,omitempty"`
}

// EventHandler receives coordinator events on the dispatcher goroutine.
type EventHandler func(Event)

// eventQueue buffers events emitted under the coordinator lock until the
// dispatcher delivers them. push never blocks.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	notify  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	return batch
}
