package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Result is the persisted outcome of one recognition episode.
type Result struct {
	ID          string
	EpisodeID   string
	Outcome     string
	Reason      string
	GestureName string
	Tier        int
	Metric      string
	Aggregate   float64
	// Scores holds per-channel scores keyed by metric then channel name.
	Scores    map[string]map[string]float64
	CreatedAt time.Time
}

// ResultRepository stores recognition outcomes.
type ResultRepository struct {
	db *sql.DB
}

// Results returns the result repository for this store.
func (s *Store) Results() *ResultRepository {
	return &ResultRepository{db: s.db}
}

// Create inserts a result.
func (r *ResultRepository) Create(res *Result) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	scores, err := json.Marshal(res.Scores)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		`INSERT INTO recognition_results
		 (id, episode_id, outcome, reason, gesture_name, tier, metric, aggregate, scores, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.EpisodeID, res.Outcome, res.Reason, res.GestureName, res.Tier,
		res.Metric, res.Aggregate, string(scores), res.CreatedAt,
	)
	return err
}

// List returns the most recent results first, at most limit rows.
func (r *ResultRepository) List(limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		`SELECT id, episode_id, outcome, reason, gesture_name, tier, metric, aggregate, scores, created_at
		 FROM recognition_results ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*Result{}
	for rows.Next() {
		res := &Result{}
		var scores string
		err := rows.Scan(&res.ID, &res.EpisodeID, &res.Outcome, &res.Reason, &res.GestureName,
			&res.Tier, &res.Metric, &res.Aggregate, &scores, &res.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(scores), &res.Scores); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
