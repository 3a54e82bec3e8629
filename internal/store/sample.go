package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample is one raw recorded take of a gesture.
type Sample struct {
	ID          int64           `json:"id"`
	GestureID   string          `json:"gesture_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SampleRepository stores recorded takes used for training.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Add appends takes to a gesture in one transaction and refreshes the
// gesture's sample count.
func (r *SampleRepository) Add(gestureID string, samples []json.RawMessage) error {
	return inTx(r.db, func(tx *sql.Tx) error {
		var next int
		err := tx.QueryRow(
			`SELECT COALESCE(MAX(sample_index) + 1, 0) FROM gesture_samples WHERE gesture_id = ?`,
			gestureID,
		).Scan(&next)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO gesture_samples (gesture_id, sample_index, data) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, data := range samples {
			if _, err := stmt.Exec(gestureID, next+i, string(data)); err != nil {
				return err
			}
		}
		return refreshCount(tx, gestureID)
	})
}

// GetByGestureID retrieves all takes of a gesture in recording order.
func (r *SampleRepository) GetByGestureID(gestureID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT id, gesture_id, sample_index, data, created_at
		 FROM gesture_samples
		 WHERE gesture_id = ?
		 ORDER BY sample_index`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var s Sample
		var data string
		if err := rows.Scan(&s.ID, &s.GestureID, &s.SampleIndex, &data, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Data = json.RawMessage(data)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Data returns only the raw payloads of a gesture's takes.
func (r *SampleRepository) Data(gestureID string) ([]json.RawMessage, error) {
	samples, err := r.GetByGestureID(gestureID)
	if err != nil {
		return nil, err
	}
	data := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		data[i] = s.Data
	}
	return data, nil
}

// DeleteByGestureID removes all takes of a gesture.
func (r *SampleRepository) DeleteByGestureID(gestureID string) error {
	return inTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM gesture_samples WHERE gesture_id = ?`, gestureID); err != nil {
			return err
		}
		return refreshCount(tx, gestureID)
	})
}

func refreshCount(tx *sql.Tx, gestureID string) error {
	_, err := tx.Exec(
		`UPDATE gestures
		 SET samples = (SELECT COUNT(*) FROM gesture_samples WHERE gesture_id = ?), updated_at = ?
		 WHERE id = ?`,
		gestureID, time.Now(), gestureID,
	)
	return err
}
