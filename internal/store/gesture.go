package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/natya/internal/gesture"
)

// Gesture is the metadata row of a gesture stored in the database.
type Gesture struct {
	ID               string
	Name             string
	Tier             int
	Tolerance        float64
	SamplingInterval float64
	Samples          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Point kinds stored in gesture_points.
const (
	kindLocal       = "local"
	kindWorld       = "world"
	kindVelocity    = "velocity"
	kindOrientation = "orientation"
)

// GestureRepository provides CRUD operations for gestures and their tracks.
type GestureRepository struct {
	db *sql.DB
}

// Gestures returns the gesture repository for this store.
func (s *Store) Gestures() *GestureRepository {
	return &GestureRepository{db: s.db}
}

const gestureColumns = `id, name, tier, tolerance, sampling_interval, samples, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGesture(row rowScanner) (*Gesture, error) {
	g := &Gesture{}
	err := row.Scan(&g.ID, &g.Name, &g.Tier, &g.Tolerance, &g.SamplingInterval, &g.Samples, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// Create inserts a new gesture into the database.
func (r *GestureRepository) Create(g *Gesture) error {
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO gestures (`+gestureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Tier, g.Tolerance, g.SamplingInterval, g.Samples, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// GetByID retrieves a gesture by its ID.
func (r *GestureRepository) GetByID(id string) (*Gesture, error) {
	return scanGesture(r.db.QueryRow(`SELECT `+gestureColumns+` FROM gestures WHERE id = ?`, id))
}

// GetByName retrieves a gesture by its name.
func (r *GestureRepository) GetByName(name string) (*Gesture, error) {
	return scanGesture(r.db.QueryRow(`SELECT `+gestureColumns+` FROM gestures WHERE name = ?`, name))
}

// List retrieves all gestures in creation order.
func (r *GestureRepository) List() ([]*Gesture, error) {
	rows, err := r.db.Query(`SELECT ` + gestureColumns + ` FROM gestures ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gestures []*Gesture
	for rows.Next() {
		g, err := scanGesture(rows)
		if err != nil {
			return nil, err
		}
		gestures = append(gestures, g)
	}
	return gestures, rows.Err()
}

// Update updates an existing gesture in the database.
func (r *GestureRepository) Update(g *Gesture) error {
	g.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE gestures SET name = ?, tier = ?, tolerance = ?, sampling_interval = ?, samples = ?, updated_at = ?
		 WHERE id = ?`,
		g.Name, g.Tier, g.Tolerance, g.SamplingInterval, g.Samples, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Delete removes a gesture and everything attached to it.
func (r *GestureRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM gestures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// SaveTracks replaces all tracks of a gesture.
func (r *GestureRepository) SaveTracks(gestureID string, tracks map[gesture.Channel]*gesture.Track) error {
	return inTx(r.db, func(tx *sql.Tx) error {
		if err := saveTracks(tx, gestureID, tracks); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE gestures SET updated_at = ? WHERE id = ?`, time.Now(), gestureID)
		return err
	})
}

func saveTracks(tx *sql.Tx, gestureID string, tracks map[gesture.Channel]*gesture.Track) error {
	if _, err := tx.Exec(`DELETE FROM gesture_tracks WHERE gesture_id = ?`, gestureID); err != nil {
		return err
	}

	trackStmt, err := tx.Prepare(
		`INSERT INTO gesture_tracks (gesture_id, channel, offset_real, offset_i, offset_j, offset_k)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer trackStmt.Close()

	pointStmt, err := tx.Prepare(
		`INSERT INTO gesture_points (gesture_id, channel, kind, sequence, a, b, c, d)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	for _, c := range gesture.AllChannels {
		t := tracks[c]
		if t == nil {
			continue
		}
		name := c.String()
		o := t.OrientationOffset
		if _, err := trackStmt.Exec(gestureID, name, o.Real, o.Imag, o.Jmag, o.Kmag); err != nil {
			return fmt.Errorf("insert track %s: %w", name, err)
		}

		vectors := []struct {
			kind   string
			points []r3.Vec
		}{
			{kindLocal, t.Local},
			{kindWorld, t.World},
			{kindVelocity, t.Velocity},
		}
		for _, v := range vectors {
			for i, p := range v.points {
				if _, err := pointStmt.Exec(gestureID, name, v.kind, i, p.X, p.Y, p.Z, 0.0); err != nil {
					return fmt.Errorf("insert %s point %d: %w", v.kind, i, err)
				}
			}
		}
		for i, q := range t.Orientation {
			if _, err := pointStmt.Exec(gestureID, name, kindOrientation, i, q.Real, q.Imag, q.Jmag, q.Kmag); err != nil {
				return fmt.Errorf("insert orientation %d: %w", i, err)
			}
		}
	}
	return nil
}

// LoadTracks reads every track of a gesture. A gesture without tracks
// returns an empty map.
func (r *GestureRepository) LoadTracks(ctx context.Context, gestureID string) (map[gesture.Channel]*gesture.Track, error) {
	tracks := make(map[gesture.Channel]*gesture.Track)

	rows, err := r.db.QueryContext(ctx,
		`SELECT channel, offset_real, offset_i, offset_j, offset_k FROM gesture_tracks WHERE gesture_id = ?`,
		gestureID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		var o quat.Number
		if err := rows.Scan(&name, &o.Real, &o.Imag, &o.Jmag, &o.Kmag); err != nil {
			rows.Close()
			return nil, err
		}
		c, err := gesture.ParseChannel(name)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tracks[c] = &gesture.Track{OrientationOffset: o}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT channel, kind, a, b, c, d FROM gesture_points
		 WHERE gesture_id = ? ORDER BY channel, kind, sequence`,
		gestureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind string
		var a, b, c, d float64
		if err := rows.Scan(&name, &kind, &a, &b, &c, &d); err != nil {
			return nil, err
		}
		ch, err := gesture.ParseChannel(name)
		if err != nil {
			return nil, err
		}
		t := tracks[ch]
		if t == nil {
			continue
		}
		switch kind {
		case kindLocal:
			t.Local = append(t.Local, r3.Vec{X: a, Y: b, Z: c})
		case kindWorld:
			t.World = append(t.World, r3.Vec{X: a, Y: b, Z: c})
		case kindVelocity:
			t.Velocity = append(t.Velocity, r3.Vec{X: a, Y: b, Z: c})
		case kindOrientation:
			t.Orientation = append(t.Orientation, quat.Number{Real: a, Imag: b, Jmag: c, Kmag: d})
		}
	}
	return tracks, rows.Err()
}

// Import creates a gesture and its tracks from a full record in one
// transaction. An empty ID is not allowed.
func (r *GestureRepository) Import(g *gesture.Gesture) error {
	if g.ID == "" {
		return errors.New("gesture id is required")
	}

	return inTx(r.db, func(tx *sql.Tx) error {
		now := time.Now()
		_, err := tx.Exec(
			`INSERT INTO gestures (`+gestureColumns+`) VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			g.ID, g.Name, g.Tier, g.Tolerance, g.SamplingInterval, now, now,
		)
		if err != nil {
			return err
		}
		return saveTracks(tx, g.ID, g.Tracks)
	})
}

// LoadGestures returns every gesture that has tracks as a full record, in
// creation order. It implements catalog.Source.
func (r *GestureRepository) LoadGestures(ctx context.Context) ([]*gesture.Gesture, error) {
	rows, err := r.List()
	if err != nil {
		return nil, err
	}

	gestures := make([]*gesture.Gesture, 0, len(rows))
	for _, row := range rows {
		tracks, err := r.LoadTracks(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("load tracks of %s: %w", row.Name, err)
		}
		if len(tracks) == 0 {
			continue
		}
		gestures = append(gestures, &gesture.Gesture{
			ID:               row.ID,
			Name:             row.Name,
			Tier:             row.Tier,
			Tolerance:        row.Tolerance,
			SamplingInterval: row.SamplingInterval,
			Tracks:           tracks,
		})
	}
	return gestures, nil
}

func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
