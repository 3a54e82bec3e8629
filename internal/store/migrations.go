package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS gestures (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			tier INTEGER NOT NULL DEFAULT 0,
			tolerance REAL NOT NULL DEFAULT 0.1,
			sampling_interval REAL NOT NULL DEFAULT 0.1,
			samples INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per recorded channel, holding its orientation offset
		`CREATE TABLE IF NOT EXISTS gesture_tracks (
			gesture_id TEXT NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			channel TEXT NOT NULL,
			offset_real REAL NOT NULL DEFAULT 0,
			offset_i REAL NOT NULL DEFAULT 0,
			offset_j REAL NOT NULL DEFAULT 0,
			offset_k REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (gesture_id, channel)
		)`,

		// Track sequences; vectors use a, b, c and quaternions a (real), b, c, d
		`CREATE TABLE IF NOT EXISTS gesture_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gesture_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('local', 'world', 'velocity', 'orientation')),
			sequence INTEGER NOT NULL,
			a REAL NOT NULL,
			b REAL NOT NULL,
			c REAL NOT NULL,
			d REAL NOT NULL DEFAULT 0,
			FOREIGN KEY (gesture_id, channel) REFERENCES gesture_tracks(gesture_id, channel) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			gesture_id TEXT NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Raw recorded takes used to train gesture tracks
		`CREATE TABLE IF NOT EXISTS gesture_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gesture_id TEXT NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS recognition_results (
			id TEXT PRIMARY KEY,
			episode_id TEXT NOT NULL,
			outcome TEXT NOT NULL CHECK(outcome IN ('success', 'failure')),
			reason TEXT NOT NULL DEFAULT '',
			gesture_name TEXT NOT NULL DEFAULT '',
			tier INTEGER NOT NULL DEFAULT 0,
			metric TEXT NOT NULL,
			aggregate REAL NOT NULL DEFAULT 0,
			scores TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_gesture_points_track ON gesture_points(gesture_id, channel, kind, sequence)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_gesture_id ON actions(gesture_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gesture_samples_gesture_id ON gesture_samples(gesture_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recognition_results_created_at ON recognition_results(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
