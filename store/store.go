package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DefaultRecentLimit bounds RecentReadings when no positive limit is given
const DefaultRecentLimit = 50

// Reading is one valid speed estimate
type Reading struct {
	SessionID string    `json:"session_id"`
	KMH       float64   `json:"kmh"`
	Model     string    `json:"model"`
	Samples   int       `json:"samples"`
	Timestamp time.Time `json:"timestamp"`
}

func (r Reading) String() string {
	return fmt.Sprintf("Session: %s, Speed: %.2f km/h, Model: %s, Samples: %d", r.SessionID, r.KMH, r.Model, r.Samples)
}

// DB is the speed log. It is safe for concurrent use.
type DB struct {
	*sql.DB
}

// Open opens or creates the speed log at path
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening speed log %s", path)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS speed_readings (
			reading_id        INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id        TEXT NOT NULL,
			kmh               DOUBLE NOT NULL,
			model             TEXT NOT NULL,
			samples           INTEGER NOT NULL,
			recorded_unix_ms  BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_speed_readings_recorded ON speed_readings(recorded_unix_ms);
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating speed_readings table")
	}

	return &DB{db}, nil
}

// RecordSpeed inserts a reading
func (db *DB) RecordSpeed(r Reading) error {
	_, err := db.Exec(
		"INSERT INTO speed_readings (session_id, kmh, model, samples, recorded_unix_ms) VALUES (?, ?, ?, ?, ?)",
		r.SessionID, r.KMH, r.Model, r.Samples, r.Timestamp.UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "recording speed reading")
	}
	return nil
}

// RecentReadings returns up to limit readings, newest first
func (db *DB) RecentReadings(limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := db.Query(
		"SELECT session_id, kmh, model, samples, recorded_unix_ms FROM speed_readings ORDER BY recorded_unix_ms DESC, reading_id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying speed readings")
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		var r Reading
		var recordedMS int64
		if err := rows.Scan(&r.SessionID, &r.KMH, &r.Model, &r.Samples, &recordedMS); err != nil {
			return nil, errors.Wrap(err, "scanning speed reading")
		}
		r.Timestamp = time.UnixMilli(recordedMS)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating speed readings")
	}

	return readings, nil
}
