package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"travel_agent/src/model"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS user_trips (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    destination TEXT,
    activities  TEXT NOT NULL DEFAULT '[]',
    utterances  TEXT NOT NULL DEFAULT '[]',
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recommended_trips (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    destination  TEXT NOT NULL,
    alternative  TEXT NOT NULL DEFAULT '',
    rationale    TEXT NOT NULL DEFAULT '',
    trip_details TEXT NOT NULL DEFAULT '{}',
    personalized INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trip_feedback (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    destination TEXT NOT NULL DEFAULT '',
    preferred   TEXT NOT NULL DEFAULT '[]',
    hated       TEXT NOT NULL DEFAULT '[]',
    comment     TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL
);
`

// DefaultRecommendationLimit is how many past recommendations Recommendations returns by default
const DefaultRecommendationLimit = 5

func (s *Store) history(p *partition) (*sql.DB, error) {
	if p.db != nil {
		return p.db, nil
	}
	path := filepath.Join(p.dir, historyFile)
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	p.db = db
	return db, nil
}

// withHistory runs fn under the user's partition lock with an open history db
func (s *Store) withHistory(userID, op string, fn func(db *sql.DB) error) error {
	p, err := s.partition(userID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := s.ensureProfile(p); err != nil {
		return err
	}
	db, err := s.history(p)
	if err == nil {
		err = fn(db)
	}
	if err != nil {
		return &model.StorageError{Op: op, UserID: userID, Err: err}
	}
	return nil
}

// AppendTrip adds a trip to the user's append-only trip history
func (s *Store) AppendTrip(ctx context.Context, userID string, trip model.TripRecord) (int64, error) {
	var id int64
	err := s.withHistory(userID, "append trip", func(db *sql.DB) error {
		activities, err := sonic.MarshalString(nonNil(trip.Activities))
		if err != nil {
			return err
		}
		utterances, err := sonic.MarshalString(nonNil(trip.Utterances))
		if err != nil {
			return err
		}
		var dest any
		if trip.Destination != "" {
			dest = trip.Destination
		}
		res, err := db.ExecContext(ctx,
			`INSERT INTO user_trips (destination, activities, utterances, created_at) VALUES (?, ?, ?, ?)`,
			dest, activities, utterances, s.stamp(trip.CreatedAt))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// Trips returns the trip history, oldest first
func (s *Store) Trips(ctx context.Context, userID string) ([]model.TripRecord, error) {
	var trips []model.TripRecord
	err := s.withHistory(userID, "list trips", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, destination, activities, utterances, created_at FROM user_trips ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				t                      model.TripRecord
				dest                   sql.NullString
				activities, utterances string
				created                string
			)
			if err := rows.Scan(&t.ID, &dest, &activities, &utterances, &created); err != nil {
				return err
			}
			t.Destination = dest.String
			if err := sonic.UnmarshalString(activities, &t.Activities); err != nil {
				return err
			}
			if err := sonic.UnmarshalString(utterances, &t.Utterances); err != nil {
				return err
			}
			t.CreatedAt = parseStamp(created)
			trips = append(trips, t)
		}
		return rows.Err()
	})
	return trips, err
}

// PastDestinations lists the validated destinations of all past trips
func (s *Store) PastDestinations(ctx context.Context, userID string) ([]string, error) {
	var out []string
	err := s.withHistory(userID, "past destinations", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT destination FROM user_trips WHERE destination IS NOT NULL AND destination != '' ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d string
			if err := rows.Scan(&d); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	return lo.UniqBy(out, model.NormalizeDestination), err
}

func (s *Store) LogRecommendation(ctx context.Context, userID string, rec model.RecommendationLog) error {
	return s.withHistory(userID, "log recommendation", func(db *sql.DB) error {
		details, err := sonic.MarshalString(rec.Trip)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO recommended_trips (destination, alternative, rationale, trip_details, personalized, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Destination, rec.Alternative, rec.Rationale, details, rec.Personal, s.stamp(rec.CreatedAt))
		return err
	})
}

// Recommendations returns the most recent recommendations first
func (s *Store) Recommendations(ctx context.Context, userID string, limit int) ([]model.RecommendationLog, error) {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	var out []model.RecommendationLog
	err := s.withHistory(userID, "list recommendations", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, destination, alternative, rationale, trip_details, personalized, created_at
			 FROM recommended_trips ORDER BY id DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r                model.RecommendationLog
				details, created string
			)
			if err := rows.Scan(&r.ID, &r.Destination, &r.Alternative, &r.Rationale, &details, &r.Personal, &created); err != nil {
				return err
			}
			if err := sonic.UnmarshalString(details, &r.Trip); err != nil {
				return err
			}
			r.CreatedAt = parseStamp(created)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) LogFeedback(ctx context.Context, userID string, fb model.Feedback) error {
	return s.withHistory(userID, "log feedback", func(db *sql.DB) error {
		preferred, err := sonic.MarshalString(nonNil(fb.Preferred))
		if err != nil {
			return err
		}
		hated, err := sonic.MarshalString(nonNil(fb.Hated))
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO trip_feedback (destination, preferred, hated, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
			fb.Destination, preferred, hated, fb.Comment, s.stamp(fb.CreatedAt))
		return err
	})
}

// Feedback returns all feedback rows, oldest first
func (s *Store) Feedback(ctx context.Context, userID string) ([]model.Feedback, error) {
	var out []model.Feedback
	err := s.withHistory(userID, "list feedback", func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT id, destination, preferred, hated, comment, created_at FROM trip_feedback ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				f                       model.Feedback
				preferred, hated, stamp string
			)
			if err := rows.Scan(&f.ID, &f.Destination, &preferred, &hated, &f.Comment, &stamp); err != nil {
				return err
			}
			if err := sonic.UnmarshalString(preferred, &f.Preferred); err != nil {
				return err
			}
			if err := sonic.UnmarshalString(hated, &f.Hated); err != nil {
				return err
			}
			f.CreatedAt = parseStamp(stamp)
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) stamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStamp(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
