// Package feedback persists user ratings, confidence calibration bins,
// and the approval queue for actions that need an explicit yes.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open creates or opens the feedback database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS feedback (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  query TEXT NOT NULL,
  response TEXT NOT NULL,
  model_key TEXT NOT NULL DEFAULT '',
  rating INTEGER NOT NULL,
  created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS calibration_bins (
  bin INTEGER PRIMARY KEY,
  total INTEGER NOT NULL DEFAULT 0,
  correct INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS approval_queue (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME NOT NULL,
  decided_at DATETIME
);
`)
	return err
}

// Entry is one user rating of a response. Rating is -1 or +1.
type Entry struct {
	ID        string
	SessionID string
	Query     string
	Response  string
	ModelKey  string
	Rating    int
	CreatedAt time.Time
}

// Record stores a rating and updates the calibration bin for the
// confidence the response shipped with.
func (s *Store) Record(ctx context.Context, e Entry, confidence float64) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO feedback(id, session_id, query, response, model_key, rating, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, e.ID, e.SessionID, e.Query, e.Response, e.ModelKey, e.Rating, e.CreatedAt)
	if err != nil {
		return err
	}

	return s.UpdateBin(ctx, confidence, e.Rating > 0)
}

// List returns the most recent ratings, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, query, response, model_key, rating, created_at
FROM feedback ORDER BY created_at DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Query, &e.Response, &e.ModelKey, &e.Rating, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BinStat is observed accuracy within one confidence decile.
type BinStat struct {
	Bin      int // 0..9, bin n covers [n/10, (n+1)/10)
	Total    int
	Correct  int
	Accuracy float64
}

// UpdateBin bumps the decile bin for a confidence value.
func (s *Store) UpdateBin(ctx context.Context, confidence float64, correct bool) error {
	bin := binFor(confidence)
	correctInc := 0
	if correct {
		correctInc = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO calibration_bins(bin, total, correct) VALUES(?, 1, ?)
ON CONFLICT(bin) DO UPDATE SET
  total=total+1,
  correct=correct+excluded.correct;
`, bin, correctInc)
	return err
}

// BinStats returns all populated bins in confidence order.
func (s *Store) BinStats(ctx context.Context) ([]BinStat, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT bin, total, correct FROM calibration_bins ORDER BY bin ASC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BinStat
	for rows.Next() {
		var b BinStat
		if err := rows.Scan(&b.Bin, &b.Total, &b.Correct); err != nil {
			return nil, err
		}
		if b.Total > 0 {
			b.Accuracy = float64(b.Correct) / float64(b.Total)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func binFor(confidence float64) int {
	bin := int(confidence * 10)
	if bin < 0 {
		return 0
	}
	if bin > 9 {
		return 9
	}
	return bin
}

// Approval queue

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// QueueItem is a deferred action awaiting a user decision.
type QueueItem struct {
	ID        string
	Kind      string
	Payload   string
	Status    string
	CreatedAt time.Time
	DecidedAt *time.Time
}

// Enqueue adds a pending item and returns its ID.
func (s *Store) Enqueue(ctx context.Context, kind, payload string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO approval_queue(id, kind, payload, status, created_at)
VALUES(?, ?, ?, ?, ?);
`, id, kind, payload, StatusPending, time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// Queue lists items, optionally filtered by status ("" = all).
func (s *Store) Queue(ctx context.Context, status string) ([]QueueItem, error) {
	query := `
SELECT id, kind, payload, status, created_at, decided_at
FROM approval_queue`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status=?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC;"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueueItem
	for rows.Next() {
		var item QueueItem
		if err := rows.Scan(&item.ID, &item.Kind, &item.Payload, &item.Status, &item.CreatedAt, &item.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Approve marks a pending item approved.
func (s *Store) Approve(ctx context.Context, id string) error {
	return s.decide(ctx, id, StatusApproved)
}

// Reject marks a pending item rejected.
func (s *Store) Reject(ctx context.Context, id string) error {
	return s.decide(ctx, id, StatusRejected)
}

func (s *Store) decide(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE approval_queue SET status=?, decided_at=? WHERE id=? AND status=?;
`, status, time.Now(), id, StatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no pending item with id %s", id)
	}
	return nil
}
