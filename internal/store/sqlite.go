package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nfarrow/vitalink/internal/record"
)

// SQLiteStore is the append-only structured record store.
type SQLiteStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema when missing.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS health_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  score TEXT NOT NULL,
  hydration TEXT NOT NULL,
  velocity TEXT NOT NULL,
  risk_factor TEXT NOT NULL,
  summary TEXT NOT NULL,
  correlations TEXT NOT NULL DEFAULT '[]',
  blob_ref TEXT NOT NULL DEFAULT '',
  file_name TEXT NOT NULL DEFAULT '',
  file_type TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_records_user_created
  ON health_records(user_id, created_at DESC);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Append inserts one finished record.
func (s *SQLiteStore) Append(ctx context.Context, rec record.HealthRecord) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("record store is not initialized")
	}

	correlations, err := json.Marshal(rec.Correlations)
	if err != nil {
		return fmt.Errorf("encode correlations: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO health_records
		  (user_id, status, score, hydration, velocity, risk_factor, summary,
		   correlations, blob_ref, file_name, file_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.UserID, rec.Status, rec.Score, rec.Hydration, rec.Velocity,
		rec.RiskFactor, rec.Summary, string(correlations), rec.BlobRef,
		rec.FileName, rec.FileType, rec.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// RecentForUser returns up to limit records for a user, newest first.
func (s *SQLiteStore) RecentForUser(ctx context.Context, userID string, limit int) ([]record.HealthRecord, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("record store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.QueryContext(ctx, `
		SELECT user_id, status, score, hydration, velocity, risk_factor, summary,
		       correlations, blob_ref, file_name, file_type, created_at
		FROM health_records
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []record.HealthRecord
	for rows.Next() {
		var rec record.HealthRecord
		var correlations string
		var createdAt int64
		if err := rows.Scan(&rec.UserID, &rec.Status, &rec.Score, &rec.Hydration,
			&rec.Velocity, &rec.RiskFactor, &rec.Summary, &correlations,
			&rec.BlobRef, &rec.FileName, &rec.FileType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(correlations), &rec.Correlations); err != nil {
			return nil, fmt.Errorf("decode correlations: %w", err)
		}
		rec.Timestamp = time.Unix(createdAt, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
