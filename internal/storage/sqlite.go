package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/san-kum/trajset/internal/dataset"
	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps run metadata and samples in a single database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, meta RunMetadata, ds *dataset.Dataset) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	meta = prepare(meta, ds)
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, env, created_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			env = excluded.env,
			created_at = excluded.created_at,
			payload = excluded.payload
	`, meta.ID, meta.Env, meta.Timestamp.UnixNano(), payload)
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE run_id = ?`, meta.ID); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (run_id, idx, score, actions) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i := 0; i < ds.Len(); i++ {
		traj, score, err := ds.Get(i)
		if err != nil {
			return "", err
		}
		actions, err := json.Marshal(traj)
		if err != nil {
			return "", err
		}
		if _, err := stmt.ExecContext(ctx, meta.ID, i, score, actions); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var meta RunMetadata
		if err := json.Unmarshal(payload, &meta); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortRuns(runs)
	return runs, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadDataset(ctx context.Context, id string) (*dataset.Dataset, error) {
	meta, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT score, actions FROM samples WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var data []float64
	var scores []float64
	for rows.Next() {
		var score float64
		var payload []byte
		if err := rows.Scan(&score, &payload); err != nil {
			return nil, err
		}
		var traj []float64
		if err := json.Unmarshal(payload, &traj); err != nil {
			return nil, fmt.Errorf("decode run %s: sample %d: %w", id, len(scores), err)
		}
		if len(traj) != meta.Horizon {
			return nil, fmt.Errorf("decode run %s: sample %d has %d actions, want %d", id, len(scores), len(traj), meta.Horizon)
		}
		data = append(data, traj...)
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(scores) == 0 {
		return dataset.Empty(meta.Horizon), nil
	}
	return dataset.New(mat.NewDense(len(scores), meta.Horizon, data), scores)
}

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

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("sqlite store not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			env TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			score REAL NOT NULL,
			actions BLOB NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
	`)
	return err
}
