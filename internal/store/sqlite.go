package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/i474232898/wearable-weather-sync/internal/weather"
)

var _ weather.Store = (*SQLiteStore)(nil)

// SQLiteStore implements weather.Store on a SQLite key/value table. The
// snapshot lives under the weather namespace, one row per field.
type SQLiteStore struct {
	db *sql.DB

	writeMu sync.Mutex
	mu      sync.RWMutex

	subs *listeners
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, subs: newListeners()}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		namespace  TEXT NOT NULL,
		key        TEXT NOT NULL,
		int_value  INTEGER,
		real_value REAL,
		PRIMARY KEY (namespace, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get reads the snapshot. Fields that were never written report their
// sentinel value.
func (s *SQLiteStore) Get(ctx context.Context) (weather.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, int_value, real_value FROM preferences WHERE namespace = ?",
		weather.Namespace,
	)
	if err != nil {
		return weather.Unknown(), fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	snap := weather.Unknown()
	for rows.Next() {
		var (
			key string
			iv  sql.NullInt64
			fv  sql.NullFloat64
		)
		if err := rows.Scan(&key, &iv, &fv); err != nil {
			return weather.Unknown(), fmt.Errorf("scan preference: %w", err)
		}
		switch key {
		case weather.KeyConditionID:
			if iv.Valid {
				snap.ConditionID = int(iv.Int64)
			}
		case weather.KeyMaxTemp:
			if fv.Valid {
				snap.MaxTemp = fv.Float64
			}
		case weather.KeyMinTemp:
			if fv.Valid {
				snap.MinTemp = fv.Float64
			}
		}
	}
	if err := rows.Err(); err != nil {
		return weather.Unknown(), fmt.Errorf("iterate preferences: %w", err)
	}
	return snap, nil
}

// Put writes all three fields in one transaction and notifies subscribers
// once the transaction has committed.
func (s *SQLiteStore) Put(ctx context.Context, snap weather.Snapshot) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.commit(ctx, snap); err != nil {
		return err
	}

	s.subs.notify(snap)
	return nil
}

func (s *SQLiteStore) commit(ctx context.Context, snap weather.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `
	INSERT INTO preferences (namespace, key, int_value, real_value) VALUES (?, ?, ?, ?)
	ON CONFLICT (namespace, key) DO UPDATE SET
		int_value = excluded.int_value,
		real_value = excluded.real_value`

	rows := []struct {
		key string
		iv  any
		fv  any
	}{
		{weather.KeyConditionID, snap.ConditionID, nil},
		{weather.KeyMaxTemp, nil, snap.MaxTemp},
		{weather.KeyMinTemp, nil, snap.MinTemp},
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, upsert, weather.Namespace, r.key, r.iv, r.fv); err != nil {
			return fmt.Errorf("write %s: %w", r.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Subscribe registers l for change notifications.
func (s *SQLiteStore) Subscribe(l weather.Listener) weather.Subscription {
	return s.subs.add(l)
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (s *SQLiteStore) Unsubscribe(sub weather.Subscription) {
	s.subs.remove(sub)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
