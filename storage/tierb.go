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
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned by every TierB method invoked before
// Initialize completes. It is distinct from not-found, which is nil, nil.
var ErrNotInitialized = errors.New("tier B store not initialized")

// Tier B collection names.
const (
	CollectionMapData  = "map_data"
	CollectionMapCache = "map_cache"
)

// TierB is the larger asynchronous structured tier: an embedded SQLite
// database holding the requests, complaints, map_data and map_cache
// collections. Records are stored as JSON documents alongside indexed
// columns (user_id, status, date) so they stay queryable by secondary
// attributes. Single-record writes are individually atomic; concurrent
// processes sharing the same file race, which is an accepted limitation
// carried over from the source design (no cross-tab coordination).
type TierB struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewTierB prepares a Tier B store rooted at dir. The database is not
// opened until Initialize.
func NewTierB(dir string, logger *zap.Logger) *TierB {
	return &TierB{
		path:   filepath.Join(dir, "tier_b.db"),
		logger: logger,
	}
}

// Initialize lazily opens the database and creates missing collections and
// indexes. Idempotent: the first caller opens the handle, later calls
// reuse it.
func (t *TierB) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", t.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open tier B database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		request_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		date DATETIME NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_user ON requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_date ON requests(date);

	CREATE TABLE IF NOT EXISTS complaints (
		complaint_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		date DATETIME NOT NULL,
		doc TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_complaints_user ON complaints(user_id);
	CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
	CREATE INDEX IF NOT EXISTS idx_complaints_date ON complaints(date);

	CREATE TABLE IF NOT EXISTS map_data (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS map_cache (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize tier B schema: %w", err)
	}

	t.db = db
	return nil
}

// Close closes the database handle, if opened.
func (t *TierB) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil
	}
	err := t.db.Close()
	t.db = nil
	return err
}

func (t *TierB) handle() (*sql.DB, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.db == nil {
		return nil, ErrNotInitialized
	}
	return t.db, nil
}

// --- Document rows ---

// docRow is the common shape of the requests and complaints tables.
type docRow struct {
	ID     string
	UserID string
	Status string
	Date   time.Time
	Doc    string
}

func (t *TierB) putDoc(ctx context.Context, table string, row docRow) error {
	db, err := t.handle()
	if err != nil {
		return err
	}
	idCol := table[:len(table)-1] + "_id" // requests -> request_id
	query := fmt.Sprintf(
		`INSERT INTO %s (%s, user_id, status, date, doc) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(%s) DO UPDATE SET user_id=excluded.user_id,
		 status=excluded.status, date=excluded.date, doc=excluded.doc`,
		table, idCol, idCol)
	if _, err := db.ExecContext(ctx, query, row.ID, row.UserID, row.Status, row.Date.UTC(), row.Doc); err != nil {
		return fmt.Errorf("failed to write %s record %s: %w", table, row.ID, err)
	}
	return nil
}

func (t *TierB) getDoc(ctx context.Context, table, id string) (string, error) {
	db, err := t.handle()
	if err != nil {
		return "", err
	}
	idCol := table[:len(table)-1] + "_id"
	var doc string
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT doc FROM %s WHERE %s = ?", table, idCol), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // not found, not an error
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s record %s: %w", table, id, err)
	}
	return doc, nil
}

func (t *TierB) deleteDoc(ctx context.Context, table, id string) error {
	db, err := t.handle()
	if err != nil {
		return err
	}
	idCol := table[:len(table)-1] + "_id"
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, idCol), id); err != nil {
		return fmt.Errorf("failed to delete %s record %s: %w", table, id, err)
	}
	return nil
}

// listDocs returns the doc column of every row matching the optional
// filter clause, oldest first.
func (t *TierB) listDocs(ctx context.Context, table, where string, args ...interface{}) ([]string, error) {
	db, err := t.handle()
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT doc FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY date ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func unmarshalDocs[T any](t *TierB, table string, docs []string) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			t.logger.Warn("skipping unreadable record", zap.String("table", table), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}

// --- Blob collections (map_data, map_cache) ---

// PutBlob stores an opaque string value under key in the named blob
// collection.
func (t *TierB) PutBlob(ctx context.Context, collection, key, value string) error {
	db, err := t.handle()
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, collection)
	if _, err := db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write %s blob %s: %w", collection, key, err)
	}
	return nil
}

// GetBlob reads a blob. Absent keys return "", false, nil.
func (t *TierB) GetBlob(ctx context.Context, collection, key string) (string, bool, error) {
	db, err := t.handle()
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE key = ?", collection), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s blob %s: %w", collection, key, err)
	}
	return value, true, nil
}

// DeleteBlob removes a blob.
func (t *TierB) DeleteBlob(ctx context.Context, collection, key string) error {
	db, err := t.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE key = ?", collection), key); err != nil {
		return fmt.Errorf("failed to delete %s blob %s: %w", collection, key, err)
	}
	return nil
}

// BlobKeys returns the keys of a blob collection in insertion order.
func (t *TierB) BlobKeys(ctx context.Context, collection string) ([]string, error) {
	db, err := t.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT key FROM %s ORDER BY rowid ASC", collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", collection, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan %s key: %w", collection, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ClearCollections empties every Tier B collection.
func (t *TierB) ClearCollections(ctx context.Context) error {
	db, err := t.handle()
	if err != nil {
		return err
	}
	for _, table := range []string{"requests", "complaints", CollectionMapData, CollectionMapCache} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
