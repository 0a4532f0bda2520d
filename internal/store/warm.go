// Package store holds the two storage tiers: the in-process hot tier for
// recently ingested records and the durable SQLite warm tier.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/stratamem/stratamem/internal/model"
)

const warmSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	system_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	embedding BLOB NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (system_id, conversation_id)
);
CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);
CREATE TABLE IF NOT EXISTS quarantine (
	system_id TEXT NOT NULL,
	upload_id TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	last_error TEXT NOT NULL DEFAULT '',
	quarantined_at INTEGER NOT NULL,
	PRIMARY KEY (system_id, upload_id)
);
`

// WarmStore is the durable, indexed, on-disk store of all records. It must
// be initialized before use; Initialize and Close are both idempotent.
type WarmStore struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

// NewWarmStore creates a WarmStore for the database at path. No I/O happens
// until Initialize.
func NewWarmStore(path string) *WarmStore {
	return &WarmStore{path: path}
}

// Initialize opens the database and creates the schema, primary-key
// constraint, and timestamp index if absent. The parent directory is
// created when missing. Safe to call multiple times.
func (w *WarmStore) Initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db != nil {
		return nil
	}

	if dir := filepath.Dir(w.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(err, "create warm store directory", goerr.Value("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", "file:"+w.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return goerr.Wrap(err, "open warm store", goerr.Value("path", w.path))
	}
	// SQLite is single-writer. One shared connection makes concurrent
	// callers queue on the pool instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, warmSchema); err != nil {
		db.Close()
		return goerr.Wrap(err, "apply warm store schema")
	}

	w.db = db
	return nil
}

// Insert persists one record. Returns ErrNotInitialized before Initialize,
// ErrValidation for a malformed record, and ErrConstraintViolation when the
// (system_id, conversation_id) pair already exists.
func (w *WarmStore) Insert(ctx context.Context, rec *model.MemoryRecord) error {
	db, err := w.handle()
	if err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return goerr.Wrap(model.ErrValidation, "metadata is not serializable", goerr.Value("key", rec.Key()))
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO conversations (system_id, conversation_id, embedding, summary, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SystemID, rec.ConversationID, encodeInt8s(rec.Embedding), rec.Summary, rec.Timestamp.UTC().UnixNano(), string(meta))
	if err != nil {
		if isUniqueViolation(err) {
			return goerr.Wrap(ErrConstraintViolation, "duplicate conversation key", goerr.Value("key", rec.Key()))
		}
		return goerr.Wrap(err, "insert conversation", goerr.Value("key", rec.Key()))
	}
	return nil
}

// QueryByDateRange returns records with start <= timestamp <= end, both
// ends inclusive, ordered by timestamp ascending.
func (w *WarmStore) QueryByDateRange(ctx context.Context, start, end time.Time) ([]*model.MemoryRecord, error) {
	db, err := w.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT system_id, conversation_id, embedding, summary, timestamp, metadata
		FROM conversations
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp
	`, start.UTC().UnixNano(), end.UTC().UnixNano())
	if err != nil {
		return nil, goerr.Wrap(err, "query by date range")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// QueryBySystem returns all records for exactly the given system.
func (w *WarmStore) QueryBySystem(ctx context.Context, systemID string) ([]*model.MemoryRecord, error) {
	db, err := w.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT system_id, conversation_id, embedding, summary, timestamp, metadata
		FROM conversations
		WHERE system_id = ?
		ORDER BY timestamp
	`, systemID)
	if err != nil {
		return nil, goerr.Wrap(err, "query by system", goerr.Value("system_id", systemID))
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Quarantine records a permanently failing upload so discovery stops
// retrying it. Upserts so repeated quarantine attempts are harmless.
func (w *WarmStore) Quarantine(ctx context.Context, desc model.UploadDescriptor, attempts int, lastErr string) error {
	db, err := w.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO quarantine (system_id, upload_id, storage_key, attempts, last_error, quarantined_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(system_id, upload_id) DO UPDATE SET
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			quarantined_at = excluded.quarantined_at
	`, desc.SystemID, desc.UploadID, desc.StorageKey, attempts, lastErr, time.Now().UTC().UnixNano())
	if err != nil {
		return goerr.Wrap(err, "quarantine upload", goerr.Value("upload", desc.String()))
	}
	return nil
}

// QuarantinedKeys returns the storage keys of all quarantined uploads.
func (w *WarmStore) QuarantinedKeys(ctx context.Context) (map[string]struct{}, error) {
	db, err := w.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT storage_key FROM quarantine`)
	if err != nil {
		return nil, goerr.Wrap(err, "list quarantined uploads")
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, goerr.Wrap(err, "scan quarantine row")
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// Stats returns per-system row counts.
func (w *WarmStore) Stats(ctx context.Context) (map[string]int, error) {
	db, err := w.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT system_id, COUNT(*) FROM conversations GROUP BY system_id`)
	if err != nil {
		return nil, goerr.Wrap(err, "query stats")
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var system string
		var n int
		if err := rows.Scan(&system, &n); err != nil {
			return nil, goerr.Wrap(err, "scan stats row")
		}
		stats[system] = n
	}
	return stats, rows.Err()
}

// Close releases the underlying handle. Safe to call multiple times.
func (w *WarmStore) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

func (w *WarmStore) handle() (*sql.DB, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.db == nil {
		return nil, goerr.Wrap(ErrNotInitialized, "warm store used before Initialize", goerr.Value("path", w.path))
	}
	return w.db, nil
}

func scanRecords(rows *sql.Rows) ([]*model.MemoryRecord, error) {
	var out []*model.MemoryRecord
	for rows.Next() {
		var (
			rec  model.MemoryRecord
			blob []byte
			ts   int64
			meta string
		)
		if err := rows.Scan(&rec.SystemID, &rec.ConversationID, &blob, &rec.Summary, &ts, &meta); err != nil {
			return nil, goerr.Wrap(err, "scan conversation row")
		}
		rec.Embedding = decodeInt8s(blob)
		rec.Timestamp = time.Unix(0, ts).UTC()
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
				return nil, goerr.Wrap(err, "decode metadata", goerr.Value("key", rec.Key()))
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// encodeInt8s packs a quantized embedding into its one-byte-per-element
// storage form.
func encodeInt8s(v []int8) []byte {
	buf := make([]byte, len(v))
	for i, b := range v {
		buf[i] = byte(b)
	}
	return buf
}

// decodeInt8s unpacks the stored embedding blob.
func decodeInt8s(b []byte) []int8 {
	v := make([]int8, len(b))
	for i, c := range b {
		v[i] = int8(c)
	}
	return v
}

// isUniqueViolation matches only primary-key collisions. Other constraint
// classes (NOT NULL, CHECK) must surface as real errors, not duplicates.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
