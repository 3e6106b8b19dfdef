package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"docxref/internal/corpus"
	"docxref/internal/errors"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrIncomplete is returned when a result without a final verdict is offered
// to the cache.
var ErrIncomplete = stderrors.New("storage: result is incomplete")

// LinkCache is a SQLite-backed store of the last validation result per
// external target. Every write is a single-row upsert in its own transaction.
type LinkCache struct {
	db  *DB
	now func() time.Time
}

// OpenLinkCache opens the cache database at path.
func OpenLinkCache(path string, logger *slog.Logger) (*LinkCache, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, errors.New(errors.CacheUnavailable, "cannot open link cache", err).WithLocation(path)
	}
	return &LinkCache{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (c *LinkCache) Close() error {
	return c.db.Close()
}

// Path returns the database file location.
func (c *LinkCache) Path() string {
	return c.db.Path()
}

// Get returns the stored result for target.
func (c *LinkCache) Get(target string) (corpus.ValidationResult, bool, error) {
	var status, detail, checkedAt string
	var attempts int
	err := c.db.conn.QueryRow(`
		SELECT status, detail, attempts, checked_at
		FROM link_results WHERE target = ?
	`, target).Scan(&status, &detail, &attempts, &checkedAt)
	if err == sql.ErrNoRows {
		return corpus.ValidationResult{}, false, nil
	}
	if err != nil {
		return corpus.ValidationResult{}, false, fmt.Errorf("read cached result: %w", err)
	}

	ts, err := time.Parse(timeLayout, checkedAt)
	if err != nil {
		return corpus.ValidationResult{}, false, fmt.Errorf("corrupt checked_at for %q: %w", target, err)
	}
	st := corpus.Status(status)
	if !st.Known() {
		return corpus.ValidationResult{}, false, fmt.Errorf("corrupt status %q for %q", status, target)
	}

	return corpus.ValidationResult{
		Reference: corpus.Reference{Kind: corpus.KindExternal, RawTarget: target},
		Status:    st,
		Detail:    detail,
		CheckedAt: ts,
		Attempts:  attempts,
	}, true, nil
}

// PutIfComplete stores result under target if it carries a final verdict.
// The previous row survives intact if the write fails.
func (c *LinkCache) PutIfComplete(target string, result corpus.ValidationResult) error {
	if !result.Complete() || target == "" {
		return ErrIncomplete
	}
	return c.db.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO link_results (target, status, detail, attempts, checked_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(target) DO UPDATE SET
				status = excluded.status,
				detail = excluded.detail,
				attempts = excluded.attempts,
				checked_at = excluded.checked_at,
				updated_at = excluded.updated_at
		`,
			target,
			string(result.Status),
			result.Detail,
			result.Attempts,
			result.CheckedAt.UTC().Format(timeLayout),
			c.now().UTC().Format(timeLayout),
		)
		return err
	})
}

// Stats summarizes the cache contents.
type Stats struct {
	Path     string                `json:"path"`
	Entries  int                   `json:"entries"`
	ByStatus map[corpus.Status]int `json:"byStatus"`
	Oldest   time.Time             `json:"oldest,omitzero"`
	Newest   time.Time             `json:"newest,omitzero"`
	Bytes    int64                 `json:"bytes"`
}

// Stats returns entry counts per status and the checked_at range.
func (c *LinkCache) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Path: c.db.Path(), ByStatus: make(map[corpus.Status]int)}

	rows, err := c.db.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM link_results GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count cached results: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats.ByStatus[corpus.Status(status)] = n
		stats.Entries += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Entries > 0 {
		var oldest, newest string
		err := c.db.conn.QueryRowContext(ctx, `SELECT MIN(checked_at), MAX(checked_at) FROM link_results`).Scan(&oldest, &newest)
		if err != nil {
			return nil, err
		}
		stats.Oldest, _ = time.Parse(timeLayout, oldest)
		stats.Newest, _ = time.Parse(timeLayout, newest)
	}

	if fi, err := os.Stat(c.db.Path()); err == nil {
		stats.Bytes = fi.Size()
	}
	return stats, nil
}

// Prune deletes entries checked before cutoff and returns how many were removed.
func (c *LinkCache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM link_results WHERE checked_at < ?`, cutoff.UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// Clear deletes every entry and returns how many were removed.
func (c *LinkCache) Clear(ctx context.Context) (int64, error) {
	var removed int64
	err := c.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM link_results`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}
