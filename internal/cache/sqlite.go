package cache

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"EarningsSentinel/internal/model"

	_ "modernc.org/sqlite"
)

var _ Cache = (*DurableCache)(nil)

// DurableCache persists coverage and announcements to a SQLite database so a
// restarted process resumes with everything previously merged.
type DurableCache struct {
	db *sql.DB
}

// NewDurableCache opens (or creates) the SQLite database at dbPath and
// creates both tables if they are absent.
func NewDurableCache(dbPath string) (*DurableCache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrStorageUnavailable, err)
	}
	// One connection keeps the merge transaction and later reads on the same
	// handle, and sidesteps SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %w", ErrStorageUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: set WAL mode: %w", ErrStorageUnavailable, err)
	}

	c := &DurableCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrStorageUnavailable, err)
	}

	log.Printf("[INFO] sqlite cache opened: %s", dbPath)
	return c, nil
}

func (c *DurableCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cached_dates (
			date TEXT NOT NULL PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS announcements (
			date          TEXT NOT NULL,
			ticker        TEXT NOT NULL,
			period        TEXT NOT NULL,
			market_cap_mm TEXT,
			PRIMARY KEY (date, ticker)
		)`,
	}

	for i, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec migration %d: %w", i, err)
		}
	}
	return nil
}

// MissingDates binds the candidate dates as one JSON array and lets SQLite
// take the set difference against cached_dates. The array index of each
// surviving date maps the answer back onto the caller's slice.
func (c *DurableCache) MissingDates(dates []time.Time) ([]time.Time, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = model.DateKey(d)
	}
	param, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("%w: encode dates: %w", ErrInvalidArgument, err)
	}

	rows, err := c.db.Query(`SELECT MIN(candidate.key)
		FROM json_each(?) AS candidate
		WHERE candidate.value NOT IN (SELECT date FROM cached_dates)
		GROUP BY candidate.value
		ORDER BY MIN(candidate.key)`, string(param))
	if err != nil {
		return nil, fmt.Errorf("%w: query missing dates: %w", ErrStorageReadFailed, err)
	}
	defer rows.Close()

	var missing []time.Time
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("%w: scan missing date: %w", ErrStorageReadFailed, err)
		}
		if idx < 0 || idx >= len(dates) {
			return nil, fmt.Errorf("%w: missing date index %d out of range", ErrStorageReadFailed, idx)
		}
		missing = append(missing, dates[idx])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate missing dates: %w", ErrStorageReadFailed, err)
	}
	return missing, nil
}

// Merge upserts coverage rows and announcement rows in a single transaction.
// Any failure rolls both back.
func (c *DurableCache) Merge(dates []time.Time, announcements []model.Announcement) error {
	if len(dates) == 0 {
		return nil
	}
	if err := validateMerge(dates, announcements); err != nil {
		return err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorageWriteFailed, err)
	}
	if err := mergeTx(tx, dates, announcements); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %w", ErrStorageWriteFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorageWriteFailed, err)
	}
	return nil
}

func mergeTx(tx *sql.Tx, dates []time.Time, announcements []model.Announcement) error {
	dateStmt, err := tx.Prepare(`INSERT OR REPLACE INTO cached_dates (date) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare cached_dates upsert: %w", err)
	}
	defer dateStmt.Close()
	for _, d := range dates {
		if _, err := dateStmt.Exec(model.DateKey(d)); err != nil {
			return fmt.Errorf("upsert cached date %s: %w", model.DateKey(d), err)
		}
	}

	if len(announcements) == 0 {
		return nil
	}
	annStmt, err := tx.Prepare(`INSERT OR REPLACE INTO announcements
		(date, ticker, period, market_cap_mm)
		VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare announcements upsert: %w", err)
	}
	defer annStmt.Close()
	for _, a := range announcements {
		if _, err := annStmt.Exec(model.DateKey(a.Date), a.Ticker, string(model.ParseWhen(string(a.When))), a.MarketCapMM); err != nil {
			return fmt.Errorf("upsert announcement %s: %w", a.Key(), err)
		}
	}
	return nil
}

// FetchRange scans announcements between the two dates inclusive. A read
// failure returns no rows at all.
func (c *DurableCache) FetchRange(start, end time.Time) ([]model.Announcement, error) {
	from, to := rangeBounds(start, end)

	rows, err := c.db.Query(`SELECT date, ticker, period, market_cap_mm
		FROM announcements
		WHERE date BETWEEN ? AND ?
		ORDER BY date, ticker`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: query announcements: %w", ErrStorageReadFailed, err)
	}
	defer rows.Close()

	var out []model.Announcement
	for rows.Next() {
		var (
			dateKey, period string
			a               model.Announcement
		)
		if err := rows.Scan(&dateKey, &a.Ticker, &period, &a.MarketCapMM); err != nil {
			return nil, fmt.Errorf("%w: scan announcement: %w", ErrStorageReadFailed, err)
		}
		if a.Date, err = model.ParseDate(dateKey); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageReadFailed, err)
		}
		a.When = model.ParseWhen(period)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate announcements: %w", ErrStorageReadFailed, err)
	}
	return out, nil
}

func (c *DurableCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	log.Println("[INFO] closing sqlite cache")
	return c.db.Close()
}
