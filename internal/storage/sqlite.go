package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "pirateradio/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS productions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	at       TEXT NOT NULL,
	kind     TEXT NOT NULL,
	title    TEXT,
	path     TEXT,
	bytes    INTEGER NOT NULL DEFAULT 0,
	duration REAL NOT NULL DEFAULT 0,
	ok       INTEGER NOT NULL,
	err      TEXT
);
CREATE INDEX IF NOT EXISTS idx_productions_at ON productions(at);

CREATE TABLE IF NOT EXISTS seen (
	key   TEXT PRIMARY KEY,
	until INTEGER NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log, pruneEvery: 500}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendProduction(ctx context.Context, rec ProductionRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO productions(at, kind, title, path, bytes, duration, ok, err)
		 VALUES(?,?,?,?,?,?,?,?)`,
		rec.Time.Format(time.RFC3339Nano), rec.Kind, nullStr(rec.Title), nullStr(rec.Path),
		rec.Bytes, rec.Duration, rec.OK, nullStr(rec.Error),
	)
	return err
}

func (s *sqliteStore) RecentProductions(ctx context.Context, limit int) ([]ProductionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, kind, COALESCE(title,''), COALESCE(path,''), bytes, duration, ok, COALESCE(err,'')
		 FROM productions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductionRecord
	for rows.Next() {
		var rec ProductionRecord
		var at string
		if err := rows.Scan(&at, &rec.Kind, &rec.Title, &rec.Path, &rec.Bytes, &rec.Duration, &rec.OK, &rec.Error); err != nil {
			return nil, err
		}
		rec.Time, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) MarkSeen(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO seen(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, until.UnixMilli(),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneSeen(pctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) Seen(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM seen WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ms >= time.Now().UnixMilli(), nil
}

func (s *sqliteStore) pruneSeen(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM seen WHERE until < ?`, time.Now().UnixMilli())
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
