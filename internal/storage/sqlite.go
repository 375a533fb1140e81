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

	logx "cronsched/pkg/logx"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS executions (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT,
	job_id      TEXT    NOT NULL,
	job_type    TEXT    NOT NULL,
	outcome     TEXT    NOT NULL,
	started     INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	err         TEXT
);
CREATE INDEX IF NOT EXISTS executions_job ON executions(job_id, seq);
`

type sqliteStore struct {
	db     *sql.DB
	log    logx.Logger
	retain int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; pool workers record concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, retain: cfg.Retain, pruneEvery: 200}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendExecution(ctx context.Context, e Execution) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.Started.IsZero() {
		e.Started = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions(id, job_id, job_type, outcome, started, duration_ns, err)
		 VALUES(?,?,?,?,?,?,?)`,
		nullStr(e.ID), e.JobID, e.JobType, string(e.Outcome), e.Started.UnixNano(), int64(e.Duration), nullStr(e.Error),
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if perr := s.prune(pctx); perr != nil {
			s.log.Debug("history prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) RecentExecutions(ctx context.Context, jobID string, limit int) ([]Execution, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = s.retain
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, job_type, outcome, started, duration_ns, err
		 FROM executions WHERE job_id = ? ORDER BY seq DESC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var (
			e            Execution
			id, errText  sql.NullString
			outcome      string
			started, dur int64
		)
		if err := rows.Scan(&id, &e.JobID, &e.JobType, &outcome, &started, &dur, &errText); err != nil {
			return nil, err
		}
		e.ID = id.String
		e.Error = errText.String
		e.Outcome = Outcome(outcome)
		e.Started = time.Unix(0, started)
		e.Duration = time.Duration(dur)
		out = append(out, e)
	}
	return out, rows.Err()
}

// prune keeps the newest retain rows per job.
func (s *sqliteStore) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM executions WHERE seq IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (PARTITION BY job_id ORDER BY seq DESC) AS rn
				FROM executions
			) WHERE rn > ?
		)`, s.retain)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
