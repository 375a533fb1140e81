package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "cronsched/pkg/logx"
)

const fileCompactEvery = 1000

// fileStore keeps the history in one append-only JSON Lines file and an
// in-memory index of the newest Retain executions per job.
//
// The file is rewritten from the index every fileCompactEvery appends, so it
// never grows much past Retain lines per job.
type fileStore struct {
	log    logx.Logger
	path   string
	retain int

	mu      sync.Mutex
	f       *os.File
	recent  map[string][]Execution // oldest first
	appends int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, retain: cfg.Retain, recent: map[string][]Execution{}}
	skipped, err := s.replay()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("history file has unreadable lines", logx.String("path", path), logx.Int("skipped", skipped))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.f = f
	return s, nil
}

func (s *fileStore) replay() (skipped int, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Execution
		if err := json.Unmarshal(line, &e); err != nil || e.JobID == "" {
			skipped++
			continue
		}
		s.remember(e)
	}
	return skipped, sc.Err()
}

func (s *fileStore) remember(e Execution) {
	list := append(s.recent[e.JobID], e)
	if len(list) > s.retain {
		list = list[len(list)-s.retain:]
	}
	s.recent[e.JobID] = list
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendExecution(ctx context.Context, e Execution) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.f).Encode(e); err != nil {
		return err
	}
	s.remember(e)
	s.appends++
	if s.appends%fileCompactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("history compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentExecutions(ctx context.Context, jobID string, limit int) ([]Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, ErrClosed
	}
	list := s.recent[jobID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]Execution, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// compactLocked rewrites the file from the in-memory index.
func (s *fileStore) compactLocked() error {
	var all []Execution
	for _, list := range s.recent {
		all = append(all, list...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Started.Before(all[j].Started) })

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range all {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	s.f = nil
	if err := os.Rename(tmp, s.path); err != nil {
		return s.reopenLocked(err)
	}
	return s.reopenLocked(nil)
}

func (s *fileStore) reopenLocked(prev error) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Join(prev, err)
	}
	s.f = f
	return prev
}
