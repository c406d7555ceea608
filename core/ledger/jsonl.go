package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/civicdispatch/core/logger"
	"github.com/kilianp07/civicdispatch/core/model"
)

// Option configures a file-backed ledger.
type Option func(*fileOptions)

type fileOptions struct {
	log logger.Logger
}

// WithLogger reports unreadable ledger lines through log.
func WithLogger(log logger.Logger) Option {
	return func(o *fileOptions) { o.log = log }
}

func newFileOptions(opts []Option) fileOptions {
	var o fileOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// lineReader scans ledger files and keeps count of the lines it could not
// decode.
type lineReader struct {
	log     logger.Logger
	skipped atomic.Uint64
}

func (r *lineReader) skip(path string, line int, err error) {
	r.skipped.Add(1)
	if r.log != nil {
		r.log.Warnf("ledger: skipping unreadable line %d of %s: %v", line, path, err)
	}
}

// Skipped returns how many lines could not be decoded since the ledger was
// opened.
func (r *lineReader) Skipped() uint64 { return r.skipped.Load() }

// JSONL appends every round to a JSON lines file. The current record of an
// issue is its last line in the file.
type JSONL struct {
	lineReader
	path string
	mu   sync.Mutex
}

func NewJSONL(path string, opts ...Option) (*JSONL, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	o := newFileOptions(opts)
	return &JSONL{lineReader: lineReader{log: o.log}, path: path}, nil
}

func (s *JSONL) RecordRound(_ context.Context, issueID string, res model.DispatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(newEntry(issueID, res))
}

func (s *JSONL) CurrentRecord(ctx context.Context, issueID string) (SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readEntries(ctx, []string{s.path}, Query{IssueID: issueID})
	if err != nil {
		return SubmissionRecord{}, err
	}
	if len(entries) == 0 {
		return EmptyRecord(issueID), nil
	}
	return entries[len(entries)-1].Record(), nil
}

func (s *JSONL) History(ctx context.Context, q Query) ([]RoundEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readEntries(ctx, []string{s.path}, q)
}

func (s *JSONL) Close() error { return nil }

// RotatingJSONL is a JSONL ledger whose file is rotated by size and age.
// History spans the rotated backups still on disk and the active file,
// oldest first. Backups pruned by MaxBackups or MaxAge drop out of History,
// so current records are kept in a snapshot file next to the log
// ("<name>.current.json") rewritten on every round.
type RotatingJSONL struct {
	lineReader
	mu       sync.Mutex
	logger   *lumberjack.Logger
	path     string
	snapshot string
	current  map[string]RoundEntry
}

// NewRotatingJSONL creates a ledger with rotation limits in megabytes and days.
// Current records are loaded from the snapshot and brought up to date with
// any newer rounds found in the log.
func NewRotatingJSONL(path string, maxSizeMB, maxBackups, maxAgeDays int, opts ...Option) (*RotatingJSONL, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	o := newFileOptions(opts)
	s := &RotatingJSONL{
		lineReader: lineReader{log: o.log},
		logger:     lj,
		path:       path,
		snapshot:   strings.TrimSuffix(path, filepath.Ext(path)) + ".current.json",
		current:    map[string]RoundEntry{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RotatingJSONL) load() error {
	data, err := os.ReadFile(s.snapshot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(data, &s.current); err != nil {
			return fmt.Errorf("read %s: %w", s.snapshot, err)
		}
	}
	files, err := s.files()
	if err != nil {
		return err
	}
	entries, err := s.readEntries(context.Background(), files, Query{})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if prev, ok := s.current[e.IssueID]; !ok || !e.RecordedAt.Before(prev.RecordedAt) {
			s.current[e.IssueID] = e
		}
	}
	return nil
}

func (s *RotatingJSONL) RecordRound(_ context.Context, issueID string, res model.DispatchResult) error {
	e := newEntry(issueID, res)
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// One Write per line so lumberjack never splits an entry across files.
	if _, err := s.logger.Write(append(b, '\n')); err != nil {
		return err
	}
	prev, had := s.current[issueID]
	s.current[issueID] = e
	if err := s.writeSnapshot(); err != nil {
		if had {
			s.current[issueID] = prev
		} else {
			delete(s.current, issueID)
		}
		return err
	}
	return nil
}

// writeSnapshot replaces the snapshot file through a rename so readers never
// see a partial file.
func (s *RotatingJSONL) writeSnapshot() error {
	data, err := json.Marshal(s.current)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.snapshot), filepath.Base(s.snapshot)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	done := false
	defer func() {
		if !done {
			_ = os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.snapshot); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	done = true
	return nil
}

func (s *RotatingJSONL) CurrentRecord(_ context.Context, issueID string) (SubmissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.current[issueID]
	if !ok {
		return EmptyRecord(issueID), nil
	}
	return e.Record(), nil
}

func (s *RotatingJSONL) History(ctx context.Context, q Query) ([]RoundEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	return s.readEntries(ctx, files, q)
}

// Rotate closes the active file and starts a new one.
func (s *RotatingJSONL) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Rotate()
}

func (s *RotatingJSONL) Close() error {
	return s.logger.Close()
}

// files lists lumberjack backups ("name-<timestamp>.ext") in chronological
// order followed by the active file.
func (s *RotatingJSONL) files() ([]string, error) {
	dir := filepath.Dir(s.path)
	ext := filepath.Ext(s.path)
	prefix := strings.TrimSuffix(filepath.Base(s.path), ext) + "-"
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(prefix)+"*"+globEscape(ext)))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	if _, err := os.Stat(s.path); err == nil {
		matches = append(matches, s.path)
	}
	return matches, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

func (r *lineReader) readEntries(ctx context.Context, files []string, q Query) ([]RoundEntry, error) {
	res := []RoundEntry{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res, err = r.scanEntries(f, path, q, res)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return res, nil
}

func (r *lineReader) scanEntries(rd io.Reader, path string, q Query, res []RoundEntry) ([]RoundEntry, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var e RoundEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			r.skip(path, line, err)
			continue
		}
		if q.Matches(e) {
			res = append(res, e)
		}
	}
	return res, scanner.Err()
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
