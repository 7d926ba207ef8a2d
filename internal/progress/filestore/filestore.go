// Package filestore provides a [progress.Store] that keeps attempts and saved
// phrases as append-only JSON lines in local files. Weak words and the
// current phrase bank are derived on read. It suits a single process with
// modest history; use the postgres store for anything larger.
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/nclamvn/teacherAI/internal/progress"
)

// Compile-time interface check.
var _ progress.Store = (*FileStore)(nil)

// maxLine bounds a single JSON line. Attempts with long transcripts and many
// mistakes stay well below it.
const maxLine = 1 << 20

// PhrasesFile is the phrase log's name next to the attempts file unless
// [WithPhrasesFile] says otherwise.
const PhrasesFile = "phrases.jsonl"

// Option configures a [FileStore].
type Option func(*FileStore)

// WithPhrasesFile stores saved phrases in path.
func WithPhrasesFile(path string) Option {
	return func(s *FileStore) {
		if path != "" {
			s.phrases = path
		}
	}
}

// FileStore persists attempts and phrases as JSON lines. Thread-safe for
// concurrent use within one process.
type FileStore struct {
	mu      sync.Mutex
	path    string
	phrases string
}

// New creates a FileStore that writes attempts to path. The files and their
// parent directories are created on the first write.
func New(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:    path,
		phrases: filepath.Join(filepath.Dir(path), PhrasesFile),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the attempts file path.
func (s *FileStore) Path() string { return s.path }

// PhrasesPath returns the phrase log path.
func (s *FileStore) PhrasesPath() string { return s.phrases }

// RecordAttempt appends a to the attempts file.
func (s *FileStore) RecordAttempt(_ context.Context, a progress.Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return s.appendLine(s.path, a)
}

// WeakWords aggregates the user's attempts into weak word counters.
func (s *FileStore) WeakWords(ctx context.Context, userID string, limit int) ([]progress.WeakWord, error) {
	attempts, err := s.attempts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return progress.AggregateWeakWords(attempts, limit), nil
}

// Attempts returns the user's attempts, newest first.
func (s *FileStore) Attempts(ctx context.Context, userID string, limit int) ([]progress.Attempt, error) {
	attempts, err := s.attempts(ctx, userID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(attempts, func(a, b progress.Attempt) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return attempts[:min(len(attempts), progress.ClampLimit(limit))], nil
}

// SavePhrase appends p to the phrase log. Re-saving a phrase appends a new
// line that supersedes the old one on read.
func (s *FileStore) SavePhrase(_ context.Context, p progress.Phrase) error {
	p, err := p.Normalize(time.Now())
	if err != nil {
		return err
	}
	return s.appendLine(s.phrases, p)
}

// Phrases replays the user's phrase log.
func (s *FileStore) Phrases(ctx context.Context, userID, topic string, limit int) ([]progress.Phrase, error) {
	log, err := readLines(ctx, s, s.phrases, func(p progress.Phrase) bool { return p.UserID == userID })
	if err != nil {
		return nil, err
	}
	return progress.LatestPhrases(log, topic, limit), nil
}

// Ping checks that the directories holding the files exist or can be
// created.
func (s *FileStore) Ping(context.Context) error {
	for _, p := range []string{s.path, s.phrases} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("filestore: ping: %w", err)
		}
	}
	return nil
}

func (s *FileStore) attempts(ctx context.Context, userID string) ([]progress.Attempt, error) {
	return readLines(ctx, s, s.path, func(a progress.Attempt) bool { return a.UserID == userID })
}

// appendLine writes v as one JSON line at the end of path.
func (s *FileStore) appendLine(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("filestore: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filestore: create dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("filestore: write: %w", err)
	}
	return nil
}

// readLines decodes every record in path that keep accepts, in file order.
// Lines that fail to decode are skipped so one torn write does not hide the
// rest of the history. A missing file reads as empty.
func readLines[T any](ctx context.Context, s *FileStore, path string, keep func(T) bool) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: open file: %w", err)
	}
	defer f.Close()

	out := []T{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			continue
		}
		if keep(v) {
			out = append(out, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("filestore: read: %w", err)
	}
	return out, nil
}
