package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is the polling interval of a [Watcher].
const DefaultWatchInterval = 5 * time.Second

// Watcher keeps a config file loaded. It polls the file's modification time
// and, when the content hash changes, parses and validates it again. Valid
// edits replace the current config and are passed to the change callback;
// invalid edits are logged once and the previous config stays current.
type Watcher struct {
	path      string
	interval  time.Duration
	onChange  func(old, new *Config)
	transform func(*Config)

	// reloadMu serialises reloads so callbacks see changes in order.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	file    fileState
	badHash [sha256.Size]byte // hash of the last rejected content

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// fileState identifies one version of the config file.
type fileState struct {
	mtime time.Time
	hash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithTransform applies fn to every loaded config before it is compared or
// published. Command-line overrides use it so that they survive reloads.
func WithTransform(fn func(*Config)) WatcherOption {
	return func(w *Watcher) { w.transform = fn }
}

// NewWatcher loads path and starts polling it in a background goroutine.
// onChange may be nil. The initial load must succeed.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.file = cfg, st

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for an in-progress reload to finish. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	<-w.stopped
}

func (w *Watcher) poll() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if w.modified() {
				_, _ = w.Reload()
			}
		}
	}
}

// modified reports whether the file's modification time moved since the
// last accepted version.
func (w *Watcher) modified() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !info.ModTime().Equal(w.file.mtime)
}

// Reload reads the file now, regardless of its modification time. It
// reports whether the content changed and was applied. A file that fails
// to load is returned as an error and leaves the current config in place.
func (w *Watcher) Reload() (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	data, mtime, err := w.readFile()
	if err != nil {
		slog.Warn("config watcher: cannot read file", "path", w.path, "err", err)
		return false, err
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	if hash == w.file.hash {
		// Touched, not edited.
		w.file.mtime = mtime
		w.mu.Unlock()
		return false, nil
	}
	repeated := hash == w.badHash
	w.mu.Unlock()

	cfg, err := w.parse(data)
	if err != nil {
		w.mu.Lock()
		w.badHash = hash
		w.file.mtime = mtime
		w.mu.Unlock()
		if !repeated {
			slog.Warn("config watcher: keeping previous configuration", "path", w.path, "err", err)
		}
		return false, err
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.file = fileState{mtime: mtime, hash: hash}
	w.mu.Unlock()

	d := Diff(old, cfg)
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"scoring_changed", d.ScoringChanged,
		"feedback_changed", d.FeedbackChanged,
		"log_level_changed", d.LogLevelChanged,
	)
	if len(d.RestartRequired) > 0 {
		slog.Warn("config watcher: changed sections need a restart to take effect", "sections", d.RestartRequired)
	}

	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

// read loads, transforms and fingerprints the file.
func (w *Watcher) read() (*Config, fileState, error) {
	data, mtime, err := w.readFile()
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := w.parse(data)
	if err != nil {
		return nil, fileState{}, err
	}
	return cfg, fileState{mtime: mtime, hash: sha256.Sum256(data)}, nil
}

func (w *Watcher) readFile() ([]byte, time.Time, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}

func (w *Watcher) parse(data []byte) (*Config, error) {
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if w.transform != nil {
		w.transform(cfg)
	}
	return cfg, nil
}
