// Package watcher feeds solution text files dropped into a directory to the
// injection engine.
package watcher

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Alia5/ghostkey/engine"
)

// Config configures the drop directory.
type Config struct {
	Dir      string        `help:"Drop directory watched for *.txt solution files (disabled when empty)" env:"GHOSTKEY_WATCH_DIR"`
	Debounce time.Duration `help:"How long a dropped file must stay unchanged before it is consumed" default:"500ms" env:"GHOSTKEY_WATCH_DEBOUNCE"`
}

// Starter arms an injection session.
type Starter interface {
	Start(text string) error
}

// Watcher consumes *.txt files from a directory. A file that stays unchanged
// for the debounce interval is read, removed and passed to Start. While a
// session is live the file is kept and retried.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	starter   Starter
	logger    *slog.Logger
	now       func() time.Time

	// path -> last modification seen
	state   map[string]time.Time
	stateMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for cfg.Dir. Start begins watching.
func New(cfg Config, starter Starter, logger *slog.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		debounce:  cfg.Debounce,
		starter:   starter,
		logger:    logger.With("component", "watcher", "dir", dir),
		now:       time.Now,
		state:     make(map[string]time.Time),
		done:      make(chan struct{}),
	}, nil
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Start creates the directory if needed, picks up files already present and
// begins watching.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.track(filepath.Join(w.dir, entry.Name()))
		}
	}

	tick := w.debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop(tick)
	w.logger.Info("watching drop directory", "debounce", w.debounce)
	return nil
}

// Close stops watching. Files not yet consumed stay in place.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

// Pending returns the number of files waiting to settle.
func (w *Watcher) Pending() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return len(w.state)
}

func isSolutionFile(path string) bool {
	name := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(name), ".txt") && !strings.HasPrefix(name, ".")
}

func (w *Watcher) track(path string) {
	if !isSolutionFile(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.stateMu.Lock()
	w.state[path] = w.now()
	w.stateMu.Unlock()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.track(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.stateMu.Lock()
				delete(w.state, ev.Name)
				w.stateMu.Unlock()
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(tick time.Duration) {
	defer w.wg.Done()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.consumeStable()
		}
	}
}

// consumeStable hands the oldest settled file to the starter. One file per
// tick, so a burst of drops queues up behind the live session.
func (w *Watcher) consumeStable() {
	threshold := w.now().Add(-w.debounce)
	var (
		path   string
		oldest time.Time
	)
	w.stateMu.Lock()
	for p, lastMod := range w.state {
		if lastMod.After(threshold) {
			continue
		}
		if path == "" || lastMod.Before(oldest) {
			path, oldest = p, lastMod
		}
	}
	w.stateMu.Unlock()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("read dropped file", "file", path, "error", err)
		w.forget(path, oldest)
		return
	}
	text := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")

	err = w.starter.Start(text)
	if errors.Is(err, engine.ErrSessionActive) {
		w.logger.Debug("session active, keeping dropped file", "file", path)
		return
	}
	w.forget(path, oldest)
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		w.logger.Warn("remove dropped file", "file", path, "error", rmErr)
	}
	if err != nil {
		w.logger.Error("dropped file rejected", "file", path, "kind", engine.KindOf(err), "error", err)
		return
	}
	w.logger.Info("session armed from dropped file", "file", filepath.Base(path), "chars", len([]rune(text)))
}

// forget drops path from the state unless it changed since lastMod.
func (w *Watcher) forget(path string, lastMod time.Time) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if cur, ok := w.state[path]; ok && cur.Equal(lastMod) {
		delete(w.state, path)
	}
}
