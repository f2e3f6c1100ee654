package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rollingWriter is a small, dependency-free daily/hourly log roller: the
// teacher's pkg/logging describes the same LOG_ROLL vocabulary without a
// concrete file backend, so this is built directly on os.OpenFile rather
// than pulling in lumberjack, per DESIGN.md.
type rollingWriter struct {
	mu      sync.Mutex
	dir     string
	roll    Roll
	current *os.File
	period  string
}

func newRollingWriter(dir string, roll Roll) (*rollingWriter, error) {
	if roll == "" {
		roll = RollDaily
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log directory %s: %w", dir, err)
	}
	w := &rollingWriter{dir: dir, roll: roll}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rollingWriter) periodFor(t time.Time) string {
	if w.roll == RollHourly {
		return t.Format("2006-01-02-15")
	}
	return t.Format("2006-01-02")
}

func (w *rollingWriter) rotateIfNeeded() error {
	period := w.periodFor(time.Now())
	if period == w.period && w.current != nil {
		return nil
	}

	path := filepath.Join(w.dir, fmt.Sprintf("cipherstream-%s.log", period))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file %s: %w", path, err)
	}

	if w.current != nil {
		_ = w.current.Close()
	}
	w.current = f
	w.period = period
	return nil
}

func (w *rollingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return w.current.Write(p)
}

func (w *rollingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	return w.current.Close()
}
