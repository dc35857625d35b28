package rules

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a rules file when it changes on disk. A reload that fails
// to parse or validate is logged and discarded; the previous rule set stays
// active.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Set)
	logger   *zap.Logger
	stop     chan struct{}
}

// Watch starts watching path. onChange is called with each successfully
// loaded rule set, including edits that recreate the file (editors often
// write via rename).
func Watch(path string, onChange func(*Set), logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rules watcher: %w", err)
	}
	// Watch the directory, not the file: rename-based saves replace the
	// inode and would silently detach a file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch rules dir: %w", err)
	}
	w := &Watcher{
		path:     path,
		watcher:  fw,
		onChange: onChange,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	target := filepath.Clean(w.path)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	set, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("rules reload rejected, keeping previous set",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}
	w.logger.Info("rules reloaded",
		zap.String("path", w.path),
		zap.Int("patterns", len(set.Patterns)),
		zap.Int("chains", len(set.Chains)),
		zap.Int("compensation_tiers", len(set.CompensationTiers)))
	w.onChange(set)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}
