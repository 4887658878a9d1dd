// Package watch turns file system events under a project root into engine
// requests, for hosts that cannot call the hook themselves.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ShayCichocki/phasegate/internal/engine"
)

// DefaultDebounce collapses repeated events for one path.
const DefaultDebounce = 250 * time.Millisecond

// DefaultIgnoredDirs are never watched.
var DefaultIgnoredDirs = []string{".git", ".phasegate", "node_modules", "vendor", "target", "dist", "__pycache__", ".venv"}

// Handler processes one request.
type Handler interface {
	Handle(ctx context.Context, req engine.Request) engine.Response
}

// ReportFunc is called with every request sent and its response.
type ReportFunc func(req engine.Request, resp engine.Response)

// Watcher feeds file events to a Handler.
type Watcher struct {
	root     string
	handler  Handler
	report   ReportFunc
	logger   *zap.Logger
	ignored  map[string]bool
	debounce time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
	fsw      *fsnotify.Watcher
}

// New creates a watcher over every directory below root.
func New(root string, handler Handler, report ReportFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ignored := make(map[string]bool, len(DefaultIgnoredDirs))
	for _, d := range DefaultIgnoredDirs {
		ignored[d] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		root:     root,
		handler:  handler,
		report:   report,
		logger:   logger,
		ignored:  ignored,
		debounce: DefaultDebounce,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		fsw:      fsw,
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	req, ok := RequestFor(w.root, event)
	if !ok || w.ignoredPath(event.Name) || w.duplicate(event.Name, req.ToolKind) {
		return
	}

	resp := w.handler.Handle(ctx, req)
	if w.report != nil {
		w.report(req, resp)
	}
}

// RequestFor maps an event to a request. Removes and renames become
// deletes; creates and writes become writes. Other events are dropped.
func RequestFor(root string, event fsnotify.Event) (engine.Request, bool) {
	var kind string
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		kind = "delete"
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		kind = "write"
	default:
		return engine.Request{}, false
	}

	path := event.Name
	if rel, err := filepath.Rel(root, event.Name); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	args, _ := json.Marshal(map[string]string{"file_path": filepath.ToSlash(path)})
	return engine.Request{ToolKind: kind, ToolArguments: args}, true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignoredPath(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.ignored[part] {
			return true
		}
	}
	return false
}

// duplicate reports whether the same kind of event for path was already
// handled within the debounce window.
func (w *Watcher) duplicate(path, kind string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := kind + ":" + path
	now := w.now()
	if last, ok := w.lastSeen[key]; ok && now.Sub(last) < w.debounce {
		return true
	}
	w.lastSeen[key] = now
	return false
}
