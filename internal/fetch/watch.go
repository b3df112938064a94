package fetch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"docnerd/internal/logging"
)

// TreeWatcher watches a file:// source tree for create/write/remove events
// and reports debounced batches of changed paths, so a long-running refresh
// (cmd/docnerd's `refresh --watch`) can re-index on local edits instead of
// polling mtimes on a timer.
type TreeWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	root        string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	running     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewTreeWatcher watches every directory under root recursively. root must
// already exist.
func NewTreeWatcher(root string) (*TreeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	tw := &TreeWatcher{
		watcher:     watcher,
		root:        root,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	return tw, nil
}

// Start adds every directory under root to the watcher and begins emitting
// debounced change batches on the returned channel. Start is non-blocking;
// the channel closes once ctx is cancelled or Stop is called.
func (tw *TreeWatcher) Start(ctx context.Context) (<-chan []string, error) {
	tw.mu.Lock()
	if tw.running {
		tw.mu.Unlock()
		return nil, nil
	}
	tw.running = true
	tw.mu.Unlock()

	err := filepath.WalkDir(tw.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return tw.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(chan []string, 1)
	go tw.run(ctx, out)
	return out, nil
}

func (tw *TreeWatcher) run(ctx context.Context, out chan<- []string) {
	defer close(tw.doneCh)
	defer close(out)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tw.stopCh:
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			tw.record(event)
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryFetch).Warn("tree watcher: %v", err)
		case <-ticker.C:
			tw.flush(out)
		}
	}
}

func (tw *TreeWatcher) record(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	tw.mu.Lock()
	tw.debounceMap[event.Name] = time.Now()
	tw.mu.Unlock()
}

func (tw *TreeWatcher) flush(out chan<- []string) {
	tw.mu.Lock()
	var ready []string
	cutoff := time.Now().Add(-tw.debounceDur)
	for path, at := range tw.debounceMap {
		if at.Before(cutoff) {
			ready = append(ready, path)
			delete(tw.debounceMap, path)
		}
	}
	tw.mu.Unlock()

	if len(ready) > 0 {
		select {
		case out <- ready:
		default:
		}
	}
}

// Stop halts the watcher and blocks until its goroutine exits.
func (tw *TreeWatcher) Stop() error {
	tw.mu.Lock()
	if !tw.running {
		tw.mu.Unlock()
		return nil
	}
	tw.running = false
	tw.mu.Unlock()

	close(tw.stopCh)
	<-tw.doneCh
	return tw.watcher.Close()
}
