// Package conflict watches the workspace for filesystem writes while a run is
// executing and reports writes that fall outside the running items' declared
// resource footprints, or inside more than one footprint at once. The
// partitioner guarantees items sharing a phase have disjoint footprints, so
// either finding means the footprints in the plan were wrong.
package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ncode25/Copilot-orchestrator/internal/logging"
	"github.com/ncode25/Copilot-orchestrator/internal/workitem"
)

// Violation is a single suspicious write observed during a run.
type Violation struct {
	// Path is the written file, relative to the watched root.
	Path string `json:"path"`
	// Items are the running items whose footprints matched the path. Empty
	// means the write was undeclared: no running item claimed it.
	Items []string `json:"items,omitempty"`
	// At is when the write was last observed.
	At time.Time `json:"at"`
}

func (v Violation) String() string {
	switch len(v.Items) {
	case 0:
		return fmt.Sprintf("undeclared write to %s", v.Path)
	case 1:
		return fmt.Sprintf("write to %s outside phase of item %s", v.Path, v.Items[0])
	default:
		return fmt.Sprintf("write to %s claimed by items %s", v.Path, strings.Join(v.Items, ", "))
	}
}

const debounceInterval = 50 * time.Millisecond

// Watcher observes one workspace root and matches write events against the
// footprints of currently running items.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	log     *logging.Logger

	mu sync.RWMutex
	// active holds the footprints of items currently running.
	active map[string]workitem.ResourceSet
	// writes maps relative path -> item IDs matched at last write.
	writes map[string]Violation

	ignore   []string
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher over the given workspace root. Call Start to
// begin observing and Stop to release the underlying notifier.
func NewWatcher(root string, log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NopLogger()
	}

	w := &Watcher{
		watcher: fsw,
		root:    root,
		log:     log.WithComponent("conflict"),
		active:  make(map[string]workitem.ResourceSet),
		writes:  make(map[string]Violation),
		ignore:  []string{".git", "node_modules", ".DS_Store"},
		stopCh:  make(chan struct{}),
	}

	if err := fsw.Add(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := w.watchDirRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// watchDirRecursive registers every subdirectory; fsnotify only reports events
// for directories it watches directly.
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		base := filepath.Base(path)
		for _, ignore := range w.ignore {
			if base == ignore {
				return filepath.SkipDir
			}
		}
		if info.IsDir() {
			_ = w.watcher.Add(path)
		}
		return nil
	})
}

// ItemStarted registers a running item's footprint.
func (w *Watcher) ItemStarted(item *workitem.Item) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active[item.ID] = item.Resources
}

// ItemFinished removes an item's footprint once it is terminal.
func (w *Watcher) ItemFinished(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.active, id)
}

// Start begins processing filesystem events.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop shuts the watcher down. Safe to call more than once; the Watcher is
// not reusable after Stop.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	// Editors and toolchains emit bursts of events per save; coalesce them.
	debounce := time.NewTimer(0)
	<-debounce.C

	pending := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[event.Name] = struct{}{}
			debounce.Reset(debounceInterval)

		case <-debounce.C:
			for path := range pending {
				w.handleWrite(path)
			}
			pending = make(map[string]struct{})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleWrite(path string) {
	base := filepath.Base(path)
	for _, ignore := range w.ignore {
		if base == ignore || strings.Contains(path, string(filepath.Separator)+ignore+string(filepath.Separator)) {
			return
		}
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		// A created directory needs watching; it is not itself a write.
		_ = w.watcher.Add(path)
		return
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	w.mu.Lock()
	defer w.mu.Unlock()

	var matched []string
	for id, resources := range w.active {
		if resources.Matches(rel) {
			matched = append(matched, id)
		}
	}
	sort.Strings(matched)

	// Exactly one match is the expected case: the item wrote inside its own
	// footprint.
	if len(matched) == 1 {
		return
	}

	w.writes[rel] = Violation{Path: rel, Items: matched, At: time.Now()}
	w.log.Warn("footprint violation", "path", rel, "items", matched)
}

// Violations returns every violation observed so far, sorted by path.
func (w *Watcher) Violations() []Violation {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Violation, 0, len(w.writes))
	for _, v := range w.writes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Warnings renders violations as report warning strings.
func (w *Watcher) Warnings() []string {
	violations := w.Violations()
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.String()
	}
	return out
}

// OnItemStarted implements executor.EventHandler.
func (w *Watcher) OnItemStarted(item *workitem.Item) { w.ItemStarted(item) }

// OnItemSucceeded implements executor.EventHandler.
func (w *Watcher) OnItemSucceeded(item *workitem.Item) { w.ItemFinished(item.ID) }

// OnItemFailed implements executor.EventHandler.
func (w *Watcher) OnItemFailed(item *workitem.Item, err error) { w.ItemFinished(item.ID) }

// OnPhaseCompleted implements executor.EventHandler.
func (w *Watcher) OnPhaseCompleted(index int, succeeded, failed []string) {}
