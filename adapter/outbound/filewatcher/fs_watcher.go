package filewatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// DefaultDebounce collapses the burst of events an editor or a token refresher produces
const DefaultDebounce = 250 * time.Millisecond

// FsWatcher reports changes of individual files. fsnotify watches their parent
// directories so atomic replace-by-rename and deletion are seen too.
type FsWatcher struct {
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	events       chan outbound.FileChangeEvent
	errors       chan error
	debounced    chan outbound.FileChangeEvent
	debouncer    map[string]*time.Timer
	watchedDirs  map[string]bool
	watchedFiles map[string]bool
	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	running      bool
	stopped      bool
	wg           sync.WaitGroup
}

func NewFSWatcher(debounce time.Duration) (*FsWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())

	fw := &FsWatcher{
		watcher:      fsWatcher,
		debounce:     debounce,
		events:       make(chan outbound.FileChangeEvent, 100),
		errors:       make(chan error, 10),
		debounced:    make(chan outbound.FileChangeEvent, 100),
		debouncer:    make(map[string]*time.Timer),
		watchedDirs:  make(map[string]bool),
		watchedFiles: make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}

	fw.wg.Add(2)
	go fw.filterEvents()
	go fw.forwardEvents()

	return fw, nil
}

func (fw *FsWatcher) Watch(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return fmt.Errorf("file watcher is stopped")
	}

	dir := filepath.Dir(absPath)
	if !fw.watchedDirs[dir] {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.watchedDirs[dir] = true
	}

	fw.watchedFiles[absPath] = true
	fw.running = true
	return nil
}

// Stop releases the watcher and closes the Events and Errors channels. Safe to call more than once.
func (fw *FsWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	fw.running = false
	fw.cancel()
	for _, timer := range fw.debouncer {
		timer.Stop()
	}
	fw.debouncer = make(map[string]*time.Timer)
	fw.mu.Unlock()

	closeErr := fw.watcher.Close()
	fw.wg.Wait()

	close(fw.events)
	close(fw.errors)

	if closeErr != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", closeErr)
	}
	return nil
}

func (fw *FsWatcher) Events() <-chan outbound.FileChangeEvent {
	return fw.events
}

func (fw *FsWatcher) Errors() <-chan error {
	return fw.errors
}

func (fw *FsWatcher) IsWatching() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FsWatcher) filterEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if change := fw.convertEvent(event); change != nil {
				fw.debounceEvent(*change)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			default:
			}
		}
	}
}

func (fw *FsWatcher) forwardEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return
		case event := <-fw.debounced:
			select {
			case fw.events <- event:
			case <-fw.ctx.Done():
				return
			}
		}
	}
}

// debounceEvent restarts the file's timer; only the last event of a burst is delivered
func (fw *FsWatcher) debounceEvent(event outbound.FileChangeEvent) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return
	}
	if timer, exists := fw.debouncer[event.FilePath]; exists {
		timer.Stop()
	}

	fw.debouncer[event.FilePath] = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		delete(fw.debouncer, event.FilePath)
		fw.mu.Unlock()

		select {
		case fw.debounced <- event:
		case <-fw.ctx.Done():
		}
	})
}

// convertEvent keeps events of watched files only
func (fw *FsWatcher) convertEvent(event fsnotify.Event) *outbound.FileChangeEvent {
	path := filepath.Clean(event.Name)

	fw.mu.Lock()
	watched := fw.watchedFiles[path]
	fw.mu.Unlock()
	if !watched {
		return nil
	}

	var eventType string
	switch {
	case event.Has(fsnotify.Create):
		eventType = outbound.FileCreated
	case event.Has(fsnotify.Write):
		eventType = outbound.FileModified
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		eventType = outbound.FileRemoved
	default:
		return nil
	}

	return &outbound.FileChangeEvent{
		FilePath:  path,
		EventType: eventType,
	}
}
