package docfile

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period a Watcher waits for after the last
// file event before reporting a change.
const DefaultDebounce = 150 * time.Millisecond

// ErrNothingToWatch indicates a Watcher created without paths.
var ErrNothingToWatch = errors.New("no files to watch")

// Watcher reports changes to a set of files. Bursts of events, such as an
// editor's write-rename save, are coalesced into one callback.
//
// Parent directories are watched rather than the files, so files replaced
// by rename keep being tracked.
type Watcher struct {
	fsw   *fsnotify.Watcher
	delay time.Duration
	files map[string]bool

	mu       sync.Mutex
	timer    *time.Timer
	onChange func()
	onError  func(error)

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewWatcher starts watching paths. onChange runs on a watcher goroutine
// after each debounced burst.
func NewWatcher(paths []string, delay time.Duration, onChange func()) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNothingToWatch
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		delay:    delay,
		files:    make(map[string]bool, len(paths)),
		onChange: onChange,
		closeCh:  make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// OnError registers a handler for watcher errors.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			w.schedule()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			fn := w.onError
			w.mu.Unlock()
			if fn != nil {
				fn(err)
			}
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		select {
		case <-w.closeCh:
			return
		default:
		}
		w.onChange()
	})
}

// Close stops the watcher. No callback starts after Close returns.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}
