package app

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/dshills/asciicanvas/internal/docfile"
	"github.com/dshills/asciicanvas/internal/renderer"
	"github.com/dshills/asciicanvas/internal/renderer/backend"
)

// reloadSignal tags the interrupt event the document watcher posts.
type reloadSignal struct{}

// Run drives the backend until quit, Stop or ctx cancellation. Input is
// handled as it arrives and frames are drawn on the configured frame
// interval when anything changed.
func (app *Application) Run(ctx context.Context) error {
	b := app.opts.Backend
	if b == nil {
		return ErrNoBackend
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := b.Init(); err != nil {
		return &InitError{Component: "backend", Err: err}
	}
	defer b.Shutdown()
	// Runs before Shutdown so the poller sees done once the screen closes.
	defer app.Stop()

	app.attach(b)

	if app.opts.Watch {
		if err := app.startWatcher(); err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
		defer app.stopWatcher()
	}

	events := make(chan backend.Event, 16)
	go app.pollEvents(b, events)

	ticker := time.NewTicker(app.cfg.FrameInterval())
	defer ticker.Stop()

	app.logger.Info("viewing %s", app.opts.DocPath)
	app.render(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-app.done:
			return nil
		case ev := <-events:
			if err := app.HandleEvent(ev); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				return err
			}
		case <-ticker.C:
			if app.needsRender() {
				app.render(ctx)
			}
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (app *Application) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

// attach creates the renderer for b.
func (app *Application) attach(b backend.Backend) {
	r := renderer.New(b, app.rendererOptions())
	app.mu.Lock()
	app.renderer = r
	app.mu.Unlock()
	app.dirty.Store(true)
}

func (app *Application) pollEvents(b backend.Backend, out chan<- backend.Event) {
	for {
		ev := b.PollEvent()
		select {
		case <-app.done:
			return
		default:
		}
		if ev.Type == backend.EventNone {
			continue
		}
		select {
		case out <- ev:
		case <-app.done:
			return
		}
	}
}

func (app *Application) needsRender() bool {
	if app.dirty.Load() {
		return true
	}
	r := app.Renderer()
	return r != nil && r.NeedsRender()
}

// render draws one frame of the current canvas.
func (app *Application) render(ctx context.Context) {
	app.mu.Lock()
	c, r := app.canvas, app.renderer
	app.mu.Unlock()
	if r == nil {
		return
	}
	app.dirty.Store(false)

	start := time.Now()
	changes, err := c.Render(ctx, r)
	app.metrics.RecordFrame(time.Since(start), len(changes))
	if err != nil {
		app.logger.Warn("render: %v", err)
	}
}

// HandleEvent applies one display event. It returns ErrQuit for the quit
// keys. A panic while handling is returned as a RecoveredPanicError.
func (app *Application) HandleEvent(ev backend.Event) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &RecoveredPanicError{Value: v, Stack: string(debug.Stack())}
		}
	}()

	app.metrics.RecordEvent()
	switch ev.Type {
	case backend.EventKey:
		return app.handleKey(ev)
	case backend.EventMouse:
		app.handleMouse(ev)
	case backend.EventResize:
		// The renderer resized itself through the backend callback.
		app.dirty.Store(true)
	case backend.EventInterrupt:
		if _, ok := ev.Data.(reloadSignal); ok && app.reload.Swap(false) {
			_ = app.Reload()
		}
	}
	return nil
}

func (app *Application) handleKey(ev backend.Event) error {
	switch ev.Key {
	case backend.KeyEscape, backend.KeyCtrlC:
		return ErrQuit
	case backend.KeyUp:
		app.pan(0, -1)
	case backend.KeyDown:
		app.pan(0, 1)
	case backend.KeyLeft:
		app.pan(-1, 0)
	case backend.KeyRight:
		app.pan(1, 0)
	case backend.KeyHome:
		app.Canvas().SetOffset(0, 0)
		app.dirty.Store(true)
	case backend.KeyCtrlL:
		if r := app.Renderer(); r != nil {
			r.MarkFullRedraw()
		}
		app.dirty.Store(true)
	case backend.KeyRune:
		switch ev.Rune {
		case 'q':
			return ErrQuit
		case 'r':
			_ = app.Reload()
		}
	}
	return nil
}

// pan moves the view by PanStep cells per unit, clamped so the view never
// scrolls past the document edge.
func (app *Application) pan(dx, dy int) {
	c := app.Canvas()
	docW, docH := c.Size()
	screenW, screenH := 0, 0
	if r := app.Renderer(); r != nil {
		screenW, screenH = r.Size()
	}

	x, y := c.Offset()
	x = clamp(x+dx*app.opts.PanStep, 0, max(0, docW-screenW))
	y = clamp(y+dy*app.opts.PanStep, 0, max(0, docH-screenH))
	c.SetOffset(x, y)
	app.dirty.Store(true)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func (app *Application) handleMouse(ev backend.Event) {
	if ev.MouseButton != backend.MouseLeft {
		return
	}
	c := app.Canvas()
	ox, oy := c.Offset()
	x, y := ev.MouseX+ox, ev.MouseY+oy

	var picked string
	if hits := c.HitTest(x, y); len(hits) > 0 {
		picked = hits[0]
		app.logger.Info("picked %s at %d,%d", picked, x, y)
	}
	app.mu.Lock()
	app.selected = picked
	app.mu.Unlock()
}

// startWatcher (re)creates the watcher over the current document files.
func (app *Application) startWatcher() error {
	app.mu.Lock()
	files := app.doc.Files()
	b := app.opts.Backend
	app.mu.Unlock()

	w, err := docfile.NewWatcher(files, app.cfg.Watch.Debounce.Duration, func() {
		app.reload.Store(true)
		b.PostEvent(backend.Event{Type: backend.EventInterrupt, Data: reloadSignal{}})
	})
	if err != nil {
		return err
	}
	log := app.logger.WithComponent("watcher")
	w.OnError(func(err error) {
		log.Warn("watch: %v", err)
	})

	app.mu.Lock()
	old := app.watcher
	app.watcher = w
	app.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (app *Application) stopWatcher() {
	app.mu.Lock()
	w := app.watcher
	app.watcher = nil
	app.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
}
