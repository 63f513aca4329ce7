// Package app wires configuration, the scene document, the canvas and the
// renderer into the interactive terminal viewer.
package app

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dshills/asciicanvas/internal/canvas"
	"github.com/dshills/asciicanvas/internal/config"
	"github.com/dshills/asciicanvas/internal/docfile"
	"github.com/dshills/asciicanvas/internal/renderer"
	"github.com/dshills/asciicanvas/internal/renderer/backend"
)

// Options configures an Application.
type Options struct {
	// Config supplies renderer, cache and watch settings. Nil uses
	// config.Default.
	Config *config.Config

	// DocPath is the document to display.
	DocPath string

	// Watch reloads the document when it or its scripts change.
	Watch bool

	// Backend is the display Run drives. Snapshot does not need one.
	Backend backend.Backend

	// Logger defaults to NullLogger.
	Logger *Logger

	// PanStep is how many cells an arrow key moves the view. Defaults to 1.
	PanStep int
}

// Application is the viewer. It owns the canvas built from the document
// and, while running, the renderer targeting the backend. An Application
// runs at most once.
type Application struct {
	mu sync.Mutex

	opts    Options
	cfg     *config.Config
	logger  *Logger
	metrics *Metrics

	doc      *docfile.Document
	canvas   *canvas.Canvas
	renderer *renderer.Renderer
	watcher  *docfile.Watcher
	selected string

	running  atomic.Bool
	dirty    atomic.Bool
	reload   atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// New loads the document and builds its canvas.
func New(opts Options) (*Application, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = NullLogger
	}
	if opts.PanStep <= 0 {
		opts.PanStep = 1
	}

	app := &Application{
		opts:    opts,
		cfg:     opts.Config,
		logger:  opts.Logger,
		metrics: NewMetrics(),
		done:    make(chan struct{}),
	}

	doc, err := docfile.Load(opts.DocPath)
	if err != nil {
		return nil, &InitError{Component: "document", Err: err}
	}
	c, err := app.buildCanvas(doc)
	if err != nil {
		return nil, &InitError{Component: "canvas", Err: err}
	}
	app.doc = doc
	app.canvas = c
	app.dirty.Store(true)
	return app, nil
}

func (app *Application) buildCanvas(doc *docfile.Document) (*canvas.Canvas, error) {
	opts := app.cfg.CanvasOptions()
	opts.Logger = app.logger.WithComponent("canvas")
	return docfile.Build(doc, opts)
}

func (app *Application) rendererOptions() renderer.Options {
	opts := app.cfg.RendererOptions()
	opts.Logger = app.logger.WithComponent("renderer")
	return opts
}

// Canvas returns the current canvas. A reload replaces it.
func (app *Application) Canvas() *canvas.Canvas {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.canvas
}

// Renderer returns the renderer Run created, or nil before Run.
func (app *Application) Renderer() *renderer.Renderer {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.renderer
}

// Selected returns the object picked by the last click, if any.
func (app *Application) Selected() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.selected
}

// Logger returns the application logger.
func (app *Application) Logger() *Logger {
	return app.logger
}

// Metrics returns the application metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// Running reports whether Run is active.
func (app *Application) Running() bool {
	return app.running.Load()
}

// Snapshot renders the document offline at its own size and writes the
// rows to w, one per line. It drains the render queue in a single pass and
// cannot be used while Run is active.
func (app *Application) Snapshot(ctx context.Context, w io.Writer) error {
	if app.running.Load() {
		return ErrAlreadyRunning
	}
	c := app.Canvas()
	width, height := c.Size()
	nb := backend.NewNullBackend(width, height)
	if err := nb.Init(); err != nil {
		return &InitError{Component: "backend", Err: err}
	}
	r := renderer.New(nb, app.rendererOptions())
	if _, err := c.Render(ctx, r); err != nil {
		return NewComponentError("canvas", "snapshot", err)
	}
	if _, err := io.WriteString(w, r.String()+"\n"); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Reload re-reads the document and swaps in a freshly built canvas. The
// view offset carries over. On failure the current canvas stays.
func (app *Application) Reload() error {
	doc, err := docfile.Load(app.opts.DocPath)
	if err == nil {
		var c *canvas.Canvas
		if c, err = app.buildCanvas(doc); err == nil {
			app.swapCanvas(doc, c)
		}
	}
	if err != nil {
		app.metrics.RecordReload(false)
		app.logger.Warn("reload %s: %v", app.opts.DocPath, err)
		return NewComponentError("docfile", "reload", err)
	}
	app.metrics.RecordReload(true)
	app.logger.Info("reloaded %s", app.opts.DocPath)
	return nil
}

func (app *Application) swapCanvas(doc *docfile.Document, c *canvas.Canvas) {
	app.mu.Lock()
	c.SetOffset(app.canvas.Offset())
	filesChanged := !slices.Equal(app.doc.Files(), doc.Files())
	app.doc = doc
	app.canvas = c
	app.selected = ""
	r := app.renderer
	app.mu.Unlock()

	if r != nil {
		r.MarkFullRedraw()
	}
	app.dirty.Store(true)

	if filesChanged && app.opts.Watch && app.Running() {
		if err := app.startWatcher(); err != nil {
			app.logger.Warn("rewatch: %v", err)
		}
	}
}
