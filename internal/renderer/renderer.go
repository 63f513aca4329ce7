package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/asciicanvas/internal/renderer/backend"
	"github.com/dshills/asciicanvas/internal/renderer/core"
	"github.com/dshills/asciicanvas/internal/renderer/dirty"
	"github.com/dshills/asciicanvas/internal/renderer/queue"
)

// Errors returned by the frame lifecycle.
var (
	// ErrFrameInProgress indicates BeginFrame was called while a frame is open.
	ErrFrameInProgress = errors.New("frame already in progress")

	// ErrNoFrame indicates EndFrame was called without an open frame.
	ErrNoFrame = errors.New("no frame in progress")
)

// Logger is the logging surface the renderer writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Options configures the renderer.
type Options struct {
	// Queue budget per scheduled pass
	FrameTimeLimit time.Duration // Zero disables the time budget
	BatchLimit     int           // Zero disables the batch cap

	// Dirty tracking
	MaxDirtyRects     int     // Rect count above which rects merge
	MergeDistance     int     // Gap in cells across which rects merge
	CoalesceThreshold float64 // Dirty area ratio forcing a full redraw (0 = off)

	// Fill is the cell cleared regions are reset to.
	Fill backend.BufferCell

	// Scheduler runs queued render passes. Nil means passes only run
	// through ProcessQueue or Flush.
	Scheduler queue.Scheduler

	Logger Logger
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		FrameTimeLimit: queue.DefaultFrameTimeLimit,
		BatchLimit:     queue.DefaultBatchLimit,
		MaxDirtyRects:  dirty.DefaultMaxRects,
		MergeDistance:  dirty.DefaultMergeDistance,
		Fill:           backend.EmptyCell(),
	}
}

// Stats contains renderer statistics.
type Stats struct {
	Frames        uint64        // Completed frames
	FullRedraws   uint64        // Frames that swapped the whole buffer
	CellsUpdated  uint64        // Changes applied to the backend
	LastChanges   int           // Changes in the last frame
	LastFrameTime time.Duration // Begin to end of the last frame
	Dirty         dirty.TrackerStats
	Queue         queue.Stats
}

// Renderer owns the frame lifecycle. Only the renderer swaps its buffer.
type Renderer struct {
	mu sync.Mutex

	opts    Options
	backend backend.Backend
	logger  Logger

	buffer  *backend.DoubleBuffer
	tracker *dirty.Tracker
	queue   *queue.Queue

	// Open frame state
	inFrame    bool
	frameFull  bool
	frameRects []core.Rect
	frameStart time.Time

	stats Stats
}

// New creates a renderer sized to the backend.
func New(b backend.Backend, opts Options) *Renderer {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	width, height := b.Size()

	buffer := backend.NewDoubleBuffer(width, height)
	buffer.SetFill(opts.Fill)

	tracker := dirty.NewTracker(width, height)
	if opts.MaxDirtyRects > 0 {
		tracker.SetMaxRects(opts.MaxDirtyRects)
	}
	tracker.SetMergeDistance(opts.MergeDistance)
	tracker.SetCoalesceThreshold(opts.CoalesceThreshold)
	// Nothing has been displayed yet
	tracker.MarkFullRedraw()

	r := &Renderer{
		opts:    opts,
		backend: b,
		logger:  opts.Logger,
		buffer:  buffer,
		tracker: tracker,
		queue: queue.New(queue.Options{
			FrameTimeLimit: opts.FrameTimeLimit,
			BatchLimit:     opts.BatchLimit,
			Scheduler:      opts.Scheduler,
			Logger:         opts.Logger,
		}),
	}

	r.queue.SetProcessor(func() {
		if _, _, err := r.ProcessQueue(context.Background()); err != nil {
			r.logger.Warn("scheduled render pass: %v", err)
		}
	})

	// Register resize handler
	b.OnResize(func(w, h int) {
		r.Resize(w, h)
	})

	return r
}

// Queue returns the render queue, for registering error listeners.
func (r *Renderer) Queue() *queue.Queue {
	return r.queue
}

// Size returns the buffer dimensions.
func (r *Renderer) Size() (width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffer.Size()
}

// BeginFrame opens a frame. The back buffer is cleared inside the dirty
// rectangles, or entirely when a full redraw is pending, and dirty state is
// consumed so marks made during the frame apply to the next one.
func (r *Renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFrame {
		return ErrFrameInProgress
	}

	rects, full := r.tracker.DirtyRects()
	r.tracker.Clear()

	if full {
		r.buffer.Clear()
	} else {
		for _, rect := range rects {
			r.buffer.ClearRect(rect)
		}
	}

	r.inFrame = true
	r.frameFull = full
	r.frameRects = rects
	r.frameStart = time.Now()
	return nil
}

// InFrame returns true while a frame is open.
func (r *Renderer) InFrame() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFrame
}

// Damage returns the area the open frame cleared and will swap. Full is
// true when the whole buffer is redrawn. Outside a frame both are zero.
func (r *Renderer) Damage() (rects []core.Rect, full bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return nil, false
	}
	return append([]core.Rect(nil), r.frameRects...), r.frameFull
}

// SetCell draws into the back buffer. Cells outside the frame's dirty area
// are kept but not displayed until that area is swapped.
func (r *Renderer) SetCell(x, y int, cell backend.BufferCell) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer.SetCell(x, y, cell)
}

// EndFrame swaps the area the frame began with, applies the changes to the
// backend and shows them.
func (r *Renderer) EndFrame() ([]backend.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inFrame {
		return nil, ErrNoFrame
	}

	var changes []backend.Change
	if r.frameFull {
		changes = r.buffer.ForceSwap()
		r.stats.FullRedraws++
	} else {
		for _, rect := range r.frameRects {
			changes = append(changes, r.buffer.SwapRect(rect)...)
		}
	}

	if len(changes) > 0 {
		backend.Apply(r.backend, changes)
		r.backend.Show()
	}

	r.inFrame = false
	r.frameRects = nil
	r.stats.Frames++
	r.stats.CellsUpdated += uint64(len(changes))
	r.stats.LastChanges = len(changes)
	r.stats.LastFrameTime = time.Since(r.frameStart)

	r.logger.Debug("frame %d: %d changes (full=%v) in %s",
		r.stats.Frames, len(changes), r.frameFull, r.stats.LastFrameTime)
	return changes, nil
}

// RenderImmediate runs begin, draw and end synchronously. The frame is
// closed even when draw fails.
func (r *Renderer) RenderImmediate(draw func(s queue.Surface) error) ([]backend.Change, error) {
	if err := r.BeginFrame(); err != nil {
		return nil, err
	}

	drawErr := safeDraw(draw, r)
	changes, err := r.EndFrame()
	if drawErr != nil {
		return changes, fmt.Errorf("render: %w", drawErr)
	}
	return changes, err
}

func safeDraw(draw func(s queue.Surface) error, s queue.Surface) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("draw panicked: %v", rec)
		}
	}()
	return draw(s)
}

// QueueRender queues a task for a later pass. A task with bounds marks them
// dirty so the pass redraws that area.
func (r *Renderer) QueueRender(task queue.Task) (string, error) {
	if task.Bounds != nil {
		r.tracker.MarkRect(*task.Bounds)
	}
	return r.queue.Add(task)
}

// ProcessQueue runs one budgeted queue pass inside a frame.
func (r *Renderer) ProcessQueue(ctx context.Context) (queue.Result, []backend.Change, error) {
	return r.runPass(ctx, r.queue.Process)
}

// Flush drains the whole queue inside one frame, ignoring the budget.
func (r *Renderer) Flush(ctx context.Context) (queue.Result, []backend.Change, error) {
	return r.runPass(ctx, r.queue.ProcessAll)
}

func (r *Renderer) runPass(ctx context.Context, pass func(context.Context, queue.Surface) (queue.Result, error)) (queue.Result, []backend.Change, error) {
	if err := r.BeginFrame(); err != nil {
		return queue.Result{}, nil, err
	}

	res, passErr := pass(ctx, r)
	changes, err := r.EndFrame()
	if passErr != nil {
		return res, changes, passErr
	}
	return res, changes, err
}

// Resize reallocates the buffer and forces a full redraw.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer.Resize(width, height)
	r.tracker.SetScreenSize(width, height)
	if r.inFrame {
		r.frameFull = true
	}
	r.logger.Debug("resize to %dx%d", width, height)
}

// MarkCell marks a single cell for redraw.
func (r *Renderer) MarkCell(x, y int) {
	r.tracker.MarkCell(x, y)
}

// MarkCells marks every keyed position for redraw.
func (r *Renderer) MarkCells(keys []core.Key) {
	r.tracker.MarkCells(keys)
}

// MarkRect marks a rectangle for redraw.
func (r *Renderer) MarkRect(rect core.Rect) {
	r.tracker.MarkRect(rect)
}

// MarkFullRedraw forces the next frame to redraw everything.
func (r *Renderer) MarkFullRedraw() {
	r.tracker.MarkFullRedraw()
}

// NeedsRender returns true if a frame would change something.
func (r *Renderer) NeedsRender() bool {
	return r.tracker.IsDirty() || r.queue.Len() > 0
}

// String returns the displayed content as newline separated rows.
func (r *Renderer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffer.String()
}

// CharArray returns the displayed characters indexed [y][x].
func (r *Renderer) CharArray() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffer.CharArray()
}

// FrontCell returns the displayed cell at (x, y).
func (r *Renderer) FrontCell(x, y int) backend.BufferCell {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffer.FrontCell(x, y)
}

// Stats returns renderer statistics.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	s := r.stats
	r.mu.Unlock()

	s.Dirty = r.tracker.Stats()
	s.Queue = r.queue.Stats()
	return s
}
