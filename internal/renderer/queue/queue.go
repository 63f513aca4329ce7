package queue

import (
	"context"
	"errors"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Errors returned by the queue.
var (
	// ErrNilRender indicates a task without a render function.
	ErrNilRender = errors.New("render task has no render function")

	// ErrBusy indicates Process was called while a pass was running.
	ErrBusy = errors.New("render queue pass already running")
)

// Defaults for Options.
const (
	DefaultFrameTimeLimit = 12 * time.Millisecond
	DefaultBatchLimit     = 64
)

// Logger is the logging surface the queue writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Options configures a Queue.
type Options struct {
	// FrameTimeLimit stops a pass once this much time has elapsed.
	// Zero disables the limit.
	FrameTimeLimit time.Duration

	// BatchLimit stops a pass after this many tasks. Zero disables the limit.
	BatchLimit int

	// Scheduler runs deferred passes. Nil disables automatic scheduling.
	Scheduler Scheduler

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	Logger Logger
}

// DefaultOptions returns the default queue options with no scheduler.
func DefaultOptions() Options {
	return Options{
		FrameTimeLimit: DefaultFrameTimeLimit,
		BatchLimit:     DefaultBatchLimit,
	}
}

// Result describes one processing pass.
type Result struct {
	Executed  int
	Failed    int
	Remaining int
	Elapsed   time.Duration

	// Exhausted is true when the pass stopped on a budget rather than an
	// empty queue.
	Exhausted bool
}

// Stats contains cumulative queue counters.
type Stats struct {
	Added    uint64
	Executed uint64
	Failed   uint64
	Panicked uint64
	Removed  uint64
	Passes   uint64
	Pending  int
}

// Queue keeps render tasks sorted by priority (highest first) then
// timestamp (oldest first) and runs them in budgeted passes.
//
// At most one scheduled pass is outstanding at any time. Tasks run to
// completion; Remove and Clear only affect tasks that have not started.
type Queue struct {
	mu    sync.Mutex
	tasks []*Task
	opts  Options

	// processor runs a scheduled pass.
	processor func()

	scheduled  bool
	cancelPass func()
	seq        uint64

	listeners []func(*TaskError)

	running atomic.Bool

	added    atomic.Uint64
	executed atomic.Uint64
	failed   atomic.Uint64
	panicked atomic.Uint64
	removed  atomic.Uint64
	passes   atomic.Uint64
}

// New creates a queue with the given options.
func New(opts Options) *Queue {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.BatchLimit < 0 {
		opts.BatchLimit = 0
	}
	if opts.FrameTimeLimit < 0 {
		opts.FrameTimeLimit = 0
	}
	return &Queue{opts: opts}
}

// Options returns the queue options.
func (q *Queue) Options() Options {
	return q.opts
}

// SetProcessor sets the function a scheduled pass calls. The renderer
// installs one that processes the queue against its back buffer.
func (q *Queue) SetProcessor(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = fn
}

// OnError registers a listener for task failures.
func (q *Queue) OnError(fn func(*TaskError)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

// Add inserts a task and schedules a pass if none is pending.
// It returns the task id.
func (q *Queue) Add(task Task) (string, error) {
	if task.Render == nil {
		return "", ErrNilRender
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == 0 {
		task.Priority = DefaultPriority(task.Type)
	}
	if task.Timestamp.IsZero() {
		task.Timestamp = q.opts.Clock()
	}
	if task.Bounds != nil {
		b := *task.Bounds
		task.Bounds = &b
	}

	q.mu.Lock()
	t := &task
	i := sort.Search(len(q.tasks), func(i int) bool { return t.before(q.tasks[i]) })
	q.tasks = append(q.tasks, nil)
	copy(q.tasks[i+1:], q.tasks[i:])
	q.tasks[i] = t
	q.scheduleLocked()
	q.mu.Unlock()

	q.added.Add(1)
	return task.ID, nil
}

// scheduleLocked requests a pass unless one is already pending.
func (q *Queue) scheduleLocked() {
	if q.scheduled || q.opts.Scheduler == nil || len(q.tasks) == 0 {
		return
	}
	q.scheduled = true
	q.seq++
	seq := q.seq

	q.cancelPass = q.opts.Scheduler.Schedule(func() {
		q.mu.Lock()
		// Stale if Clear ran after scheduling
		if !q.scheduled || q.seq != seq {
			q.mu.Unlock()
			return
		}
		q.scheduled = false
		q.cancelPass = nil
		fn := q.processor
		q.mu.Unlock()

		if fn != nil {
			fn()
		}
	})
}

// IsScheduled returns true if a pass is pending.
func (q *Queue) IsScheduled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.scheduled
}

// Process runs tasks in order until the queue is empty, the frame time or
// batch limit is reached, or ctx is done. A limit is checked before each
// task starts; a running task is never interrupted. Remaining tasks stay
// queued and another pass is scheduled.
func (q *Queue) Process(ctx context.Context, s Surface) (Result, error) {
	return q.process(ctx, s, q.opts.FrameTimeLimit, q.opts.BatchLimit)
}

// ProcessAll drains the queue synchronously, ignoring both limits.
// Tasks added by running tasks are drained too.
func (q *Queue) ProcessAll(ctx context.Context, s Surface) (Result, error) {
	return q.process(ctx, s, 0, 0)
}

func (q *Queue) process(ctx context.Context, s Surface, timeLimit time.Duration, batchLimit int) (Result, error) {
	if !q.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer q.running.Store(false)

	q.passes.Add(1)
	start := q.opts.Clock()
	var res Result

	for {
		if err := ctx.Err(); err != nil {
			res.Remaining = q.Len()
			res.Elapsed = q.opts.Clock().Sub(start)
			q.reschedule()
			return res, err
		}
		if batchLimit > 0 && res.Executed >= batchLimit {
			res.Exhausted = true
			break
		}
		if timeLimit > 0 && q.opts.Clock().Sub(start) >= timeLimit {
			res.Exhausted = true
			break
		}

		task := q.pop()
		if task == nil {
			break
		}

		res.Executed++
		if terr := q.run(ctx, task, s); terr != nil {
			res.Failed++
			q.report(terr)
		}
	}

	res.Remaining = q.Len()
	res.Elapsed = q.opts.Clock().Sub(start)
	if res.Exhausted && res.Remaining == 0 {
		res.Exhausted = false
	}
	if res.Remaining > 0 {
		q.opts.Logger.Debug("render pass left %d tasks after %d in %s", res.Remaining, res.Executed, res.Elapsed)
		q.reschedule()
	}
	return res, nil
}

func (q *Queue) reschedule() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduleLocked()
}

func (q *Queue) pop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return t
}

// run executes one task, converting errors and panics into a TaskError.
func (q *Queue) run(ctx context.Context, t *Task, s Surface) (terr *TaskError) {
	q.executed.Add(1)

	defer func() {
		if r := recover(); r != nil {
			q.panicked.Add(1)
			terr = &TaskError{
				TaskID:     t.ID,
				Type:       t.Type,
				Panicked:   true,
				PanicValue: r,
				Stack:      debug.Stack(),
			}
		}
	}()

	if err := t.Render(ctx, s); err != nil {
		return &TaskError{TaskID: t.ID, Type: t.Type, Err: err}
	}
	return nil
}

func (q *Queue) report(terr *TaskError) {
	q.failed.Add(1)
	q.opts.Logger.Warn("%v", terr)

	q.mu.Lock()
	listeners := make([]func(*TaskError), len(q.listeners))
	copy(listeners, q.listeners)
	q.mu.Unlock()

	for _, fn := range listeners {
		func() {
			// A failing listener must not break the pass
			defer func() {
				if r := recover(); r != nil {
					q.opts.Logger.Error("render error listener panicked: %v", r)
				}
			}()
			fn(terr)
		}()
	}
}

// Remove removes a task that has not started. It returns false if no queued
// task has the id.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.tasks {
		if t.ID == id {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			q.removed.Add(1)
			return true
		}
	}
	return false
}

// RemoveByType removes every queued task of the given band and returns how
// many were removed.
func (q *Queue) RemoveByType(typ TaskType) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.tasks[:0]
	n := 0
	for _, t := range q.tasks {
		if t.Type == typ {
			n++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(q.tasks); i++ {
		q.tasks[i] = nil
	}
	q.tasks = kept
	q.removed.Add(uint64(n))
	return n
}

// Clear removes every queued task and cancels a pending scheduled pass.
// It returns the number of tasks removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.tasks)
	q.tasks = nil
	q.removed.Add(uint64(n))

	if q.cancelPass != nil {
		q.cancelPass()
		q.cancelPass = nil
	}
	// Invalidate a pass that already fired but has not taken the lock
	q.seq++
	q.scheduled = false
	return n
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Pending returns copies of the queued tasks in execution order.
func (q *Queue) Pending() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Task, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = *t
	}
	return out
}

// Stats returns cumulative counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Added:    q.added.Load(),
		Executed: q.executed.Load(),
		Failed:   q.failed.Load(),
		Panicked: q.panicked.Load(),
		Removed:  q.removed.Load(),
		Passes:   q.passes.Load(),
		Pending:  q.Len(),
	}
}
