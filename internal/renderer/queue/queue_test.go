package queue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/asciicanvas/internal/renderer/backend"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// recordSurface records the order cells were drawn in.
type recordSurface struct {
	chars []string
}

func (s *recordSurface) SetCell(_, _ int, cell backend.BufferCell) {
	s.chars = append(s.chars, cell.Char)
}

func drawChar(ch string) RenderFunc {
	return func(_ context.Context, s Surface) error {
		s.SetCell(0, 0, backend.BufferCell{Char: ch})
		return nil
	}
}

func newTestQueue(opts Options) (*Queue, *fakeClock) {
	clock := newFakeClock()
	opts.Clock = clock.Now
	return New(opts), clock
}

func TestTaskTypeString(t *testing.T) {
	tests := []struct {
		typ      TaskType
		expected string
		priority int
	}{
		{Background, "background", 0},
		{Grid, "grid", 10},
		{Layer, "layer", 20},
		{Object, "object", 30},
		{Selection, "selection", 40},
		{Guides, "guides", 50},
		{Overlay, "overlay", 60},
		{Cursor, "cursor", 70},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
			if got := DefaultPriority(tt.typ); got != tt.priority {
				t.Errorf("DefaultPriority = %d, want %d", got, tt.priority)
			}
			parsed, ok := ParseTaskType(strings.ToUpper(tt.expected))
			if !ok || parsed != tt.typ {
				t.Errorf("ParseTaskType(%q) = %v, %v", tt.expected, parsed, ok)
			}
		})
	}

	if _, ok := ParseTaskType("nope"); ok {
		t.Error("unknown band should not parse")
	}
	if got := TaskType(99).String(); got != "tasktype(99)" {
		t.Errorf("unknown String() = %q", got)
	}
}

func TestQueueBandOrder(t *testing.T) {
	q, clock := newTestQueue(Options{})

	// Higher bands run first regardless of insertion order
	bands := []struct {
		typ TaskType
		ch  string
	}{
		{Background, "b"},
		{Cursor, "c"},
		{Layer, "l"},
		{Overlay, "o"},
		{Grid, "g"},
	}
	for _, b := range bands {
		clock.Advance(time.Millisecond)
		if _, err := q.Add(Task{Type: b.typ, Render: drawChar(b.ch)}); err != nil {
			t.Fatal(err)
		}
	}

	s := &recordSurface{}
	if _, err := q.ProcessAll(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(s.chars, ""); got != "colgb" {
		t.Errorf("order = %q, want %q", got, "colgb")
	}
}

func TestQueueTimestampTieBreak(t *testing.T) {
	q, clock := newTestQueue(Options{})
	base := clock.Now()

	q.Add(Task{Type: Layer, Render: drawChar("2"), Timestamp: base.Add(2 * time.Second)})
	q.Add(Task{Type: Layer, Render: drawChar("1"), Timestamp: base.Add(time.Second)})
	q.Add(Task{Type: Layer, Render: drawChar("3"), Timestamp: base.Add(3 * time.Second)})
	q.Add(Task{Type: Layer, Priority: 99, Render: drawChar("!"), Timestamp: base.Add(9 * time.Second)})

	pending := q.Pending()
	var got []string
	for _, p := range pending {
		got = append(got, p.ID)
	}
	if len(pending) != 4 || pending[0].Priority != 99 {
		t.Fatalf("pending = %v", got)
	}

	s := &recordSurface{}
	q.ProcessAll(context.Background(), s)
	if order := strings.Join(s.chars, ""); order != "!123" {
		t.Errorf("order = %q, want !123", order)
	}
}

func TestQueueAddValidation(t *testing.T) {
	q, _ := newTestQueue(Options{})

	if _, err := q.Add(Task{Type: Layer}); !errors.Is(err, ErrNilRender) {
		t.Errorf("Add without render = %v, want ErrNilRender", err)
	}

	id, err := q.Add(Task{Type: Layer, Render: drawChar("x")})
	if err != nil || id == "" {
		t.Fatalf("Add = %q, %v", id, err)
	}
	if got := q.Pending()[0]; got.Priority != DefaultPriority(Layer) || got.Timestamp.IsZero() {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestQueueBatchLimit(t *testing.T) {
	q, _ := newTestQueue(Options{BatchLimit: 3})

	for i := 0; i < 10; i++ {
		q.Add(Task{Type: Object, Render: drawChar("x")})
	}

	s := &recordSurface{}
	res, err := q.Process(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed != 3 || len(s.chars) != 3 {
		t.Errorf("executed %d (%d drawn), want 3", res.Executed, len(s.chars))
	}
	if res.Remaining != 7 || !res.Exhausted {
		t.Errorf("result = %+v", res)
	}
}

func TestQueueFrameTimeLimit(t *testing.T) {
	q, clock := newTestQueue(Options{FrameTimeLimit: 12 * time.Millisecond})

	// Each synthetic slow task takes 5ms of clock time
	for i := 0; i < 10; i++ {
		q.Add(Task{Type: Object, Render: func(context.Context, Surface) error {
			clock.Advance(5 * time.Millisecond)
			return nil
		}})
	}

	res, err := q.Process(context.Background(), &recordSurface{})
	if err != nil {
		t.Fatal(err)
	}
	// Starts at 0, 5 and 10ms; the check at 15ms stops the pass
	if res.Executed != 3 {
		t.Errorf("executed = %d, want 3", res.Executed)
	}
	if res.Elapsed != 15*time.Millisecond {
		t.Errorf("elapsed = %v, want 15ms", res.Elapsed)
	}
	if res.Remaining != 7 {
		t.Errorf("remaining = %d, want 7", res.Remaining)
	}
}

func TestQueueProcessAllDrains(t *testing.T) {
	q, clock := newTestQueue(Options{FrameTimeLimit: time.Millisecond, BatchLimit: 1})

	for i := 0; i < 20; i++ {
		q.Add(Task{Type: Grid, Render: func(context.Context, Surface) error {
			clock.Advance(10 * time.Millisecond)
			return nil
		}})
	}
	// A task queued by a running task is drained too
	q.Add(Task{Type: Grid, Render: func(context.Context, Surface) error {
		q.Add(Task{Type: Background, Render: drawChar("late")})
		return nil
	}})

	res, err := q.ProcessAll(context.Background(), &recordSurface{})
	if err != nil {
		t.Fatal(err)
	}
	if q.Len() != 0 || res.Remaining != 0 {
		t.Errorf("queue not drained: %d left", q.Len())
	}
	if res.Executed != 22 {
		t.Errorf("executed = %d, want 22", res.Executed)
	}
}

func TestQueueFailuresDoNotAbortBatch(t *testing.T) {
	q, _ := newTestQueue(Options{})
	boom := errors.New("boom")

	var reported []*TaskError
	q.OnError(func(e *TaskError) { reported = append(reported, e) })
	// A panicking listener is contained
	q.OnError(func(*TaskError) { panic("listener") })

	q.Add(Task{ID: "err", Type: Overlay, Render: func(context.Context, Surface) error { return boom }})
	q.Add(Task{ID: "panic", Type: Object, Render: func(context.Context, Surface) error { panic("kaboom") }})
	q.Add(Task{ID: "ok", Type: Background, Render: drawChar("ok")})

	s := &recordSurface{}
	res, err := q.ProcessAll(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed != 3 || res.Failed != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(s.chars) != 1 || s.chars[0] != "ok" {
		t.Errorf("drawn = %v", s.chars)
	}

	if len(reported) != 2 {
		t.Fatalf("reported %d errors, want 2", len(reported))
	}
	if reported[0].TaskID != "err" || !errors.Is(reported[0], boom) {
		t.Errorf("first error = %v", reported[0])
	}
	if !reported[1].Panicked || reported[1].PanicValue != "kaboom" || len(reported[1].Stack) == 0 {
		t.Errorf("second error = %+v", reported[1])
	}

	stats := q.Stats()
	if stats.Failed != 2 || stats.Panicked != 1 || stats.Executed != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestQueueRemove(t *testing.T) {
	q, _ := newTestQueue(Options{})

	q.Add(Task{ID: "a", Type: Layer, Render: drawChar("a")})
	q.Add(Task{ID: "b", Type: Guides, Render: drawChar("b")})
	q.Add(Task{ID: "c", Type: Guides, Render: drawChar("c")})
	q.Add(Task{ID: "d", Type: Cursor, Render: drawChar("d")})

	if !q.Remove("a") {
		t.Error("Remove(a) should succeed")
	}
	if q.Remove("a") {
		t.Error("second Remove(a) should fail")
	}
	if n := q.RemoveByType(Guides); n != 2 {
		t.Errorf("RemoveByType = %d, want 2", n)
	}

	s := &recordSurface{}
	q.ProcessAll(context.Background(), s)
	if got := strings.Join(s.chars, ""); got != "d" {
		t.Errorf("drawn = %q, want d", got)
	}
	if q.Stats().Removed != 3 {
		t.Errorf("Removed = %d, want 3", q.Stats().Removed)
	}
}

func TestQueueSingleFlightScheduling(t *testing.T) {
	sched := NewManualScheduler()
	q, _ := newTestQueue(Options{Scheduler: sched, BatchLimit: 2})

	surface := &recordSurface{}
	passes := 0
	q.SetProcessor(func() {
		passes++
		q.Process(context.Background(), surface)
	})

	for i := 0; i < 5; i++ {
		q.Add(Task{Type: Layer, Render: drawChar("x")})
	}
	if got := sched.Pending(); got != 1 {
		t.Fatalf("scheduled passes = %d, want 1", got)
	}
	if !q.IsScheduled() {
		t.Error("queue should report a scheduled pass")
	}

	// Each pass runs two tasks and schedules the next while work remains
	for sched.Run() > 0 {
		if sched.Pending() > 1 {
			t.Fatalf("more than one pass scheduled")
		}
	}
	if passes != 3 {
		t.Errorf("passes = %d, want 3", passes)
	}
	if len(surface.chars) != 5 || q.Len() != 0 {
		t.Errorf("drawn %d, left %d", len(surface.chars), q.Len())
	}
}

func TestQueueClearCancelsScheduledPass(t *testing.T) {
	sched := NewManualScheduler()
	q, _ := newTestQueue(Options{Scheduler: sched})

	ran := false
	q.SetProcessor(func() { ran = true })
	q.Add(Task{Type: Layer, Render: drawChar("x")})

	if n := q.Clear(); n != 1 {
		t.Errorf("Clear = %d, want 1", n)
	}
	if sched.Pending() != 0 {
		t.Error("Clear should cancel the scheduled pass")
	}
	sched.Run()
	if ran {
		t.Error("cancelled pass ran")
	}
	if q.IsScheduled() {
		t.Error("no pass should be scheduled after Clear")
	}

	// Scheduling resumes afterwards
	q.Add(Task{Type: Layer, Render: drawChar("y")})
	if sched.Pending() != 1 {
		t.Error("Add after Clear should schedule a pass")
	}
}

func TestQueueContextCancel(t *testing.T) {
	q, _ := newTestQueue(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	q.Add(Task{Type: Cursor, Render: func(context.Context, Surface) error {
		cancel()
		return nil
	}})
	q.Add(Task{Type: Background, Render: drawChar("never")})

	s := &recordSurface{}
	res, err := q.ProcessAll(ctx, s)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if res.Executed != 1 || res.Remaining != 1 || len(s.chars) != 0 {
		t.Errorf("result = %+v, drawn %v", res, s.chars)
	}
}

func TestQueueReentrantProcess(t *testing.T) {
	q, _ := newTestQueue(Options{})

	var inner error
	q.Add(Task{Type: Layer, Render: func(ctx context.Context, s Surface) error {
		_, inner = q.Process(ctx, s)
		return nil
	}})

	if _, err := q.ProcessAll(context.Background(), &recordSurface{}); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(inner, ErrBusy) {
		t.Errorf("nested Process = %v, want ErrBusy", inner)
	}
}

func TestFrameScheduler(t *testing.T) {
	s := NewFrameScheduler(0)
	if s.Interval() != time.Second/60 {
		t.Errorf("default interval = %v", s.Interval())
	}

	done := make(chan struct{})
	NewFrameScheduler(1000).Schedule(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled callback did not run")
	}

	fired := make(chan struct{}, 1)
	cancel := NewFrameScheduler(1).Schedule(func() { fired <- struct{}{} })
	cancel()
	select {
	case <-fired:
		t.Error("cancelled callback ran")
	case <-time.After(20 * time.Millisecond):
	}
}
