// Package queue schedules render tasks in priority order under a per-pass
// time and batch budget.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/asciicanvas/internal/renderer/backend"
	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// TaskType is the draw band of a task. Bands are ordered bottom to top.
type TaskType uint8

const (
	Background TaskType = iota
	Grid
	Layer
	Object
	Selection
	Guides
	Overlay
	Cursor

	taskTypeCount
)

// PriorityStep is the priority distance between adjacent bands.
const PriorityStep = 10

var taskTypeNames = [taskTypeCount]string{
	Background: "background",
	Grid:       "grid",
	Layer:      "layer",
	Object:     "object",
	Selection:  "selection",
	Guides:     "guides",
	Overlay:    "overlay",
	Cursor:     "cursor",
}

// String returns the band name.
func (t TaskType) String() string {
	if t >= taskTypeCount {
		return fmt.Sprintf("tasktype(%d)", uint8(t))
	}
	return taskTypeNames[t]
}

// ParseTaskType parses a band name, ignoring case.
func ParseTaskType(s string) (TaskType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range taskTypeNames {
		if name == s {
			return TaskType(i), true
		}
	}
	return Background, false
}

// DefaultPriority returns the priority of a band. Higher bands run first.
func DefaultPriority(t TaskType) int {
	if t >= taskTypeCount {
		return 0
	}
	return int(t) * PriorityStep
}

// Surface is what a task draws on.
type Surface interface {
	SetCell(x, y int, cell backend.BufferCell)
}

// RenderFunc draws a task onto s.
type RenderFunc func(ctx context.Context, s Surface) error

// Task is a unit of queued drawing.
type Task struct {
	// ID identifies the task for removal. Generated when empty.
	ID string

	// Priority orders tasks, highest first. Zero means the band default.
	Priority int

	Type TaskType

	Render RenderFunc

	// Bounds is the area the task draws to, if known.
	Bounds *core.Rect

	// Timestamp breaks priority ties, oldest first. Set on Add when zero.
	Timestamp time.Time
}

// before reports whether a runs before b.
func (a *Task) before(b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Timestamp.Before(b.Timestamp)
}

// TaskError reports a task that returned an error or panicked.
type TaskError struct {
	TaskID string
	Type   TaskType
	Err    error

	Panicked   bool
	PanicValue any
	Stack      []byte
}

func (e *TaskError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("render task %s (%s) panicked: %v", e.TaskID, e.Type, e.PanicValue)
	}
	return fmt.Sprintf("render task %s (%s): %v", e.TaskID, e.Type, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
