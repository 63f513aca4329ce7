// Package backend provides the double buffer and the display backends the
// renderer flushes changes to.
package backend

// EventType identifies the type of display event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventMouse
	EventResize
	// EventInterrupt wakes an event loop without user input, for example
	// after a watched file changed.
	EventInterrupt
)

// Event represents a display event.
type Event struct {
	Type EventType

	// Key event fields
	Key  Key
	Rune rune
	Mod  ModMask

	// Mouse event fields
	MouseX, MouseY int
	MouseButton    MouseButton

	// Resize event fields
	Width, Height int

	// Interrupt event payload
	Data any
}

// Key represents a keyboard key.
type Key int

// Key constants for the keys the viewer binds.
const (
	KeyNone Key = iota
	KeyRune     // Regular character (use Rune field)
	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace
	KeyHome
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyCtrlC
	KeyCtrlL
)

// ModMask represents modifier key state.
type ModMask int

const (
	ModNone  ModMask = 0
	ModShift ModMask = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has returns true if the mask contains the given modifier.
func (m ModMask) Has(mod ModMask) bool {
	return m&mod != 0
}

// MouseButton represents mouse button state.
type MouseButton int

const (
	MouseNone MouseButton = iota
	MouseLeft
	MouseMiddle
	MouseRight
	MouseWheelUp
	MouseWheelDown
)

// Backend defines the interface for display backends.
// Implementations apply buffer changes to a terminal or other surface.
type Backend interface {
	// Init initializes the backend for use.
	// Must be called before any other methods.
	Init() error

	// Shutdown releases backend resources and restores terminal state.
	Shutdown()

	// Size returns the current display dimensions.
	Size() (width, height int)

	// OnResize registers a callback for resize events.
	OnResize(callback func(width, height int))

	// SetCell sets a single cell at the given position.
	// Positions outside the display are silently ignored.
	SetCell(x, y int, cell BufferCell)

	// Show flushes applied cells to the actual display.
	Show()

	// PollEvent waits for and returns the next event.
	// This is a blocking call.
	PollEvent() Event

	// PostEvent posts a synthetic event to the event queue.
	PostEvent(event Event)
}

// Apply writes every change to b. It does not call Show.
func Apply(b Backend, changes []Change) {
	for _, c := range changes {
		b.SetCell(c.X, c.Y, c.Cell)
	}
}

// NullBackend is an in-memory backend for tests and offline snapshots.
// It records every applied cell.
type NullBackend struct {
	width, height int
	cells         []BufferCell
	applied       int
	shows         int
	resizeHandler func(width, height int)
	events        chan Event
}

// NewNullBackend creates a null backend with the given dimensions.
func NewNullBackend(width, height int) *NullBackend {
	return &NullBackend{
		width:  max(0, width),
		height: max(0, height),
		events: make(chan Event, 100),
	}
}

func (b *NullBackend) Init() error {
	b.allocate()
	return nil
}

func (b *NullBackend) allocate() {
	b.cells = make([]BufferCell, b.width*b.height)
	for i := range b.cells {
		b.cells[i] = EmptyCell()
	}
}

func (b *NullBackend) Shutdown() {}

func (b *NullBackend) Size() (int, int) {
	return b.width, b.height
}

func (b *NullBackend) OnResize(callback func(width, height int)) {
	b.resizeHandler = callback
}

func (b *NullBackend) SetCell(x, y int, cell BufferCell) {
	if x >= 0 && x < b.width && y >= 0 && y < b.height && b.cells != nil {
		b.cells[y*b.width+x] = cell
		b.applied++
	}
}

// GetCell returns the last cell applied at the position.
func (b *NullBackend) GetCell(x, y int) BufferCell {
	if x >= 0 && x < b.width && y >= 0 && y < b.height && b.cells != nil {
		return b.cells[y*b.width+x]
	}
	return EmptyCell()
}

func (b *NullBackend) Show() {
	b.shows++
}

func (b *NullBackend) PollEvent() Event {
	return <-b.events
}

func (b *NullBackend) PostEvent(event Event) {
	select {
	case b.events <- event:
	default:
		// Event dropped if queue is full (non-blocking for testing)
	}
}

// Applied returns the number of SetCell calls that landed on the display.
func (b *NullBackend) Applied() int {
	return b.applied
}

// Shows returns the number of Show calls.
func (b *NullBackend) Shows() int {
	return b.shows
}

// ResetCounters zeroes the applied and show counters.
func (b *NullBackend) ResetCounters() {
	b.applied = 0
	b.shows = 0
}

// String returns the display content as newline separated rows.
func (b *NullBackend) String() string {
	if b.cells == nil {
		return ""
	}
	return gridString(b.cells, b.width, b.height)
}

// Resize simulates a display resize for testing.
func (b *NullBackend) Resize(width, height int) {
	b.width = max(0, width)
	b.height = max(0, height)
	b.allocate()
	if b.resizeHandler != nil {
		b.resizeHandler(b.width, b.height)
	}
}
