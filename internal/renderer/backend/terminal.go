package backend

import (
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/asciicanvas/internal/renderer/core"
)

// Terminal implements Backend using tcell for terminal output.
type Terminal struct {
	screen        tcell.Screen
	resizeHandler func(width, height int)
	mu            sync.Mutex
}

// NewTerminal creates a new terminal backend.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Terminal{screen: screen}, nil
}

// NewTerminalWithScreen wraps an existing screen, such as a
// tcell.SimulationScreen.
func NewTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{screen: screen}
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return err
	}

	// Mouse clicks drive hit-testing
	t.screen.EnableMouse()
	t.screen.HideCursor()
	return nil
}

func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fini()
}

func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

func (t *Terminal) OnResize(callback func(width, height int)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resizeHandler = callback
}

func (t *Terminal) SetCell(x, y int, cell BufferCell) {
	t.mu.Lock()
	defer t.mu.Unlock()

	mainc, combining := splitGrapheme(cell.Char)
	t.screen.SetContent(x, y, mainc, combining, convertStyle(cell.Color))
}

func (t *Terminal) Show() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Show()
}

// Sync repaints the whole terminal, discarding what tcell believes is shown.
func (t *Terminal) Sync() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Sync()
}

func (t *Terminal) PollEvent() Event {
	ev := t.screen.PollEvent()
	if ev == nil {
		// Screen finalized
		return Event{Type: EventNone}
	}
	return convertEvent(ev, t)
}

func (t *Terminal) PostEvent(event Event) {
	var tcellEv tcell.Event
	switch event.Type {
	case EventKey:
		tcellEv = tcell.NewEventKey(convertToTcellKey(event.Key), event.Rune, convertToTcellMod(event.Mod))
	case EventInterrupt:
		tcellEv = tcell.NewEventInterrupt(event.Data)
	default:
		return
	}
	_ = t.screen.PostEvent(tcellEv) // best-effort; event queue may be full
}

// splitGrapheme returns the first rune of ch and any combining runes after it.
func splitGrapheme(ch string) (rune, []rune) {
	if ch == "" {
		return ' ', nil
	}
	runes := []rune(ch)
	if len(runes) == 1 {
		return runes[0], nil
	}
	return runes[0], runes[1:]
}

// convertStyle maps a cell color to a tcell style. Terminals have no alpha,
// so translucent colors are darkened toward black in proportion.
func convertStyle(c core.Color) tcell.Style {
	style := tcell.StyleDefault
	if !c.Valid {
		return style
	}
	a := core.Clamp01(c.A)
	scale := func(v uint8) int32 {
		return int32(math.Round(float64(v) * a))
	}
	return style.Foreground(tcell.NewRGBColor(scale(c.R), scale(c.G), scale(c.B)))
}

// convertEvent converts tcell events to our Event type.
func convertEvent(ev tcell.Event, t *Terminal) Event {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return Event{
			Type: EventKey,
			Key:  convertKey(e.Key()),
			Rune: e.Rune(),
			Mod:  convertMod(e.Modifiers()),
		}

	case *tcell.EventMouse:
		x, y := e.Position()
		return Event{
			Type:        EventMouse,
			MouseX:      x,
			MouseY:      y,
			MouseButton: convertMouseButton(e.Buttons()),
			Mod:         convertMod(e.Modifiers()),
		}

	case *tcell.EventResize:
		w, h := e.Size()
		t.mu.Lock()
		handler := t.resizeHandler
		t.mu.Unlock()
		if handler != nil {
			handler(w, h)
		}
		return Event{
			Type:   EventResize,
			Width:  w,
			Height: h,
		}

	case *tcell.EventInterrupt:
		return Event{
			Type: EventInterrupt,
			Data: e.Data(),
		}

	default:
		return Event{Type: EventNone}
	}
}

// keyTable pairs each bound key with its tcell key.
var keyTable = []struct {
	key   Key
	tcell tcell.Key
}{
	{KeyRune, tcell.KeyRune},
	{KeyEscape, tcell.KeyEscape},
	{KeyEnter, tcell.KeyEnter},
	{KeyTab, tcell.KeyTab},
	{KeyBackspace, tcell.KeyBackspace2},
	{KeyHome, tcell.KeyHome},
	{KeyUp, tcell.KeyUp},
	{KeyDown, tcell.KeyDown},
	{KeyLeft, tcell.KeyLeft},
	{KeyRight, tcell.KeyRight},
	{KeyCtrlC, tcell.KeyCtrlC},
	{KeyCtrlL, tcell.KeyCtrlL},
}

func convertKey(k tcell.Key) Key {
	if k == tcell.KeyBackspace {
		return KeyBackspace
	}
	for _, e := range keyTable {
		if e.tcell == k {
			return e.key
		}
	}
	return KeyNone
}

// convertToTcellKey maps unbound keys to KeyRune.
func convertToTcellKey(k Key) tcell.Key {
	for _, e := range keyTable {
		if e.key == k {
			return e.tcell
		}
	}
	return tcell.KeyRune
}

var modTable = []struct {
	mod   ModMask
	tcell tcell.ModMask
}{
	{ModShift, tcell.ModShift},
	{ModCtrl, tcell.ModCtrl},
	{ModAlt, tcell.ModAlt},
	{ModMeta, tcell.ModMeta},
}

func convertMod(m tcell.ModMask) ModMask {
	var result ModMask
	for _, e := range modTable {
		if m&e.tcell != 0 {
			result |= e.mod
		}
	}
	return result
}

func convertToTcellMod(m ModMask) tcell.ModMask {
	var result tcell.ModMask
	for _, e := range modTable {
		if m.Has(e.mod) {
			result |= e.tcell
		}
	}
	return result
}

// convertMouseButton reports the first pressed button, primary first.
func convertMouseButton(b tcell.ButtonMask) MouseButton {
	switch {
	case b&tcell.Button1 != 0:
		return MouseLeft
	case b&tcell.Button2 != 0:
		return MouseMiddle
	case b&tcell.Button3 != 0:
		return MouseRight
	case b&tcell.WheelUp != 0:
		return MouseWheelUp
	case b&tcell.WheelDown != 0:
		return MouseWheelDown
	default:
		return MouseNone
	}
}
