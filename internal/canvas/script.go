package canvas

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/asciicanvas/internal/renderer/core"
	"github.com/dshills/asciicanvas/internal/renderer/rendercache"
)

// DefaultScriptTimeout bounds one script rasterization.
const DefaultScriptTimeout = time.Second

// ErrScriptNoDraw indicates a script that defines no draw function.
var ErrScriptNoDraw = errors.New("script does not define draw()")

// Script is a procedural drawable. The Lua source must define a global
// draw() function that emits cells with cell(x, y, ch [, color]).
// Coordinates are relative to the script origin and clipped to its size;
// the globals width and height hold that size.
//
// Each rasterization runs in a fresh state with only the base, table,
// string and math libraries.
type Script struct {
	ObjID         string
	X, Y          int
	Width, Height int
	Source        string
	Timeout       time.Duration
}

func (s *Script) ID() string { return s.ObjID }

func (s *Script) Bounds() core.Bounds {
	return cellBounds(s.X, s.Y, s.Width, s.Height)
}

func (s *Script) Fingerprint() string {
	return rendercache.Fingerprint("script", s.X, s.Y, s.Width, s.Height, rendercache.Hash(s.Source))
}

func (s *Script) MoveBy(dx, dy int) {
	s.X += dx
	s.Y += dy
}

func (s *Script) Rasterize() (cells []core.Cell, err error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	L.SetContext(ctx)

	openScriptLibraries(L)
	L.SetGlobal("width", lua.LNumber(s.Width))
	L.SetGlobal("height", lua.LNumber(s.Height))
	L.SetGlobal("cell", L.NewFunction(func(L *lua.LState) int {
		x := L.CheckInt(1)
		y := L.CheckInt(2)
		ch := core.NormalizeChar(L.CheckString(3))
		if x < 0 || y < 0 || x >= s.Width || y >= s.Height || ch == "" {
			return 0
		}
		color, _ := core.ParseColor(L.OptString(4, ""))
		cells = append(cells, core.Cell{X: s.X + x, Y: s.Y + y, Char: ch, Color: color})
		return 0
	}))

	defer func() {
		if r := recover(); r != nil {
			cells, err = nil, fmt.Errorf("script %s: lua panic: %v", s.ObjID, r)
		}
	}()

	if err := L.DoString(s.Source); err != nil {
		return nil, fmt.Errorf("script %s: %w", s.ObjID, err)
	}

	draw := L.GetGlobal("draw")
	if draw.Type() != lua.LTFunction {
		return nil, fmt.Errorf("script %s: %w", s.ObjID, ErrScriptNoDraw)
	}
	if err := L.CallByParam(lua.P{Fn: draw, NRet: 0, Protect: true}); err != nil {
		return nil, fmt.Errorf("script %s: %w", s.ObjID, err)
	}
	return cells, nil
}

// openScriptLibraries opens the libraries scripts may use and removes the
// loaders that reach the file system.
func openScriptLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}
