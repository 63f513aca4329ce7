// Package renderer turns layer mutations into minimal display updates.
//
// The renderer coordinates a dirty rectangle tracker, a double buffer and a
// render queue through a begin/draw/end frame lifecycle:
//
//	┌─────────────────────────────────────────┐
//	│          Renderer (frame facade)        │
//	├─────────────────────────────────────────┤
//	│  dirty.Tracker │ queue.Queue            │
//	├─────────────────────────────────────────┤
//	│  backend.DoubleBuffer (front / back)    │
//	├─────────────────────────────────────────┤
//	│  Backend: Terminal (tcell) │ Null       │
//	└─────────────────────────────────────────┘
//
// BeginFrame clears the back buffer inside the dirty rectangles (or
// entirely on a full redraw). Drawing goes to the back buffer. EndFrame
// swaps the same area, applies the resulting change list to the backend
// and shows it.
//
// Usage:
//
//	b, _ := backend.NewTerminal()
//	r := renderer.New(b, renderer.DefaultOptions())
//	r.MarkCell(3, 4)
//	r.RenderImmediate(func(s queue.Surface) error {
//		s.SetCell(3, 4, backend.BufferCell{Char: "#"})
//		return nil
//	})
//
// Subpackages hold the pieces: core value types, blend math, layers, the
// compositor, the dirty tracker, the double buffer and display backends,
// the render queue, the spatial index and the render cache.
package renderer
