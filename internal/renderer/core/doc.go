// Package core provides the value types shared by the compositing and
// rendering packages: packed cell keys, colors, cells and rectangles.
// It has no dependencies on the other renderer packages so that layer,
// compositor and backend can all import it without cycles.
package core
