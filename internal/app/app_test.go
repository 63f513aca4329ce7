package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/asciicanvas/internal/renderer/backend"
)

const sceneYAML = `
width: 8
height: 3
layers:
  - id: base
    name: Base
    cells:
      - {x: 7, y: 0, char: "#"}
    objects:
      - {type: text, id: greeting, x: 1, y: 1, content: %s}
`

func writeScene(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(fmt.Sprintf(sceneYAML, content)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestApp(t *testing.T, content string) (*Application, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	writeScene(t, path, content)
	app, err := New(Options{DocPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return app, path
}

// attachNull connects app to an initialized null backend of the given size.
func attachNull(t *testing.T, app *Application, width, height int) *backend.NullBackend {
	t.Helper()
	nb := backend.NewNullBackend(width, height)
	if err := nb.Init(); err != nil {
		t.Fatal(err)
	}
	app.opts.Backend = nb
	app.attach(nb)
	return nb
}

func keyRune(r rune) backend.Event {
	return backend.Event{Type: backend.EventKey, Key: backend.KeyRune, Rune: r}
}

func key(k backend.Key) backend.Event {
	return backend.Event{Type: backend.EventKey, Key: k}
}

func TestNewMissingDocument(t *testing.T) {
	_, err := New(Options{DocPath: filepath.Join(t.TempDir(), "nope.yaml")})
	var initErr *InitError
	if !errors.As(err, &initErr) || initErr.Component != "document" {
		t.Fatalf("err = %v, want document InitError", err)
	}
}

func TestSnapshot(t *testing.T) {
	app, _ := newTestApp(t, "hi")

	var buf bytes.Buffer
	if err := app.Snapshot(context.Background(), &buf); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := "       #\n hi     \n        \n"
	if buf.String() != want {
		t.Errorf("snapshot = %q, want %q", buf.String(), want)
	}
}

func TestRunQuits(t *testing.T) {
	tests := []struct {
		name string
		ev   backend.Event
	}{
		{"q", keyRune('q')},
		{"escape", key(backend.KeyEscape)},
		{"ctrl-c", key(backend.KeyCtrlC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t, "hi")
			nb := backend.NewNullBackend(8, 3)
			app.opts.Backend = nb
			nb.PostEvent(tt.ev)

			if err := app.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := nb.String(); got != "       #\n hi     \n        " {
				t.Errorf("backend = %q", got)
			}
			if app.Running() {
				t.Error("still running after quit")
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	app, _ := newTestApp(t, "hi")
	if err := app.Run(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Errorf("Run without backend = %v, want ErrNoBackend", err)
	}

	app.opts.Backend = backend.NewNullBackend(8, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled context = %v", err)
	}
}

func TestPanClampsToDocument(t *testing.T) {
	app, _ := newTestApp(t, "hi")
	nb := attachNull(t, app, 4, 2)
	ctx := context.Background()

	app.render(ctx)
	if got := nb.String(); got != "    \n hi " {
		t.Fatalf("initial = %q", got)
	}

	steps := []struct {
		ev     backend.Event
		repeat int
		want   string
		x, y   int
	}{
		{key(backend.KeyDown), 1, " hi \n    ", 0, 1},
		{key(backend.KeyRight), 1, "hi  \n    ", 1, 1},
		{key(backend.KeyRight), 10, "    \n    ", 4, 1},
		{key(backend.KeyUp), 5, "   #\n    ", 4, 0},
		{key(backend.KeyHome), 1, "    \n hi ", 0, 0},
	}

	for i, step := range steps {
		for n := 0; n < step.repeat; n++ {
			if err := app.HandleEvent(step.ev); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
		if !app.needsRender() {
			t.Errorf("step %d: expected a pending render", i)
		}
		app.render(ctx)
		if x, y := app.Canvas().Offset(); x != step.x || y != step.y {
			t.Errorf("step %d: offset = %d,%d, want %d,%d", i, x, y, step.x, step.y)
		}
		if got := nb.String(); got != step.want {
			t.Errorf("step %d: backend = %q, want %q", i, got, step.want)
		}
	}
}

func TestClickSelectsTopmostObject(t *testing.T) {
	app, _ := newTestApp(t, "hi")
	attachNull(t, app, 8, 3)

	click := func(x, y int) {
		ev := backend.Event{Type: backend.EventMouse, MouseX: x, MouseY: y, MouseButton: backend.MouseLeft}
		if err := app.HandleEvent(ev); err != nil {
			t.Fatal(err)
		}
	}

	click(2, 1)
	if got := app.Selected(); got != "greeting" {
		t.Errorf("Selected = %q, want greeting", got)
	}
	click(5, 2)
	if got := app.Selected(); got != "" {
		t.Errorf("Selected after empty click = %q", got)
	}
}

func TestReload(t *testing.T) {
	app, path := newTestApp(t, "hi")
	nb := attachNull(t, app, 8, 3)
	ctx := context.Background()
	app.render(ctx)

	writeScene(t, path, "yo")
	if err := app.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	app.render(ctx)
	if got := nb.String(); got != "       #\n yo     \n        " {
		t.Errorf("after reload = %q", got)
	}

	before := app.Canvas()
	if err := os.WriteFile(path, []byte("width: 0\nheight: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var compErr *ComponentError
	if err := app.Reload(); !errors.As(err, &compErr) || compErr.Component != "docfile" {
		t.Fatalf("Reload of invalid document = %v", err)
	}
	if app.Canvas() != before {
		t.Error("failed reload replaced the canvas")
	}

	s := app.Metrics().Snapshot()
	if s.Reloads != 1 || s.ReloadFailures != 1 {
		t.Errorf("reloads = %d/%d, want 1/1", s.Reloads, s.ReloadFailures)
	}
}

func TestReloadKeepsOffset(t *testing.T) {
	app, path := newTestApp(t, "hi")
	nb := attachNull(t, app, 4, 2)
	ctx := context.Background()

	if err := app.HandleEvent(key(backend.KeyDown)); err != nil {
		t.Fatal(err)
	}
	app.render(ctx)

	writeScene(t, path, "ok")
	if err := app.HandleEvent(keyRune('r')); err != nil {
		t.Fatal(err)
	}
	app.render(ctx)
	if got := nb.String(); got != " ok \n    " {
		t.Errorf("after reload = %q", got)
	}
}

func TestInterruptReloadsOnlyWhenFlagged(t *testing.T) {
	app, _ := newTestApp(t, "hi")
	interrupt := backend.Event{Type: backend.EventInterrupt, Data: reloadSignal{}}

	if err := app.HandleEvent(interrupt); err != nil {
		t.Fatal(err)
	}
	if got := app.Metrics().Snapshot().Reloads; got != 0 {
		t.Fatalf("unflagged interrupt reloaded %d times", got)
	}

	app.reload.Store(true)
	if err := app.HandleEvent(interrupt); err != nil {
		t.Fatal(err)
	}
	if got := app.Metrics().Snapshot().Reloads; got != 1 {
		t.Errorf("flagged interrupt reloads = %d, want 1", got)
	}
}

func TestFullRedrawKey(t *testing.T) {
	app, _ := newTestApp(t, "hi")
	nb := attachNull(t, app, 8, 3)
	ctx := context.Background()
	app.render(ctx)
	if app.needsRender() {
		t.Fatal("expected nothing pending after a render")
	}

	nb.ResetCounters()
	if err := app.HandleEvent(key(backend.KeyCtrlL)); err != nil {
		t.Fatal(err)
	}
	app.render(ctx)
	// A full redraw repaints every cell even though nothing changed.
	if nb.Applied() != 24 {
		t.Errorf("applied = %d, want 24", nb.Applied())
	}
	if got := app.Renderer().Stats().FullRedraws; got != 2 {
		t.Errorf("FullRedraws = %d, want 2", got)
	}
}
