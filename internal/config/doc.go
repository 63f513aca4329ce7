// Package config loads asciicanvas settings.
//
// Settings come from three layers, higher overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← ASCIICANVAS_* (highest)
//	├─────────────────────────────┤
//	│  2. Config File             │  ← TOML, e.g. asciicanvas.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Default()
//	└─────────────────────────────┘
//
// Command line flags are applied by the caller after Load.
//
// # Basic Usage
//
//	cfg, err := config.Load("asciicanvas.toml")
//	if err != nil {
//		return err
//	}
//	r := renderer.New(b, cfg.RendererOptions())
//
// # File Format
//
//	[renderer]
//	maxFps = 60
//	maxDirtyRects = 32
//	mergeDistance = 2
//	coalesceThreshold = 0.0
//	fillChar = " "
//
//	[queue]
//	frameTimeLimit = "12ms"
//	batchLimit = 64
//
//	[cache]
//	capacity = 256
//
//	[spatial]
//	maxObjects = 8
//	maxDepth = 6
//
//	[logging]
//	level = "info"
//	file = ""
//
//	[watch]
//	debounce = "150ms"
//
// Unknown keys are rejected so typos do not pass silently.
package config
