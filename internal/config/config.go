package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/asciicanvas/internal/canvas"
	"github.com/dshills/asciicanvas/internal/renderer"
	"github.com/dshills/asciicanvas/internal/renderer/backend"
	"github.com/dshills/asciicanvas/internal/renderer/core"
	"github.com/dshills/asciicanvas/internal/renderer/dirty"
	"github.com/dshills/asciicanvas/internal/renderer/queue"
	"github.com/dshills/asciicanvas/internal/renderer/rendercache"
	"github.com/dshills/asciicanvas/internal/renderer/spatial"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ASCIICANVAS_"

// Duration is a time.Duration written as a string such as "12ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds every setting.
type Config struct {
	Renderer RendererConfig `toml:"renderer"`
	Queue    QueueConfig    `toml:"queue"`
	Cache    CacheConfig    `toml:"cache"`
	Spatial  SpatialConfig  `toml:"spatial"`
	Logging  LoggingConfig  `toml:"logging"`
	Watch    WatchConfig    `toml:"watch"`
}

// RendererConfig configures frame pacing and dirty tracking.
type RendererConfig struct {
	// MaxFPS caps scheduled render passes per second.
	MaxFPS int `toml:"maxFps"`

	// MaxDirtyRects is the rect count above which dirty rects merge.
	MaxDirtyRects int `toml:"maxDirtyRects"`

	// MergeDistance is the gap in cells across which dirty rects merge.
	MergeDistance int `toml:"mergeDistance"`

	// CoalesceThreshold is the dirty area ratio that forces a full redraw.
	// Zero disables it.
	CoalesceThreshold float64 `toml:"coalesceThreshold"`

	// FillChar and FillColor are what cleared cells reset to.
	FillChar  string `toml:"fillChar"`
	FillColor string `toml:"fillColor"`
}

// QueueConfig configures render queue budgets.
type QueueConfig struct {
	// FrameTimeLimit stops a pass once exceeded. Zero disables it.
	FrameTimeLimit Duration `toml:"frameTimeLimit"`

	// BatchLimit stops a pass after this many tasks. Zero disables it.
	BatchLimit int `toml:"batchLimit"`
}

// CacheConfig configures the render cache.
type CacheConfig struct {
	Capacity int `toml:"capacity"`
}

// SpatialConfig configures the quadtree.
type SpatialConfig struct {
	MaxObjects int `toml:"maxObjects"`
	MaxDepth   int `toml:"maxDepth"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the logging verbosity level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// File is the log file path (empty logs to stderr).
	File string `toml:"file"`
}

// WatchConfig configures document reload.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	Debounce Duration `toml:"debounce"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Renderer: RendererConfig{
			MaxFPS:        60,
			MaxDirtyRects: dirty.DefaultMaxRects,
			MergeDistance: dirty.DefaultMergeDistance,
			FillChar:      " ",
		},
		Queue: QueueConfig{
			FrameTimeLimit: Duration{queue.DefaultFrameTimeLimit},
			BatchLimit:     queue.DefaultBatchLimit,
		},
		Cache: CacheConfig{Capacity: rendercache.DefaultCapacity},
		Spatial: SpatialConfig{
			MaxObjects: spatial.DefaultMaxObjects,
			MaxDepth:   spatial.DefaultMaxDepth,
		},
		Logging: LoggingConfig{Level: "info"},
		Watch:   WatchConfig{Debounce: Duration{150 * time.Millisecond}},
	}
}

// Load returns the defaults overlaid with the file at path (if it
// exists) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(EnvPrefix); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, not an error
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return c.parse(path, data)
}

// parse decodes TOML over the current values.
func (c *Config) parse(source string, data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) && len(strict.Errors) > 0 {
			key := strings.Join(strict.Errors[0].Key(), ".")
			return &ValidationError{
				Path:    key,
				Message: "unknown setting in " + source,
				Code:    ErrCodeUnknownSetting,
			}
		}

		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

// envSetting maps one environment variable onto a setting.
type envSetting struct {
	name string // suffix after the prefix
	path string
	set  func(c *Config, v string) error
}

var envSettings = []envSetting{
	{"LOG_LEVEL", "logging.level", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"LOG_FILE", "logging.file", func(c *Config, v string) error { c.Logging.File = v; return nil }},
	{"MAX_FPS", "renderer.maxFps", intSetter(func(c *Config) *int { return &c.Renderer.MaxFPS })},
	{"MAX_DIRTY_RECTS", "renderer.maxDirtyRects", intSetter(func(c *Config) *int { return &c.Renderer.MaxDirtyRects })},
	{"MERGE_DISTANCE", "renderer.mergeDistance", intSetter(func(c *Config) *int { return &c.Renderer.MergeDistance })},
	{"COALESCE_THRESHOLD", "renderer.coalesceThreshold", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Renderer.CoalesceThreshold = f
		return nil
	}},
	{"FRAME_TIME_LIMIT", "queue.frameTimeLimit", func(c *Config, v string) error {
		return c.Queue.FrameTimeLimit.UnmarshalText([]byte(v))
	}},
	{"BATCH_LIMIT", "queue.batchLimit", intSetter(func(c *Config) *int { return &c.Queue.BatchLimit })},
	{"CACHE_CAPACITY", "cache.capacity", intSetter(func(c *Config) *int { return &c.Cache.Capacity })},
	{"WATCH_DEBOUNCE", "watch.debounce", func(c *Config, v string) error {
		return c.Watch.Debounce.UnmarshalText([]byte(v))
	}},
}

func intSetter(field func(c *Config) *int) func(c *Config, v string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

// ApplyEnv overlays environment variables named prefix + setting, such as
// ASCIICANVAS_LOG_LEVEL. Empty values are treated as set.
func (c *Config) ApplyEnv(prefix string) error {
	for _, s := range envSettings {
		v, ok := os.LookupEnv(prefix + s.name)
		if !ok {
			continue
		}
		if err := s.set(c, v); err != nil {
			return &ValidationError{
				Path:    s.path,
				Message: fmt.Sprintf("cannot parse %s%s: %v", prefix, s.name, err),
				Value:   v,
				Code:    ErrCodeTypeMismatch,
			}
		}
	}
	return nil
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, path, msg string, value any, code ValidationErrorCode) {
		if !ok {
			errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
		}
	}

	r := c.Renderer
	check(r.MaxFPS >= 1 && r.MaxFPS <= 240, "renderer.maxFps", "must be between 1 and 240", r.MaxFPS, ErrCodeOutOfRange)
	check(r.MaxDirtyRects >= 1, "renderer.maxDirtyRects", "must be at least 1", r.MaxDirtyRects, ErrCodeOutOfRange)
	check(r.MergeDistance >= 0, "renderer.mergeDistance", "must not be negative", r.MergeDistance, ErrCodeOutOfRange)
	check(r.CoalesceThreshold >= 0 && r.CoalesceThreshold <= 1, "renderer.coalesceThreshold", "must be between 0 and 1", r.CoalesceThreshold, ErrCodeOutOfRange)
	check(r.FillChar == "" || core.CharWidth(r.FillChar) == 1 && core.NormalizeChar(r.FillChar) == strings.TrimSpace(r.FillChar),
		"renderer.fillChar", "must be a single cell-wide character", r.FillChar, ErrCodeTypeMismatch)
	if r.FillColor != "" {
		_, ok := core.ParseColor(r.FillColor)
		check(ok, "renderer.fillColor", "not a color", r.FillColor, ErrCodeTypeMismatch)
	}

	check(c.Queue.FrameTimeLimit.Duration >= 0, "queue.frameTimeLimit", "must not be negative", c.Queue.FrameTimeLimit, ErrCodeOutOfRange)
	check(c.Queue.BatchLimit >= 0, "queue.batchLimit", "must not be negative", c.Queue.BatchLimit, ErrCodeOutOfRange)
	check(c.Cache.Capacity >= 1, "cache.capacity", "must be at least 1", c.Cache.Capacity, ErrCodeOutOfRange)
	check(c.Spatial.MaxObjects >= 1, "spatial.maxObjects", "must be at least 1", c.Spatial.MaxObjects, ErrCodeOutOfRange)
	check(c.Spatial.MaxDepth >= 0 && c.Spatial.MaxDepth <= 16, "spatial.maxDepth", "must be between 0 and 16", c.Spatial.MaxDepth, ErrCodeOutOfRange)
	check(c.Watch.Debounce.Duration >= 0, "watch.debounce", "must not be negative", c.Watch.Debounce, ErrCodeOutOfRange)

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		check(false, "logging.level", "must be debug, info, warn or error", c.Logging.Level, ErrCodeInvalidEnum)
	}

	return errors.Join(errs...)
}

// FrameInterval returns the pacing interval for MaxFPS.
func (c *Config) FrameInterval() time.Duration {
	return queue.NewFrameScheduler(c.Renderer.MaxFPS).Interval()
}

// RendererOptions builds renderer options from the settings. The caller
// supplies the scheduler and logger.
func (c *Config) RendererOptions() renderer.Options {
	opts := renderer.DefaultOptions()
	opts.FrameTimeLimit = c.Queue.FrameTimeLimit.Duration
	opts.BatchLimit = c.Queue.BatchLimit
	opts.MaxDirtyRects = c.Renderer.MaxDirtyRects
	opts.MergeDistance = c.Renderer.MergeDistance
	opts.CoalesceThreshold = c.Renderer.CoalesceThreshold

	fill := backend.EmptyCell()
	if ch := core.NormalizeChar(c.Renderer.FillChar); ch != "" {
		fill.Char = ch
	}
	if color, ok := core.ParseColor(c.Renderer.FillColor); ok {
		fill.Color = color
	}
	opts.Fill = fill
	return opts
}

// CanvasOptions builds canvas options from the settings.
func (c *Config) CanvasOptions() canvas.Options {
	return canvas.Options{
		CacheCapacity: c.Cache.Capacity,
		Spatial: spatial.Options{
			MaxObjects: c.Spatial.MaxObjects,
			MaxDepth:   c.Spatial.MaxDepth,
		},
	}
}
