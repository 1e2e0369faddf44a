package islandcycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WindowConfig sizes the desktop window.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// Config is the full presentation configuration, usually read from YAML.
type Config struct {
	Window WindowConfig `yaml:"window"`

	// AssetDir holds the images; videos are resolved against VideoDir, or
	// AssetDir when VideoDir is empty.
	AssetDir string `yaml:"asset_dir"`
	VideoDir string `yaml:"video_dir"`

	Panels       []MediaDescriptor `yaml:"panels"`
	Landing      []LandingLayer    `yaml:"landing"`
	TouchLanding []LandingLayer    `yaml:"touch_landing"`
	DefaultImage string            `yaml:"default_image"`

	Caps            ResolutionCaps   `yaml:"resolution_caps"`
	ResizeThreshold int              `yaml:"resize_threshold"`
	Transition      TransitionConfig `yaml:"transition"`
	ParallaxTau     float64          `yaml:"parallax_tau"`
	LayerFadeIn     float64          `yaml:"layer_fade_in"`

	VideoCacheTTL time.Duration `yaml:"video_cache_ttl"`
	LoadTimeout   time.Duration `yaml:"load_timeout"`
	FFmpeg        string        `yaml:"ffmpeg"`
	FFprobe       string        `yaml:"ffprobe"`
	Preload       bool          `yaml:"preload"`

	Device DeviceConfig `yaml:"device"`

	Debug         bool           `yaml:"debug"`
	PerfOverlay   bool           `yaml:"perf_overlay"`
	Perf          PerfThresholds `yaml:"perf"`
	ScreenshotDir string         `yaml:"screenshot_dir"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	ro := DefaultRendererOptions()
	panels := make([]MediaDescriptor, len(defaultMedia))
	copy(panels, defaultMedia)
	return Config{
		Window:          WindowConfig{Width: 1280, Height: 720, Title: "The Island Cycle"},
		AssetDir:        "assets",
		Panels:          panels,
		Landing:         ro.Landing,
		TouchLanding:    ro.TouchLanding,
		DefaultImage:    DefaultImage,
		Caps:            ro.Caps,
		ResizeThreshold: ro.ResizeThreshold,
		Transition:      ro.Transition,
		ParallaxTau:     ro.ParallaxTau,
		LayerFadeIn:     float64(ro.LayerFadeIn),
		VideoCacheTTL:   DefaultVideoCacheTTL,
		LoadTimeout:     DefaultLoadTimeout,
		Preload:         true,
		Perf:            DefaultPerfThresholds(),
		ScreenshotDir:   "screenshots",
	}
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
// Fields absent from data keep their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// WriteConfig writes cfg as YAML.
func WriteConfig(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		bad("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Caps.Desktop <= 0 || c.Caps.Tablet <= 0 || c.Caps.Mobile <= 0 {
		bad("resolution caps must be positive")
	}
	if c.ResizeThreshold < 0 {
		bad("resize_threshold must not be negative")
	}
	if c.Transition.PointerTau <= 0 || c.Transition.TouchTau <= 0 {
		bad("transition time constants must be positive")
	}
	if c.Transition.AnimatingThreshold <= 0 || c.Transition.AnimatingThreshold >= 1 {
		bad("animating_threshold must be in (0,1), got %g", c.Transition.AnimatingThreshold)
	}
	if c.Transition.ClearEpsilon <= 0 || c.Transition.ClearEpsilon >= 1 {
		bad("clear_epsilon must be in (0,1), got %g", c.Transition.ClearEpsilon)
	}
	if c.Transition.SnapEpsilon < 0 {
		bad("snap_epsilon must not be negative")
	}
	if c.ParallaxTau <= 0 {
		bad("parallax_tau must be positive")
	}
	if c.VideoCacheTTL <= 0 {
		bad("video_cache_ttl must be positive")
	}
	if c.LoadTimeout < 0 {
		bad("load_timeout must not be negative")
	}

	seen := make(map[int]bool, len(c.Panels))
	for _, p := range c.Panels {
		switch {
		case p.Panel <= PanelNone:
			bad("panel %q: index must be positive", p.Name)
		case seen[p.Panel]:
			bad("panel %d listed twice", p.Panel)
		case p.Source == "":
			bad("panel %d: empty source", p.Panel)
		}
		seen[p.Panel] = true
	}
	for _, l := range append(append([]LandingLayer(nil), c.Landing...), c.TouchLanding...) {
		if l.Source == "" {
			bad("landing layer %q: empty source", l.Name)
		}
		if l.ParallaxFactor < 0 {
			bad("landing layer %q: negative parallax factor", l.Name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// MediaTable indexes the configured panels.
func (c Config) MediaTable() MediaTable {
	if len(c.Panels) == 0 {
		return DefaultMediaTable()
	}
	return NewMediaTable(c.Panels)
}

// RendererOptions derives the renderer settings.
func (c Config) RendererOptions() RendererOptions {
	return RendererOptions{
		Transition:      c.Transition,
		ParallaxTau:     c.ParallaxTau,
		Caps:            c.Caps,
		ResizeThreshold: c.ResizeThreshold,
		Landing:         c.Landing,
		TouchLanding:    c.TouchLanding,
		Media: MediaBindingOptions{
			Table:        c.MediaTable(),
			DefaultImage: c.DefaultImage,
			LoadTimeout:  c.LoadTimeout,
		},
		LayerFadeIn: float32(c.LayerFadeIn),
	}
}

// videoRoot returns the directory videos are opened from.
func (c Config) videoRoot() string {
	if c.VideoDir != "" {
		return c.VideoDir
	}
	return c.AssetDir
}

// CacheOptions derives the texture cache settings. assets overrides the
// asset directory when non-nil.
func (c Config) CacheOptions(assets fs.FS, preload PreloadLookup) TextureCacheOptions {
	if assets == nil && c.AssetDir != "" {
		assets = os.DirFS(c.AssetDir)
	}
	return TextureCacheOptions{
		Assets:    assets,
		VideoRoot: c.videoRoot(),
		Opener:    FFmpegOpener{FFmpeg: c.FFmpeg, FFprobe: c.FFprobe},
		Preload:   preload,
		VideoTTL:  c.VideoCacheTTL,
	}
}
