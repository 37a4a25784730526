package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultTitlebarHeight   = 24
	DefaultResizeBorder     = 10
	DefaultShadowRadius     = 12
	DefaultShadowOffsetY    = 5
	DefaultShadowOpacity    = 0.35
	DefaultCornerRadius     = 14
	DefaultMotionInterval   = 16 * time.Millisecond
	DefaultCompositeMinimum = 16 * time.Millisecond
	DefaultThemeResync      = 2 * time.Second
)

// Config is the effective window manager configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Titlebar    TitlebarConfig    `yaml:"titlebar"`
	Interaction InteractionConfig `yaml:"interaction"`
	Compositor  CompositorConfig  `yaml:"compositor"`
	Switcher    SwitcherConfig    `yaml:"switcher"`
	Theme       ThemeConfig       `yaml:"theme"`
	Windows     WindowsConfig     `yaml:"windows"`
	Namespace   NamespaceConfig   `yaml:"namespace"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// ButtonRect is a titlebar-local hit rectangle. A negative X is measured from
// the titlebar's right edge.
type ButtonRect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type ButtonsConfig struct {
	Close       ButtonRect `yaml:"close"`
	Miniaturize ButtonRect `yaml:"miniaturize"`
	Zoom        ButtonRect `yaml:"zoom"`
}

type TitlebarConfig struct {
	Height  int           `yaml:"height"`
	Buttons ButtonsConfig `yaml:"buttons"`
}

type InteractionConfig struct {
	ResizeBorder   int           `yaml:"resize_border"`
	MinWidth       int           `yaml:"min_width"`
	MinHeight      int           `yaml:"min_height"`
	MotionInterval time.Duration `yaml:"motion_interval"`
}

type CompositorConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ShadowRadius  int           `yaml:"shadow_radius"`
	ShadowOffsetX int           `yaml:"shadow_offset_x"`
	ShadowOffsetY int           `yaml:"shadow_offset_y"`
	ShadowOpacity float64       `yaml:"shadow_opacity"`
	CornerRadius  int           `yaml:"corner_radius"`
	MinInterval   time.Duration `yaml:"min_interval"`
	Background    string        `yaml:"background"`
}

type SwitcherConfig struct {
	Modifier  string `yaml:"modifier"`
	Key       string `yaml:"key"`
	CancelKey string `yaml:"cancel_key"`
}

// Binding returns the keybind sequence that starts or advances a switch.
func (s SwitcherConfig) Binding() string { return s.Modifier + "-" + s.Key }

type ThemeConfig struct {
	ResyncInterval time.Duration `yaml:"resync_interval"`
	Active         string        `yaml:"active"`
	Inactive       string        `yaml:"inactive"`
	TitleText      string        `yaml:"title_text"`
	Close          string        `yaml:"close"`
	Miniaturize    string        `yaml:"miniaturize"`
	Zoom           string        `yaml:"zoom"`
}

type WindowsConfig struct {
	// Detection is "wrapper" (EWMH window type) or "legacy" (GNUstep
	// attributes). Exactly one path decides.
	Detection string `yaml:"detection"`
}

type NamespaceConfig struct {
	ExtensionName          string `yaml:"extension_name"`
	Default                string `yaml:"default"`
	VisualIndicators       bool   `yaml:"visual_indicators"`
	IndicatorStyle         string `yaml:"indicator_style"`
	SecurityWarnings       bool   `yaml:"security_warnings"`
	CrossNamespaceBlocking bool   `yaml:"cross_namespace_blocking"`
	ViolationLog           string `yaml:"violation_log"`
	ViolationLogMaxMB      int    `yaml:"violation_log_max_mb"`
	ViolationLogMaxFiles   int    `yaml:"violation_log_max_files"`
}

type MetricsConfig struct {
	// Listen is a host:port for the Prometheus handler. Empty disables it.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Titlebar: TitlebarConfig{
			Height: DefaultTitlebarHeight,
			Buttons: ButtonsConfig{
				Close:       ButtonRect{X: 6, Y: 4, Width: 16, Height: 16},
				Miniaturize: ButtonRect{X: 26, Y: 4, Width: 16, Height: 16},
				Zoom:        ButtonRect{X: 46, Y: 4, Width: 16, Height: 16},
			},
		},
		Interaction: InteractionConfig{
			ResizeBorder:   DefaultResizeBorder,
			MinWidth:       100,
			MinHeight:      60,
			MotionInterval: DefaultMotionInterval,
		},
		Compositor: CompositorConfig{
			Enabled:       true,
			ShadowRadius:  DefaultShadowRadius,
			ShadowOffsetX: 0,
			ShadowOffsetY: DefaultShadowOffsetY,
			ShadowOpacity: DefaultShadowOpacity,
			CornerRadius:  DefaultCornerRadius,
			MinInterval:   DefaultCompositeMinimum,
			Background:    "#2e3440",
		},
		Switcher: SwitcherConfig{
			Modifier:  "Mod1",
			Key:       "Tab",
			CancelKey: "Escape",
		},
		Theme: ThemeConfig{
			ResyncInterval: DefaultThemeResync,
			Active:         "#d8d8d8",
			Inactive:       "#ececec",
			TitleText:      "#202020",
			Close:          "#e0443e",
			Miniaturize:    "#dea123",
			Zoom:           "#1aab29",
		},
		Windows: WindowsConfig{Detection: "wrapper"},
		Namespace: NamespaceConfig{
			ExtensionName:        "NAMESPACE",
			Default:              "default",
			VisualIndicators:     true,
			IndicatorStyle:       "stripe",
			SecurityWarnings:     true,
			ViolationLog:         "~/.local/state/tessera/violations.jsonl",
			ViolationLogMaxMB:    5,
			ViolationLogMaxFiles: 3,
		},
	}
}

// ValidationError ties a validation failure to its YAML path and, when
// known, the file position that set it.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "log.level", Err: fmt.Errorf("level must be one of: debug, info, warn, error")}
	}
	if c.Titlebar.Height < 8 || c.Titlebar.Height > 128 {
		return &ValidationError{Path: "titlebar.height", Err: fmt.Errorf("height must be between 8 and 128")}
	}
	for name, b := range map[string]ButtonRect{
		"close":       c.Titlebar.Buttons.Close,
		"miniaturize": c.Titlebar.Buttons.Miniaturize,
		"zoom":        c.Titlebar.Buttons.Zoom,
	} {
		if b.Width < 0 || b.Height < 0 {
			return &ValidationError{Path: "titlebar.buttons." + name, Err: fmt.Errorf("width and height must be >= 0")}
		}
	}
	if c.Interaction.ResizeBorder < 0 {
		return &ValidationError{Path: "interaction.resize_border", Err: fmt.Errorf("resize_border must be >= 0")}
	}
	if c.Interaction.MinWidth < 1 || c.Interaction.MinHeight < 1 {
		return &ValidationError{Path: "interaction.min_width", Err: fmt.Errorf("min_width and min_height must be >= 1")}
	}
	if c.Interaction.MotionInterval < 0 {
		return &ValidationError{Path: "interaction.motion_interval", Err: fmt.Errorf("motion_interval must be >= 0")}
	}
	if c.Compositor.ShadowRadius < 0 {
		return &ValidationError{Path: "compositor.shadow_radius", Err: fmt.Errorf("shadow_radius must be >= 0")}
	}
	if c.Compositor.ShadowOpacity < 0 || c.Compositor.ShadowOpacity > 1 {
		return &ValidationError{Path: "compositor.shadow_opacity", Err: fmt.Errorf("shadow_opacity must be between 0 and 1")}
	}
	if c.Compositor.CornerRadius < 0 {
		return &ValidationError{Path: "compositor.corner_radius", Err: fmt.Errorf("corner_radius must be >= 0")}
	}
	if c.Compositor.MinInterval < 0 {
		return &ValidationError{Path: "compositor.min_interval", Err: fmt.Errorf("min_interval must be >= 0")}
	}
	if strings.TrimSpace(c.Switcher.Modifier) == "" || strings.TrimSpace(c.Switcher.Key) == "" {
		return &ValidationError{Path: "switcher", Err: fmt.Errorf("modifier and key are required")}
	}
	if c.Theme.ResyncInterval < 0 {
		return &ValidationError{Path: "theme.resync_interval", Err: fmt.Errorf("resync_interval must be >= 0")}
	}
	for path, hex := range map[string]string{
		"compositor.background": c.Compositor.Background,
		"theme.active":          c.Theme.Active,
		"theme.inactive":        c.Theme.Inactive,
		"theme.title_text":      c.Theme.TitleText,
		"theme.close":           c.Theme.Close,
		"theme.miniaturize":     c.Theme.Miniaturize,
		"theme.zoom":            c.Theme.Zoom,
	} {
		if _, err := colorful.Hex(hex); err != nil {
			return &ValidationError{Path: path, Err: fmt.Errorf("invalid color %q: %w", hex, err)}
		}
	}
	switch c.Windows.Detection {
	case "wrapper", "legacy":
	default:
		return &ValidationError{Path: "windows.detection", Err: fmt.Errorf("detection must be one of: wrapper, legacy")}
	}
	if strings.TrimSpace(c.Namespace.Default) == "" {
		return &ValidationError{Path: "namespace.default", Err: fmt.Errorf("default namespace is required")}
	}
	switch c.Namespace.IndicatorStyle {
	case "border", "badge", "stripe", "overlay":
	default:
		return &ValidationError{Path: "namespace.indicator_style", Err: fmt.Errorf("indicator_style must be one of: border, badge, stripe, overlay")}
	}
	if c.Namespace.ViolationLogMaxMB < 0 || c.Namespace.ViolationLogMaxFiles < 0 {
		return &ValidationError{Path: "namespace.violation_log_max_mb", Err: fmt.Errorf("violation log limits must be >= 0")}
	}
	return nil
}
