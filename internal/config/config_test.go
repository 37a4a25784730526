package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Interaction.ResizeBorder != 10 {
		t.Fatalf("resize_border = %d, want 10", cfg.Interaction.ResizeBorder)
	}
	if cfg.Compositor.ShadowRadius != 12 || cfg.Compositor.CornerRadius != 14 {
		t.Fatalf("shadow/corner radius = %d/%d, want 12/14", cfg.Compositor.ShadowRadius, cfg.Compositor.CornerRadius)
	}
	if cfg.Compositor.ShadowOpacity != 0.35 {
		t.Fatalf("shadow_opacity = %v, want 0.35", cfg.Compositor.ShadowOpacity)
	}
	if cfg.Compositor.ShadowOffsetX != 0 || cfg.Compositor.ShadowOffsetY != 5 {
		t.Fatalf("shadow offset = %d,%d, want 0,5", cfg.Compositor.ShadowOffsetX, cfg.Compositor.ShadowOffsetY)
	}
}

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath error: %v", err)
	}
	if res.File != "" {
		t.Fatalf("File = %q, want empty", res.File)
	}
	if res.Config.Titlebar.Height != DefaultTitlebarHeight {
		t.Fatalf("titlebar height = %d, want default", res.Config.Titlebar.Height)
	}
}

func TestLoadFromPathOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
titlebar:
  height: 30
interaction:
  motion_interval: 8ms
namespace:
  cross_namespace_blocking: true
windows:
  detection: legacy
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath error: %v", err)
	}
	cfg := res.Config
	if cfg.Titlebar.Height != 30 {
		t.Fatalf("titlebar height = %d, want 30", cfg.Titlebar.Height)
	}
	if cfg.Interaction.MotionInterval != 8*time.Millisecond {
		t.Fatalf("motion_interval = %v, want 8ms", cfg.Interaction.MotionInterval)
	}
	if !cfg.Namespace.CrossNamespaceBlocking {
		t.Fatal("expected cross_namespace_blocking true")
	}
	if cfg.Windows.Detection != "legacy" {
		t.Fatalf("detection = %q, want legacy", cfg.Windows.Detection)
	}
	// Untouched keys keep their defaults.
	if cfg.Interaction.ResizeBorder != DefaultResizeBorder {
		t.Fatalf("resize_border = %d, want default", cfg.Interaction.ResizeBorder)
	}
}

func TestLoadFromPathRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("titlebar:\n  hieght: 30\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidationErrorCarriesSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("windows:\n  detection: both\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "windows.detection" || verr.Source.Line != 2 {
		t.Fatalf("ValidationError = %+v, want windows.detection at line 2", verr)
	}
	if !strings.Contains(err.Error(), "config.yaml:2:") {
		t.Fatalf("error %q missing file position", err.Error())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"opacity", func(c *Config) { c.Compositor.ShadowOpacity = 1.5 }, "compositor.shadow_opacity"},
		{"color", func(c *Config) { c.Theme.Active = "blue" }, "theme.active"},
		{"style", func(c *Config) { c.Namespace.IndicatorStyle = "glow" }, "namespace.indicator_style"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"titlebar", func(c *Config) { c.Titlebar.Height = 2 }, "titlebar.height"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Path != tt.path {
				t.Fatalf("Validate() = %v, want ValidationError at %s", err, tt.path)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Compositor.CornerRadius = 6
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath error: %v", err)
	}
	if res.Config.Compositor.CornerRadius != 6 {
		t.Fatalf("corner_radius = %d, want 6", res.Config.Compositor.CornerRadius)
	}
	if res.Config.Compositor.MinInterval != DefaultCompositeMinimum {
		t.Fatalf("min_interval = %v, want %v", res.Config.Compositor.MinInterval, DefaultCompositeMinimum)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	if got := ExpandPath("~/x/y"); got != "/home/tester/x/y" {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs"); got != "/abs" {
		t.Fatalf("ExpandPath(/abs) = %q", got)
	}
}
