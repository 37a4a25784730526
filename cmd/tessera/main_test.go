package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/1broseidon/tessera/internal/ipc"
)

func TestToggleFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"OFF", false, false},
		{"yes", true, false},
		{"false", false, false},
		{"1", true, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		var f toggleFlag
		err := f.Set(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("Set(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if tt.wantErr {
			if f.v != nil {
				t.Errorf("Set(%q) failed but stored a value", tt.in)
			}
			continue
		}
		if f.v == nil || *f.v != tt.want {
			t.Errorf("Set(%q) = %v, want %v", tt.in, f.v, tt.want)
		}
	}

	var unset toggleFlag
	if unset.String() != "" {
		t.Errorf("unset String() = %q, want empty", unset.String())
	}
}

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		l := newLogger(tt.level)
		if !l.Enabled(context.Background(), tt.want) {
			t.Errorf("newLogger(%q) disables %v", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && l.Enabled(context.Background(), tt.want-4) {
			t.Errorf("newLogger(%q) enables %v", tt.level, tt.want-4)
		}
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	res, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if res.File != "" {
		t.Errorf("File = %q, want empty", res.File)
	}
	if res.Config.Titlebar.Height != 24 {
		t.Errorf("titlebar height = %d, want default 24", res.Config.Titlebar.Height)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("titlebar:\n  heigth: 30\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("loadConfig accepted an unknown key")
	}
}

func TestWriteStatus(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	writeStatus(&buf, &ipc.StatusData{
		UptimeSeconds:    90,
		ManagedWindows:   3,
		CompositorActive: true,
		CurrentNamespace: "default",
		Namespaces:       2,
		Detection:        "wrapper",
		Policy:           ipc.PolicyData{VisualIndicators: true},
	})
	out := buf.String()
	for _, want := range []string{"1m30s", "managed_windows:     3", "default (2 total)", "wrapper", "cross_ns_blocking:   off"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}
