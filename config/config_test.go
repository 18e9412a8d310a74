package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Engine != EngineTesseract {
		t.Fatalf("unexpected server defaults %+v", cfg)
	}
	p := cfg.Pipeline
	if p.Workers != 4 || p.CallTimeout != 5*time.Second || p.FanoutDeadline != 20*time.Second || p.Threshold != 0.85 {
		t.Fatalf("unexpected pipeline defaults %+v", p)
	}
	if cfg.MinWidth != 640 || cfg.Rotations || cfg.TessPSM != 7 || cfg.TessLanguage != "eng" {
		t.Fatalf("unexpected preprocessing defaults %+v", cfg)
	}
	if cfg.AWSRegion != "me-central-1" || cfg.CityRegistry != "" || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{
		"PLATEKIT_ENGINE":          "Rekognition",
		"PLATEKIT_WORKERS":         "8",
		"PLATEKIT_OCR_TIMEOUT":     "750ms",
		"PLATEKIT_FANOUT_DEADLINE": "3s",
		"PLATEKIT_THRESHOLD":       "0.9",
		"PLATEKIT_ROTATIONS":       "true",
		"PLATEKIT_LOG_LEVEL":       "debug",
		"PLATEKIT_CITY_REGISTRY":   "/etc/platekit/cities.json",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Engine != EngineRekognition || cfg.Pipeline.Workers != 8 || !cfg.Rotations {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Pipeline.CallTimeout != 750*time.Millisecond || cfg.Pipeline.FanoutDeadline != 3*time.Second {
		t.Fatalf("durations not applied: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Threshold != 0.9 || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected threshold or level: %+v", cfg)
	}
	if cfg.CityRegistry != "/etc/platekit/cities.json" {
		t.Fatalf("unexpected registry %q", cfg.CityRegistry)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PLATEKIT_WORKERS", "many"},
		{"PLATEKIT_WORKERS", "0"},
		{"PLATEKIT_OCR_TIMEOUT", "5"},
		{"PLATEKIT_THRESHOLD", "1.5"},
		{"PLATEKIT_ROTATIONS", "sometimes"},
		{"PLATEKIT_ENGINE", "easyocr"},
		{"PLATEKIT_LOG_LEVEL", "verbose"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			_, err := LoadFrom(mapLookup(map[string]string{tt.key: tt.value}))
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if cerr.Key != tt.key {
				t.Fatalf("expected key %s, got %s", tt.key, cerr.Key)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	_, err := LoadFrom(mapLookup(map[string]string{"PLATEKIT_WORKERS": "x"}))
	if !errors.Is(err, strconv.ErrSyntax) {
		t.Fatalf("expected wrapped strconv.ErrSyntax, got %v", err)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platekit.env")
	if err := os.WriteFile(path, []byte("PLATEKIT_TESS_PSM=8\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PLATEKIT_TESS_PSM", "")
	os.Unsetenv("PLATEKIT_TESS_PSM")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TessPSM != 8 {
		t.Fatalf("env file not applied, psm = %d", cfg.TessPSM)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file must be ignored: %v", err)
	}
}
