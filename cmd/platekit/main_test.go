package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseFlags(t *testing.T) {
	cfg, opts, err := parseFlags([]string{
		"-engine", "rekognition", "-threshold", "0.7", "-workers", "2",
		"-timeout", "2s", "-rotations", "-candidates", "a.png", "b.jpg",
	})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.Engine != "rekognition" || cfg.Pipeline.Threshold != 0.7 || cfg.Pipeline.Workers != 2 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Pipeline.CallTimeout != 2*time.Second || !cfg.Rotations || !opts.candidates {
		t.Fatalf("flags not applied: %+v %+v", cfg, opts)
	}
	if len(opts.images) != 2 || opts.images[1] != "b.jpg" {
		t.Fatalf("unexpected images %v", opts.images)
	}
}

func TestParseFlagsEngineIsCaseInsensitive(t *testing.T) {
	cfg, _, err := parseFlags([]string{"-engine", " Tesseract ", "a.png"})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if cfg.Engine != "tesseract" {
		t.Fatalf("expected lowercased engine, got %q", cfg.Engine)
	}
}

func TestParseFlagsUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-threshold", "2", "a.png"},
		{"-engine", "easyocr", "a.png"},
		{"-workers", "x", "a.png"},
	} {
		if _, _, err := parseFlags(args); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestRunReportsUndecodableImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg, opts, err := parseFlags([]string{path, filepath.Join(t.TempDir(), "missing.png")})
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	var out bytes.Buffer
	err = run(cfg, opts, &out)
	if err == nil || !strings.Contains(err.Error(), "2 of 2") {
		t.Fatalf("expected both images to fail, got %v", err)
	}
	dec := json.NewDecoder(&out)
	for i := 0; i < 2; i++ {
		var res result
		if err := dec.Decode(&res); err != nil {
			t.Fatalf("decode result %d: %v", i, err)
		}
		if res.Error == "" || res.Plate != nil {
			t.Fatalf("expected error result, got %+v", res)
		}
	}
}
