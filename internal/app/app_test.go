package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wudi/platekit/config"
	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/plate"
)

func defaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return cfg
}

func TestNewEngine(t *testing.T) {
	cfg := defaults(t)
	e, err := NewEngine(context.Background(), cfg)
	if err != nil || e.Name() != "tesseract" {
		t.Fatalf("unexpected engine %v, %v", e, err)
	}

	cfg.Engine = config.EngineRekognition
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	e, err = NewEngine(context.Background(), cfg)
	if err != nil || e.Name() != "rekognition" {
		t.Fatalf("unexpected engine %v, %v", e, err)
	}

	cfg.Engine = "easyocr"
	var cerr *config.Error
	if _, err := NewEngine(context.Background(), cfg); !errors.As(err, &cerr) {
		t.Fatalf("expected *config.Error, got %v", err)
	}
}

func TestNewParserFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.json")
	body := `[{"code":"RIYADH","name":"Riyadh"},{"code":"KSA","name":"Saudi Arabia"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	cfg := defaults(t)
	cfg.CityRegistry = path
	p, err := NewParser(cfg)
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	if got := p.Parse("RIYADH 1234").City; got != "Riyadh" {
		t.Fatalf("custom registry not used, city = %q", got)
	}

	if err := os.WriteFile(path, []byte(`[{"code":"r1","name":"Bad"}]`), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	if _, err := NewParser(cfg); !errors.Is(err, plate.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestNewStack(t *testing.T) {
	cfg := defaults(t)
	cfg.Pipeline.Workers = 2
	s, err := NewStack(context.Background(), cfg, observability.NopLogger{})
	if err != nil {
		t.Fatalf("NewStack() error = %v", err)
	}
	if s.Pipeline.Config().Workers != 2 || s.Parser == nil || s.Engine == nil {
		t.Fatalf("unexpected stack %+v", s)
	}
}

func TestSplitLanguages(t *testing.T) {
	if got := splitLanguages("eng+ara, fas"); !reflect.DeepEqual(got, []string{"eng", "ara", "fas"}) {
		t.Fatalf("unexpected languages %v", got)
	}
	if got := splitLanguages(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
