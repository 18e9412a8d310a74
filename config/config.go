// Package config reads daemon settings from the environment after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/ocr"
	"github.com/wudi/platekit/pipeline"
	"github.com/wudi/platekit/preprocess"
)

// Supported OCR engines.
const (
	EngineTesseract   = "tesseract"
	EngineRekognition = "rekognition"
)

// Config holds the daemon settings.
type Config struct {
	HTTPAddr string
	Engine   string

	Pipeline  pipeline.Config
	MinWidth  int
	Rotations bool

	TessLanguage  string
	TessWhitelist string
	TessPSM       int

	AWSRegion string

	// CityRegistry is a JSON registry file; empty selects the built-in table.
	CityRegistry string
	LogLevel     slog.Level
}

// Error reports an environment variable that could not be parsed.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads the given .env files (".env" when none are named; a missing
// file is not an error) and then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds a Config from lookup, which has the os.LookupEnv contract.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}
	cfg := &Config{
		HTTPAddr: r.str("PLATEKIT_HTTP_ADDR", ":8080"),
		Engine:   strings.ToLower(r.str("PLATEKIT_ENGINE", EngineTesseract)),
		Pipeline: pipeline.Config{
			Workers:        r.int("PLATEKIT_WORKERS", pipeline.DefaultWorkers),
			CallTimeout:    r.duration("PLATEKIT_OCR_TIMEOUT", pipeline.DefaultCallTimeout),
			FanoutDeadline: r.duration("PLATEKIT_FANOUT_DEADLINE", pipeline.DefaultFanoutDeadline),
			Threshold:      r.float("PLATEKIT_THRESHOLD", pipeline.DefaultThreshold),
		},
		MinWidth:      r.int("PLATEKIT_MIN_WIDTH", preprocess.DefaultMinWidth),
		Rotations:     r.bool("PLATEKIT_ROTATIONS", false),
		TessLanguage:  r.str("PLATEKIT_TESS_LANGUAGE", "eng"),
		TessWhitelist: r.str("PLATEKIT_TESS_WHITELIST", ocr.PlateCharset),
		TessPSM:       r.int("PLATEKIT_TESS_PSM", 7),
		AWSRegion:     r.str("PLATEKIT_AWS_REGION", "me-central-1"),
		CityRegistry:  r.str("PLATEKIT_CITY_REGISTRY", ""),
	}
	level := r.str("PLATEKIT_LOG_LEVEL", "info")
	if lv, ok := observability.ParseLevel(level); ok {
		cfg.LogLevel = lv
	} else {
		r.fail("PLATEKIT_LOG_LEVEL", level, errors.New("unknown level"))
	}
	if r.err != nil {
		return nil, r.err
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineTesseract, EngineRekognition:
	default:
		return &Error{Key: "PLATEKIT_ENGINE", Value: c.Engine, Err: errors.New("unsupported engine")}
	}
	if c.Pipeline.Workers <= 0 {
		return &Error{Key: "PLATEKIT_WORKERS", Value: strconv.Itoa(c.Pipeline.Workers), Err: errors.New("must be positive")}
	}
	if t := c.Pipeline.Threshold; t <= 0 || t > 1 {
		return &Error{Key: "PLATEKIT_THRESHOLD", Value: strconv.FormatFloat(t, 'g', -1, 64), Err: errors.New("must be in (0,1]")}
	}
	return nil
}

// reader keeps the first parse error.
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = &Error{Key: key, Value: value, Err: err}
	}
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) bool(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}
