package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/wudi/platekit/config"
	"github.com/wudi/platekit/internal/app"
	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/pipeline"
)

type options struct {
	images     []string
	candidates bool
	verbose    bool
}

type result struct {
	File  string            `json:"file"`
	Error string            `json:"error,omitempty"`
	Plate *pipeline.Outcome `json:"outcome,omitempty"`
}

func main() {
	cfg, opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "platekit: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "platekit: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags starts from the environment configuration and applies flags
// on top.
func parseFlags(args []string) (*config.Config, options, error) {
	cfg, err := config.LoadFrom(os.LookupEnv)
	if err != nil {
		return nil, options{}, err
	}
	var opts options
	fs := flag.NewFlagSet("platekit", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: platekit [flags] <image>...\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.Engine, "engine", cfg.Engine, "OCR engine: tesseract or rekognition")
	fs.Float64Var(&cfg.Pipeline.Threshold, "threshold", cfg.Pipeline.Threshold, "Acceptance confidence")
	fs.IntVar(&cfg.Pipeline.Workers, "workers", cfg.Pipeline.Workers, "Concurrent OCR calls")
	fs.DurationVar(&cfg.Pipeline.CallTimeout, "timeout", cfg.Pipeline.CallTimeout, "Timeout per OCR call")
	fs.BoolVar(&cfg.Rotations, "rotations", cfg.Rotations, "Also try rotated and mirrored layouts")
	fs.StringVar(&cfg.TessLanguage, "lang", cfg.TessLanguage, "Tesseract languages, e.g. eng+ara")
	fs.StringVar(&cfg.CityRegistry, "registry", cfg.CityRegistry, "JSON city registry file")
	fs.BoolVar(&opts.candidates, "candidates", false, "Include ranked candidates in the output")
	fs.BoolVar(&opts.verbose, "v", false, "Debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return nil, options{}, err
	}
	cfg.Engine = strings.ToLower(strings.TrimSpace(cfg.Engine))
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, options{}, fmt.Errorf("missing image path")
	}
	if err := cfg.Validate(); err != nil {
		return nil, options{}, err
	}
	opts.images = fs.Args()
	return cfg, opts, nil
}

func run(cfg *config.Config, opts options, w io.Writer) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx := context.Background()
	stack, err := app.NewStack(ctx, cfg, logger, pipeline.WithCandidates(opts.candidates))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	var failed int
	for _, path := range opts.images {
		res := recognizeFile(ctx, stack.Pipeline, path)
		if res.Error != "" {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(opts.images))
	}
	return nil
}

func recognizeFile(ctx context.Context, p *pipeline.Pipeline, path string) result {
	data, err := os.ReadFile(path)
	if err != nil {
		return result{File: path, Error: err.Error()}
	}
	out, err := p.Recognize(ctx, data)
	if err != nil {
		return result{File: path, Error: err.Error()}
	}
	return result{File: path, Plate: &out}
}
