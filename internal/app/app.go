// Package app assembles the recognition stack from a config.Config for the
// platekit binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/wudi/platekit/aggregate"
	"github.com/wudi/platekit/config"
	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/ocr"
	"github.com/wudi/platekit/ocr/rekognition"
	"github.com/wudi/platekit/ocr/tesseract"
	"github.com/wudi/platekit/pipeline"
	"github.com/wudi/platekit/plate"
	"github.com/wudi/platekit/preprocess"
)

// NewEngine builds the OCR engine named by cfg.Engine.
func NewEngine(ctx context.Context, cfg *config.Config) (ocr.Engine, error) {
	switch cfg.Engine {
	case config.EngineTesseract:
		return tesseract.NewEngine(
			tesseract.WithLanguages(splitLanguages(cfg.TessLanguage)...),
			tesseract.WithWhitelist(cfg.TessWhitelist),
			tesseract.WithPageSegMode(cfg.TessPSM),
		), nil
	case config.EngineRekognition:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return rekognition.NewFromConfig(awsCfg), nil
	}
	return nil, &config.Error{Key: "PLATEKIT_ENGINE", Value: cfg.Engine, Err: fmt.Errorf("unsupported engine")}
}

// NewParser loads cfg.CityRegistry, or the built-in table when it is empty.
func NewParser(cfg *config.Config) (*plate.Parser, error) {
	if cfg.CityRegistry == "" {
		return plate.NewParser(), nil
	}
	f, err := os.Open(cfg.CityRegistry)
	if err != nil {
		return nil, fmt.Errorf("open city registry: %w", err)
	}
	defer f.Close()
	reg, err := plate.LoadRegistry(f)
	if err != nil {
		return nil, fmt.Errorf("city registry %s: %w", cfg.CityRegistry, err)
	}
	return plate.NewParser(plate.WithRegistry(reg)), nil
}

// Stack is the assembled recognition stack.
type Stack struct {
	Pipeline *pipeline.Pipeline
	Parser   *plate.Parser
	Engine   ocr.Engine
}

// NewStack wires decoder, variant generator, engine, parser and aggregator.
func NewStack(ctx context.Context, cfg *config.Config, logger observability.Logger, opts ...pipeline.Option) (*Stack, error) {
	engine, err := NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	parser, err := NewParser(cfg)
	if err != nil {
		return nil, err
	}
	base := []pipeline.Option{
		pipeline.WithConfig(cfg.Pipeline),
		pipeline.WithLogger(logger),
		pipeline.WithAggregator(aggregate.New(aggregate.WithParser(parser), aggregate.WithLogger(logger))),
	}
	p := pipeline.New(
		preprocess.StdDecoder{MinWidth: cfg.MinWidth},
		preprocess.EnhancementGenerator{Rotations: cfg.Rotations},
		engine,
		append(base, opts...)...,
	)
	return &Stack{Pipeline: p, Parser: parser, Engine: engine}, nil
}

// splitLanguages accepts Tesseract's "eng+ara" form as well as commas.
func splitLanguages(s string) []string {
	var out []string
	for _, l := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
