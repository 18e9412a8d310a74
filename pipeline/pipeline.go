// Package pipeline recognizes licence plates in uploaded images: it decodes
// the bytes, derives enhanced variants, runs OCR over them with a bounded
// worker pool and aggregates the hypotheses into a single outcome.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/platekit/aggregate"
	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/ocr"
	"github.com/wudi/platekit/preprocess"
)

// Outcome is the result of one recognition. Empty strings mean the field
// was not found.
type Outcome struct {
	PlateNumber    string  `json:"plate_number,omitempty"`
	City           string  `json:"city,omitempty"`
	PlateCharacter string  `json:"plate_character,omitempty"`
	CarNumber      string  `json:"car_number,omitempty"`
	Confidence     float64 `json:"confidence"`
	Accepted       bool    `json:"accepted"`

	Occurrences int                `json:"occurrences,omitempty"`
	Variants    int                `json:"variants,omitempty"`
	Hypotheses  int                `json:"hypotheses,omitempty"`
	Best        *aggregate.Result  `json:"-"`
	Candidates  []aggregate.Result `json:"candidates,omitempty"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig sets the fan-out configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithLogger sets the logger; the aggregator built by default shares it.
func WithLogger(l observability.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithTracer(t observability.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithAggregator replaces the default aggregator, e.g. to use a custom
// city registry.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.aggregator = a
		}
	}
}

// WithInputOptions are applied to every OCR input.
func WithInputOptions(opts ...ocr.InputOption) Option {
	return func(p *Pipeline) { p.inputOpts = append(p.inputOpts, opts...) }
}

// WithCandidates keeps the ranked candidate list in each Outcome.
func WithCandidates(keep bool) Option {
	return func(p *Pipeline) { p.keepCandidates = keep }
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	decoder    preprocess.Decoder
	generator  preprocess.VariantGenerator
	engine     ocr.Engine
	aggregator *aggregate.Aggregator
	cfg        Config
	inputOpts  []ocr.InputOption

	keepCandidates bool

	// slots bounds in-flight engine calls across every Recognize on this
	// Pipeline, including calls abandoned after CallTimeout.
	slots chan struct{}

	logger observability.Logger
	tracer observability.Tracer
}

// New assembles a pipeline. Nil collaborators fall back to
// preprocess.StdDecoder, preprocess.EnhancementGenerator and
// ocr.DefaultEngine.
func New(decoder preprocess.Decoder, generator preprocess.VariantGenerator, engine ocr.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder:   decoder,
		generator: generator,
		engine:    engine,
		logger:    observability.NopLogger{},
		tracer:    observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.decoder == nil {
		p.decoder = preprocess.StdDecoder{}
	}
	if p.generator == nil {
		p.generator = preprocess.EnhancementGenerator{}
	}
	if p.engine == nil {
		p.engine = ocr.DefaultEngine()
	}
	if p.aggregator == nil {
		p.aggregator = aggregate.New(aggregate.WithLogger(p.logger))
	}
	p.cfg = p.cfg.withDefaults()
	p.slots = make(chan struct{}, p.cfg.Workers)
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Recognize runs one image through the pipeline. Only decoding failures are
// returned as errors; OCR failures degrade to an unaccepted Outcome.
func (p *Pipeline) Recognize(ctx context.Context, data []byte) (Outcome, error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanRecognize)
	defer span.Finish()
	start := time.Now()

	img, err := p.decode(ctx, data)
	if err != nil {
		span.SetError(err)
		return Outcome{}, err
	}

	variants := p.variants(ctx, img)

	// The fallback shares the deadline with the main fan-out.
	fanCtx, cancel := context.WithTimeout(ctx, p.cfg.FanoutDeadline)
	defer cancel()
	hyps := p.fanout(fanCtx, variants)
	if len(hyps) == 0 && fanCtx.Err() == nil {
		p.logger.Debug("no hypotheses from variants, retrying full image",
			observability.Int("variants", len(variants)))
		hyps = p.fanout(fanCtx, []preprocess.Variant{{Name: preprocess.VariantFull, Image: img.Image}})
	}

	out := p.aggregate(ctx, hyps)
	out.Variants = len(variants)
	out.Hypotheses = len(hyps)
	span.SetTag("accepted", out.Accepted)
	p.logger.Info("plate recognized",
		observability.String("plate", out.PlateNumber),
		observability.Float64("confidence", out.Confidence),
		observability.Bool("accepted", out.Accepted),
		observability.Int("variants", out.Variants),
		observability.Int("hypotheses", out.Hypotheses),
		observability.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (p *Pipeline) decode(ctx context.Context, data []byte) (preprocess.Image, error) {
	_, span := p.tracer.StartSpan(ctx, observability.SpanDecode)
	defer span.Finish()
	img, err := p.decoder.Decode(data)
	if err != nil {
		return preprocess.Image{}, fmt.Errorf("decode image: %w", err)
	}
	span.SetTag("format", img.Format)
	return img, nil
}

func (p *Pipeline) variants(ctx context.Context, img preprocess.Image) []preprocess.Variant {
	_, span := p.tracer.StartSpan(ctx, observability.SpanVariants)
	defer span.Finish()
	vs := p.generator.Variants(img)
	span.SetTag("count", len(vs))
	return vs
}

func (p *Pipeline) aggregate(ctx context.Context, hyps []aggregate.Hypothesis) Outcome {
	_, span := p.tracer.StartSpan(ctx, observability.SpanAggregation)
	defer span.Finish()

	ranked := p.aggregator.Rank(hyps)
	best, ok := p.aggregator.Pick(ranked, p.cfg.Threshold)
	if !ok {
		return Outcome{}
	}
	out := Outcome{
		PlateNumber:    best.Text,
		City:           best.Breakdown.City,
		PlateCharacter: best.Breakdown.Character,
		CarNumber:      best.Breakdown.Number,
		Confidence:     best.Confidence,
		Accepted:       best.Confidence >= p.cfg.Threshold,
		Occurrences:    best.Occurrences,
		Best:           &best,
	}
	if p.keepCandidates {
		out.Candidates = ranked
	}
	return out
}
