package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/platekit/aggregate"
	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/ocr"
	"github.com/wudi/platekit/preprocess"
)

// collector gathers hypotheses by variant index. Writes after snapshot are
// dropped.
type collector struct {
	mu     sync.Mutex
	slots  []*aggregate.Hypothesis
	closed bool
}

func newCollector(n int) *collector {
	return &collector{slots: make([]*aggregate.Hypothesis, n)}
}

func (c *collector) add(i int, h aggregate.Hypothesis) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.slots[i] = &h
	return true
}

// snapshot closes the collector and returns hypotheses in variant order.
func (c *collector) snapshot() []aggregate.Hypothesis {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	var out []aggregate.Hypothesis
	for _, h := range c.slots {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out
}

// fanout runs the engine over the variants and returns what was collected
// before ctx, which carries the fan-out deadline, is done.
func (p *Pipeline) fanout(ctx context.Context, variants []preprocess.Variant) []aggregate.Hypothesis {
	if len(variants) == 0 || ctx.Err() != nil {
		return nil
	}
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanOCRFanout)
	defer span.Finish()

	col := newCollector(len(variants))
	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(p.cfg.Workers)
		for i, v := range variants {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				p.recognizeVariant(ctx, col, i, v)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Debug("ocr fan-out cut short", observability.Error("error", ctx.Err()))
	}
	hyps := col.snapshot()
	span.SetTag("variants", len(variants))
	span.SetTag("hypotheses", len(hyps))
	return hyps
}

func (p *Pipeline) recognizeVariant(ctx context.Context, col *collector, i int, v preprocess.Variant) {
	if ctx.Err() != nil {
		return
	}
	log := p.logger.With(observability.String("variant", v.Name), observability.String("engine", p.engine.Name()))
	in, err := ocr.InputFromImage(v.Name, v.Image, p.inputOpts...)
	if err != nil {
		log.Debug("variant skipped", observability.Error("error", err))
		return
	}
	res, err := p.call(ctx, in)
	if err != nil {
		log.Debug("ocr call failed", observability.Error("error", err))
		return
	}
	if res.Empty() {
		log.Debug("ocr returned no text")
		return
	}
	if !col.add(i, aggregate.Hypothesis{Text: res.Text, Confidence: res.Confidence}) {
		log.Debug("late ocr result discarded")
	}
}

type reply struct {
	res ocr.Result
	err error
}

// call invokes the engine in its own goroutine. The caller gives up after
// CallTimeout, but the engine slot is held until the engine returns, so no
// more than Workers engine calls ever run at once.
func (p *Pipeline) call(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ocr.Result{}, fmt.Errorf("ocr call %s: waiting for engine slot: %w", in.ID, ctx.Err())
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	ch := make(chan reply, 1)
	go func() {
		defer func() { <-p.slots }()
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("ocr engine panic: %v", r)}
			}
		}()
		res, err := p.engine.Recognize(ctx, in)
		ch <- reply{res: res, err: err}
	}()

	select {
	case r := <-ch:
		return r.res, r.err
	case <-ctx.Done():
		return ocr.Result{}, fmt.Errorf("ocr call %s: %w", in.ID, ctx.Err())
	}
}
