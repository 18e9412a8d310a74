// Package aggregate votes over OCR hypotheses produced from many variants of
// the same plate image. Candidates that recur across variants and that look
// structurally like a plate are preferred over single high-confidence
// readings, which stabilises output when the engine confuses glyphs such as
// 9 and P.
package aggregate

import (
	"sort"

	"github.com/wudi/platekit/observability"
	"github.com/wudi/platekit/plate"
)

// Hypothesis is one OCR reading of one image variant.
type Hypothesis struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result is a finalized candidate. Score is only meaningful for ranking.
type Result struct {
	Text        string          `json:"text"`
	Confidence  float64         `json:"confidence"`
	Score       float64         `json:"score"`
	Occurrences int             `json:"occurrences"`
	Breakdown   plate.Breakdown `json:"breakdown"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithParser sets the parser used to break candidates down.
func WithParser(p *plate.Parser) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.parser = p
		}
	}
}

// WithLogger sets the logger used to report the selected candidate.
func WithLogger(l observability.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Aggregator is stateless between calls and safe for concurrent use.
type Aggregator struct {
	parser *plate.Parser
	logger observability.Logger
}

// New constructs an Aggregator using the default parser.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{parser: plate.NewParser(), logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Rank groups hypotheses by normalized text and returns every candidate,
// best first. Ordering is score, then occurrences, then first appearance.
func (a *Aggregator) Rank(hypotheses []Hypothesis) []Result {
	byText := make(map[string]*candidate, len(hypotheses))
	order := make([]*candidate, 0, len(hypotheses))
	for i, h := range hypotheses {
		key := plate.Normalize(h.Text)
		if key == "" {
			continue
		}
		c, ok := byText[key]
		if !ok {
			c = newCandidate(key, a.parser.Parse(key), i)
			byText[key] = c
			order = append(order, c)
		}
		c.observe(h.Confidence)
	}

	type ranked struct {
		res       Result
		firstSeen int
	}
	all := make([]ranked, 0, len(order))
	for _, c := range order {
		if res, ok := c.finalize(); ok {
			all = append(all, ranked{res: res, firstSeen: c.firstSeen})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].res.Score != all[j].res.Score {
			return all[i].res.Score > all[j].res.Score
		}
		if all[i].res.Occurrences != all[j].res.Occurrences {
			return all[i].res.Occurrences > all[j].res.Occurrences
		}
		return all[i].firstSeen < all[j].firstSeen
	})

	out := make([]Result, len(all))
	for i := range all {
		out[i] = all[i].res
	}
	return out
}

// SelectBest returns the best candidate whose confidence reaches threshold,
// falling back to the best candidate overall. ok is false only when no
// hypothesis survives normalization.
func (a *Aggregator) SelectBest(hypotheses []Hypothesis, threshold float64) (Result, bool) {
	return a.Pick(a.Rank(hypotheses), threshold)
}

// Pick applies the threshold rule to a list already ordered by Rank.
func (a *Aggregator) Pick(ranked []Result, threshold float64) (Result, bool) {
	if len(ranked) == 0 {
		return Result{}, false
	}
	best := ranked[0]
	for _, r := range ranked {
		if r.Confidence >= threshold {
			best = r
			break
		}
	}
	a.logger.Debug("aggregated candidate",
		observability.String("text", best.Text),
		observability.Float64("confidence", best.Confidence),
		observability.Int("occurrences", best.Occurrences),
		observability.String("city", best.Breakdown.City),
		observability.String("class", best.Breakdown.Character),
		observability.String("digits", best.Breakdown.Number),
		observability.Bool("meets_threshold", best.Confidence >= threshold),
		observability.Int("candidates", len(ranked)),
	)
	return best, true
}
