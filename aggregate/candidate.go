package aggregate

import (
	"math"

	"github.com/wudi/platekit/plate"
)

// candidate accumulates every observation of one normalized text within a
// single SelectBest call.
type candidate struct {
	text        string
	breakdown   plate.Breakdown
	firstSeen   int
	occurrences int
	sum         float64
	max         float64
	hasLetter   bool
	hasDigit    bool
}

func newCandidate(text string, breakdown plate.Breakdown, firstSeen int) *candidate {
	return &candidate{
		text:      text,
		breakdown: breakdown,
		firstSeen: firstSeen,
		hasLetter: plate.HasLetter(text),
		hasDigit:  plate.HasDigit(text),
	}
}

func (c *candidate) observe(confidence float64) {
	v := sanitize(confidence)
	c.occurrences++
	c.sum += v
	c.max = math.Max(c.max, v)
}

func (c *candidate) finalize() (Result, bool) {
	if c.occurrences == 0 {
		return Result{}, false
	}
	confidence := clamp(c.aggregatedConfidence())
	score := confidence + c.consensusBonus() + c.structurePreference()
	return Result{
		Text:        c.text,
		Confidence:  confidence,
		Score:       score,
		Occurrences: c.occurrences,
		Breakdown:   c.breakdown,
	}, true
}

func (c *candidate) aggregatedConfidence() float64 {
	consensus := math.Min(0.12, 0.045*float64(max(0, c.occurrences-1)))
	raised := c.max + consensus + c.structureBoost() - c.structurePenalty()
	stability := math.Min(c.max, c.sum/float64(c.occurrences))
	return math.Max(raised, stability)
}

func (c *candidate) structureBoost() float64 {
	var boost float64
	if n := len(c.breakdown.Number); n >= 4 && n <= 6 {
		boost += 0.05
	} else if n >= 3 && n <= 7 {
		boost += 0.02
	}
	if ch := c.breakdown.Character; ch != "" && len(ch) <= 2 {
		boost += 0.02
	}
	if c.breakdown.City != "" {
		boost += 0.01
	}
	if c.hasLetter && c.hasDigit {
		boost += 0.01
	}
	return boost
}

func (c *candidate) structurePenalty() float64 {
	var penalty float64
	if n := len(c.breakdown.Number); n < 3 {
		penalty += 0.06
	} else if n > 7 {
		penalty += 0.04
	}
	if !c.hasDigit {
		penalty += 0.08
	}
	if c.breakdown.Character == "" {
		penalty += 0.07
	}
	if !c.hasLetter {
		penalty += 0.08
	}
	if len(c.text) < 4 {
		penalty += 0.04
	}
	return penalty
}

// structurePreference only affects ranking, never the reported confidence.
func (c *candidate) structurePreference() float64 {
	var pref float64
	if ch := c.breakdown.Character; ch != "" {
		pref += 0.05
		if len(ch) <= 2 {
			pref += 0.01
		}
	} else {
		pref -= 0.04
	}
	if c.hasLetter {
		pref += 0.01
	} else {
		pref -= 0.03
	}
	return pref
}

func (c *candidate) consensusBonus() float64 {
	return math.Min(0.05, 0.01*float64(max(0, c.occurrences-1)))
}

// MaxConfidence is the ceiling applied to aggregated confidence.
const MaxConfidence = 0.999

func clamp(v float64) float64 {
	return math.Max(0, math.Min(MaxConfidence, v))
}

// sanitize keeps engine confidences finite and non-negative.
func sanitize(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case math.IsInf(v, 1):
		return 1
	}
	return v
}
