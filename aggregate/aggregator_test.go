package aggregate

import (
	"math"
	"testing"

	"github.com/wudi/platekit/plate"
)

func TestSelectBestPrefersStructuredCandidate(t *testing.T) {
	hs := []Hypothesis{
		{Text: "P5740", Confidence: 0.99},
		{Text: "F97344", Confidence: 0.92},
		{Text: "F97344", Confidence: 0.91},
	}
	best, ok := New().SelectBest(hs, 0.85)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if best.Text != "F97344" {
		t.Fatalf("expected F97344, got %s (%+v)", best.Text, best)
	}
	if best.Occurrences != 2 {
		t.Fatalf("expected 2 occurrences, got %d", best.Occurrences)
	}
	want := plate.Breakdown{Character: "F", Number: "97344"}
	if best.Breakdown != want {
		t.Fatalf("unexpected breakdown: %+v", best.Breakdown)
	}
}

func TestSelectBestWithCityVariant(t *testing.T) {
	hs := []Hypothesis{
		{Text: "P5740", Confidence: 0.99},
		{Text: "DUBAIF97344", Confidence: 0.90},
		{Text: "F97344", Confidence: 0.92},
		{Text: "F97344", Confidence: 0.91},
	}
	best, ok := New().SelectBest(hs, 0.85)
	if !ok || best.Text != "F97344" {
		t.Fatalf("expected F97344, got %+v", best)
	}
}

func TestSelectBestBelowThresholdFallsBack(t *testing.T) {
	hs := []Hypothesis{
		{Text: "P12", Confidence: 0.60},
		{Text: "X99", Confidence: 0.61},
	}
	best, ok := New().SelectBest(hs, 0.80)
	if !ok {
		t.Fatalf("non-empty input must yield a candidate")
	}
	if best.Text != "X99" {
		t.Fatalf("expected X99, got %s", best.Text)
	}
	if best.Confidence >= 0.80 {
		t.Fatalf("confidence %.3f should stay below threshold", best.Confidence)
	}
}

func TestSelectBestEmpty(t *testing.T) {
	cases := [][]Hypothesis{
		nil,
		{},
		{{Text: "", Confidence: 0.9}},
		{{Text: " -- ", Confidence: 0.9}, {Text: "***", Confidence: 0.5}},
	}
	for i, hs := range cases {
		if _, ok := New().SelectBest(hs, 0.5); ok {
			t.Fatalf("case %d: expected no candidate", i)
		}
	}
}

func TestConsensusIsMonotonic(t *testing.T) {
	agg := New()
	var prev float64
	for n := 1; n <= 5; n++ {
		hs := make([]Hypothesis, n)
		for i := range hs {
			hs[i] = Hypothesis{Text: "ABU12345", Confidence: 0.5}
		}
		best, ok := agg.SelectBest(hs, 0.85)
		if !ok {
			t.Fatalf("n=%d: expected candidate", n)
		}
		if best.Occurrences != n {
			t.Fatalf("n=%d: occurrences = %d", n, best.Occurrences)
		}
		switch {
		case n == 1:
		case n <= 4 && best.Confidence <= prev:
			t.Fatalf("n=%d: confidence %.4f did not increase from %.4f", n, best.Confidence, prev)
		case n == 5 && math.Abs(best.Confidence-prev) > 1e-12:
			t.Fatalf("n=5: consensus should be capped, got %.4f vs %.4f", best.Confidence, prev)
		}
		prev = best.Confidence
	}
}

func TestConsensusLiftsConfidence(t *testing.T) {
	hs := []Hypothesis{
		{Text: "ABU12345", Confidence: 0.82},
		{Text: "abu 12345", Confidence: 0.83},
		{Text: "ABU-12345", Confidence: 0.81},
	}
	best, ok := New().SelectBest(hs, 0.80)
	if !ok {
		t.Fatalf("expected candidate")
	}
	if best.Occurrences != 3 {
		t.Fatalf("normalized variants should merge, got %d occurrences", best.Occurrences)
	}
	if best.Confidence <= 0.85 {
		t.Fatalf("consensus should lift confidence, got %.3f", best.Confidence)
	}
	if best.Breakdown.City != "Abu Dhabi" {
		t.Fatalf("expected fuzzy Abu Dhabi, got %q", best.Breakdown.City)
	}
}

func TestConfidenceNeverBelowStability(t *testing.T) {
	best, ok := New().SelectBest([]Hypothesis{{Text: "ZZ", Confidence: 0.9}}, 0.5)
	if !ok {
		t.Fatalf("expected candidate")
	}
	if best.Confidence < 0.9-1e-9 {
		t.Fatalf("penalties must not push below observed confidence, got %.3f", best.Confidence)
	}
}

func TestConfidenceIsClampedAndFinite(t *testing.T) {
	hs := []Hypothesis{
		{Text: "F97344", Confidence: math.NaN()},
		{Text: "DXB12345", Confidence: math.Inf(1)},
		{Text: "A1", Confidence: -3},
	}
	for _, r := range New().Rank(hs) {
		if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) || math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			t.Fatalf("non-finite result: %+v", r)
		}
		if r.Confidence < 0 || r.Confidence > MaxConfidence {
			t.Fatalf("confidence out of range: %+v", r)
		}
	}
}

func TestRankTieBreaksByFirstSeen(t *testing.T) {
	agg := New()
	got := agg.Rank([]Hypothesis{{Text: "A1234", Confidence: 0.7}, {Text: "B1234", Confidence: 0.7}})
	if len(got) != 2 || got[0].Text != "A1234" {
		t.Fatalf("expected A1234 first, got %+v", got)
	}
	got = agg.Rank([]Hypothesis{{Text: "B1234", Confidence: 0.7}, {Text: "A1234", Confidence: 0.7}})
	if got[0].Text != "B1234" {
		t.Fatalf("expected B1234 first, got %+v", got)
	}
}

func TestRankOrdersByScore(t *testing.T) {
	got := New().Rank([]Hypothesis{
		{Text: "12", Confidence: 0.4},
		{Text: "DUBAIF97344", Confidence: 0.8},
		{Text: "F9734", Confidence: 0.6},
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Fatalf("rank not sorted by score: %+v", got)
		}
	}
	if got[0].Text != "DUBAIF97344" {
		t.Fatalf("unexpected winner %s", got[0].Text)
	}
}

func TestPickHonoursThresholdOrder(t *testing.T) {
	ranked := []Result{
		{Text: "HIGHSCORE", Confidence: 0.7, Score: 1.2},
		{Text: "CONFIDENT", Confidence: 0.9, Score: 1.0},
	}
	best, ok := New().Pick(ranked, 0.85)
	if !ok || best.Text != "CONFIDENT" {
		t.Fatalf("expected CONFIDENT, got %+v", best)
	}
	best, _ = New().Pick(ranked, 0.95)
	if best.Text != "HIGHSCORE" {
		t.Fatalf("expected fallback to HIGHSCORE, got %+v", best)
	}
}

func TestScoringWeights(t *testing.T) {
	tests := []struct {
		text        string
		confidences []float64
		confidence  float64
		score       float64
	}{
		// boost 0.08, no penalty, preference +0.07.
		{"P5740", []float64{0.5}, 0.58, 0.65},
		{"P5740", []float64{0.99}, 0.999, 1.069},
		// consensus 0.045, bonus 0.01.
		{"F97344", []float64{0.92, 0.91}, 0.999, 1.079},
		{"F97344", []float64{0.5, 0.5, 0.5}, 0.67, 0.76},
		// boost 0.05, penalty 0.07 + 0.08, preference -0.07.
		{"123456", []float64{0.9, 0.1}, 0.845, 0.785},
		// stability floor: penalty 0.25 and 0.18 exceed the boosts.
		{"12", []float64{0.9}, 0.9, 0.83},
		{"ZZ", []float64{0.9}, 0.9, 0.97},
	}
	for _, tt := range tests {
		hs := make([]Hypothesis, len(tt.confidences))
		for i, c := range tt.confidences {
			hs[i] = Hypothesis{Text: tt.text, Confidence: c}
		}
		ranked := New().Rank(hs)
		if len(ranked) != 1 {
			t.Fatalf("%s: expected one candidate, got %d", tt.text, len(ranked))
		}
		got := ranked[0]
		if math.Abs(got.Confidence-tt.confidence) > 1e-9 {
			t.Errorf("%s %v: confidence = %.6f, want %.6f", tt.text, tt.confidences, got.Confidence, tt.confidence)
		}
		if math.Abs(got.Score-tt.score) > 1e-9 {
			t.Errorf("%s %v: score = %.6f, want %.6f", tt.text, tt.confidences, got.Score, tt.score)
		}
	}
}
