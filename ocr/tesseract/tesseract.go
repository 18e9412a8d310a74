// Package tesseract implements ocr.Engine with the gosseract bindings.
// Importing the package installs it as ocr.DefaultEngine.
package tesseract

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/otiai10/gosseract/v2"
	"github.com/wudi/platekit/ocr"
)

func init() {
	ocr.SetDefaultEngine(NewEngine())
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages selects the trained data, "eng" by default.
func WithLanguages(langs ...string) Option {
	return func(e *Engine) {
		if len(langs) > 0 {
			e.languages = append([]string(nil), langs...)
		}
	}
}

// WithWhitelist restricts recognition to chars. An empty string disables the
// whitelist.
func WithWhitelist(chars string) Option {
	return func(e *Engine) { e.whitelist = strings.TrimSpace(chars) }
}

// WithPageSegMode sets tessedit_pageseg_mode; zero keeps the Tesseract default.
func WithPageSegMode(mode int) Option {
	return func(e *Engine) { e.psm = mode }
}

// WithDPI sets user_defined_dpi for inputs that do not carry their own.
func WithDPI(dpi int) Option {
	return func(e *Engine) { e.dpi = dpi }
}

// WithDictionary toggles the system and frequency dictionaries. Plates are
// not words, so dictionaries are disabled by default.
func WithDictionary(enabled bool) Option {
	return func(e *Engine) { e.dictionary = enabled }
}

// Engine runs Tesseract through a fresh gosseract client per call; clients
// are not safe for concurrent use, the Engine is.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
	whitelist     string
	psm           int
	dpi           int
	dictionary    bool
}

// NewEngine constructs a Tesseract-backed engine tuned for plate text.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clientFactory: gosseract.NewClient,
		languages:     []string{"eng"},
		whitelist:     ocr.PlateCharset,
		psm:           7,
		dpi:           300,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.clientFactory()
	defer c.Close()
	return e.recognizeWithClient(c, in)
}

func (e *Engine) recognizeWithClient(c *gosseract.Client, in ocr.Input) (ocr.Result, error) {
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	langs := e.languages
	if len(in.Languages) > 0 {
		langs = in.Languages
	}
	if err := c.SetLanguage(langs...); err != nil {
		return ocr.Result{}, fmt.Errorf("set languages: %w", err)
	}
	for k, v := range e.variables(in) {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	plain := strings.TrimSpace(text)
	if plain == "" {
		return ocr.Result{InputID: in.ID}, nil
	}
	words, conf := extractWords(c)
	return ocr.Result{
		InputID:    in.ID,
		Text:       plain,
		Confidence: conf,
		Words:      words,
	}, nil
}

// variables merges engine defaults with per-input metadata; input wins.
func (e *Engine) variables(in ocr.Input) map[string]string {
	vars := map[string]string{
		"preserve_interword_spaces": "1",
	}
	if e.whitelist != "" {
		vars["tessedit_char_whitelist"] = e.whitelist
	}
	if e.psm > 0 {
		vars["tessedit_pageseg_mode"] = strconv.Itoa(e.psm)
	}
	if !e.dictionary {
		vars["load_system_dawg"] = "false"
		vars["load_freq_dawg"] = "false"
	}
	dpi := e.dpi
	if in.DPI > 0 {
		dpi = in.DPI
	}
	if dpi > 0 {
		vars["user_defined_dpi"] = strconv.Itoa(dpi)
	}
	for k, v := range in.Metadata {
		vars[k] = v
	}
	if forceNumericMode(vars["tessedit_char_whitelist"]) {
		vars["classify_bln_numeric_mode"] = "1"
	}
	return vars
}

// forceNumericMode reports whether a whitelist admits digits only.
func forceNumericMode(whitelist string) bool {
	whitelist = strings.TrimSpace(whitelist)
	if whitelist == "" {
		return false
	}
	return strings.IndexFunc(whitelist, unicode.IsLetter) < 0
}

// extractWords returns the word boxes and their mean confidence scaled to
// [0,1]. Negative confidences mark boxes Tesseract could not score.
func extractWords(c *gosseract.Client) ([]ocr.TextWord, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	words := make([]ocr.TextWord, 0, len(boxes))
	var sum float64
	var scored int
	for _, b := range boxes {
		conf := scaleConfidence(b.Confidence)
		if b.Confidence >= 0 {
			sum += conf
			scored++
		}
		words = append(words, ocr.TextWord{Text: b.Word, Bounds: b.Box, Confidence: conf})
	}
	if scored == 0 {
		return words, 0
	}
	return words, sum / float64(scored)
}

func scaleConfidence(v float64) float64 {
	v /= 100
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
