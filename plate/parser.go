// Package plate turns normalized OCR text into a structured plate breakdown:
// issuing city, classification letters and the numeric sequence.
package plate

import "strings"

// DefaultMaxFuzzyDistance is the largest edit distance accepted when a letter
// segment is matched approximately against a city code.
const DefaultMaxFuzzyDistance = 1

// Breakdown is the structured reading of a plate. Empty fields are absent.
type Breakdown struct {
	City      string `json:"city,omitempty"`
	Character string `json:"plate_character,omitempty"`
	Number    string `json:"car_number,omitempty"`
}

// IsEmpty reports whether no field was recognized.
func (b Breakdown) IsEmpty() bool {
	return b.City == "" && b.Character == "" && b.Number == ""
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRegistry replaces the city table used for matching.
func WithRegistry(r *Registry) ParserOption {
	return func(p *Parser) {
		if r != nil {
			p.registry = r
		}
	}
}

// WithMaxFuzzyDistance overrides the approximate matching threshold. Negative
// values disable fuzzy matching.
func WithMaxFuzzyDistance(d int) ParserOption {
	return func(p *Parser) { p.maxFuzzy = d }
}

// Parser segments plate text. It holds no mutable state and is safe for
// concurrent use.
type Parser struct {
	registry *Registry
	maxFuzzy int
}

// NewParser constructs a Parser over the default registry unless overridden.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{registry: DefaultRegistry(), maxFuzzy: DefaultMaxFuzzyDistance}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse parses text with the default registry.
func Parse(text string) Breakdown {
	return defaultParser.Parse(text)
}

type matchSource int

const (
	sourceNone matchSource = iota
	sourcePrefix
	sourceSuffix
	sourceGlobal
)

// Parse segments raw OCR text. Blank or symbol-only input yields an empty
// Breakdown.
func (p *Parser) Parse(text string) Breakdown {
	normalized := Normalize(text)
	if normalized == "" {
		return Breakdown{}
	}

	first := strings.IndexFunc(normalized, isDigitRune)
	last := strings.LastIndexFunc(normalized, isDigitRune)

	prefix := normalized
	suffix := ""
	if first >= 0 {
		prefix = normalized[:first]
		suffix = normalized[last+1:]
	}
	prefix = lettersOnly(prefix)
	suffix = lettersOnly(suffix)

	match, src := p.resolveCity(prefix, suffix, normalized)

	var out Breakdown
	if match != nil {
		out.City = match.Name
	}
	out.Number = digitsOnly(normalized)
	if src == sourceSuffix {
		out.Character = firstClassification(match, suffix, prefix)
	} else {
		out.Character = firstClassification(match, prefix, suffix)
	}
	return out
}

func isDigitRune(r rune) bool { return r >= '0' && r <= '9' }

func (p *Parser) resolveCity(prefix, suffix, normalized string) (*CityPattern, matchSource) {
	if m := p.exact(prefix); m != nil {
		return m, sourcePrefix
	}
	if m := p.exact(suffix); m != nil {
		return m, sourceSuffix
	}
	if m := p.fuzzy(prefix); m != nil {
		return m, sourcePrefix
	}
	if m := p.fuzzy(suffix); m != nil {
		return m, sourceSuffix
	}
	for i := range p.registry.patterns {
		if strings.Contains(normalized, p.registry.patterns[i].Code) {
			return &p.registry.patterns[i], sourceGlobal
		}
	}
	return nil, sourceNone
}

// exact relies on registry order: the first hit is the longest code.
func (p *Parser) exact(letters string) *CityPattern {
	if letters == "" {
		return nil
	}
	for i := range p.registry.patterns {
		if strings.HasPrefix(letters, p.registry.patterns[i].Code) {
			return &p.registry.patterns[i]
		}
	}
	return nil
}

func (p *Parser) fuzzy(letters string) *CityPattern {
	if len(letters) < 2 || p.maxFuzzy < 0 {
		return nil
	}
	var best *CityPattern
	bestDist := p.maxFuzzy + 1
	for i := range p.registry.patterns {
		d := prefixDistance(letters, p.registry.patterns[i].Code)
		// Strictly smaller only: on ties the earlier, longer code stays.
		if d < bestDist {
			best = &p.registry.patterns[i]
			bestDist = d
		}
	}
	return best
}

// prefixDistance is the smallest edit distance between letters and the
// prefixes of code whose length lies within one of len(letters).
func prefixDistance(letters, code string) int {
	n, m := len(letters), len(code)
	lo := max(2, min(n-1, m))
	hi := max(2, min(n+1, m))
	hi = min(hi, m)
	lo = min(lo, hi)
	best := -1
	for l := lo; l <= hi; l++ {
		d := levenshtein(letters, code[:l])
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return levenshtein(letters, code)
	}
	return best
}

func firstClassification(match *CityPattern, segments ...string) string {
	for _, s := range segments {
		if c := classification(s, match); c != "" {
			return c
		}
	}
	return ""
}

func classification(letters string, match *CityPattern) string {
	if letters == "" {
		return ""
	}
	if match != nil {
		letters = strings.TrimPrefix(letters, match.Code)
	}
	return lettersOnly(letters)
}
