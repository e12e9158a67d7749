package extraction

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrPoorImageQuality is returned when the recognized lines are too sparse to
// be a readable receipt
var ErrPoorImageQuality = errors.New("poor image quality")

// QualityGate controls the usability check run before classification
type QualityGate struct {
	Enabled bool
	// MinLineLength is the number of runes a trimmed line needs for the input
	// to count as readable
	MinLineLength int
}

// DefaultQualityGate rejects input whose lines are all shorter than 3 runes
var DefaultQualityGate = QualityGate{Enabled: true, MinLineLength: 3}

// Field is a single extracted key/value pair. An empty Value means the field
// was not found.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Result is the outcome of classifying one receipt
type Result struct {
	Category  Category `json:"category"`
	Title     string   `json:"title"`
	Targeted  bool     `json:"targeted"`
	Fields    []Field  `json:"fields"`
	Residuals []string `json:"residuals"`
}

// Value returns the value for key and whether it was found
func (r *Result) Value(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, f.Value != ""
		}
	}
	return "", false
}

// Matched reports whether any field received a value
func (r *Result) Matched() bool {
	for _, f := range r.Fields {
		if f.Value != "" {
			return true
		}
	}
	return false
}

// Extractor classifies OCR lines into fields. It holds no per-call state and is
// safe for concurrent use.
type Extractor struct {
	gate QualityGate
}

// NewExtractor creates an Extractor with the given quality gate
func NewExtractor(gate QualityGate) *Extractor {
	return &Extractor{gate: gate}
}

// Extract classifies lines using the rule set for category
func (e *Extractor) Extract(lines []string, category Category) (*Result, error) {
	if e.gate.Enabled && !readable(lines, e.gate.MinLineLength) {
		return nil, ErrPoorImageQuality
	}
	if category == "" {
		category = CategoryOther
	}

	rs := rulesFor(category)
	fs := newFieldSet(rs.fields)
	result := &Result{
		Category:  category,
		Targeted:  rs.fields != nil,
		Residuals: []string{},
	}

	var (
		header    string
		residuals []sourceLine
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		src := sourceLine{index: i, text: line}

		if m, ok := classify(rs.rules, line); ok {
			consumed, displaced := fs.assign(m, src)
			if !consumed {
				residuals = append(residuals, src)
			}
			if displaced != nil {
				residuals = append(residuals, *displaced)
			}
			continue
		}

		if rs.header && header == "" {
			header = line
			continue
		}
		residuals = append(residuals, src)
	}

	// displaced guesses come from earlier lines
	sort.SliceStable(residuals, func(a, b int) bool { return residuals[a].index < residuals[b].index })
	for _, r := range residuals {
		result.Residuals = append(result.Residuals, r.text)
	}

	result.Fields = fs.fields()
	result.Title = header
	if result.Title == "" {
		result.Title = category.DisplayName() + " Receipt Summary"
	}
	return result, nil
}

func classify(rules []rule, line string) (match, bool) {
	for _, r := range rules {
		if m, ok := r(line); ok {
			return m, true
		}
	}
	return match{}, false
}

func readable(lines []string, minLength int) bool {
	for _, l := range lines {
		if utf8.RuneCountInString(strings.TrimSpace(l)) >= minLength {
			return true
		}
	}
	return false
}

// sourceLine is a trimmed input line and its position
type sourceLine struct {
	index int
	text  string
}

// fieldSet accumulates values in order. With a fixed key list only those keys
// are accepted; otherwise keys are added as they are first seen.
type fieldSet struct {
	fixed    bool
	order    []string
	values   map[string]string
	explicit map[string]bool
	source   map[string]sourceLine
}

func newFieldSet(keys []string) *fieldSet {
	fs := &fieldSet{
		fixed:    keys != nil,
		order:    append([]string(nil), keys...),
		values:   make(map[string]string, len(keys)),
		explicit: make(map[string]bool),
		source:   make(map[string]sourceLine),
	}
	return fs
}

// assign records m from src and reports whether the line was consumed. When
// an explicit label replaces an implicit guess, the guessed line is returned
// as displaced.
func (fs *fieldSet) assign(m match, src sourceLine) (consumed bool, displaced *sourceLine) {
	current, seen := fs.values[m.key]
	if fs.fixed {
		if !containsKey(fs.order, m.key) || current != "" {
			return false, nil
		}
		fs.values[m.key] = m.value
		fs.source[m.key] = src
		return true, nil
	}

	if !seen {
		fs.order = append(fs.order, m.key)
		fs.values[m.key] = m.value
		fs.explicit[m.key] = m.explicit
		fs.source[m.key] = src
		return true, nil
	}
	if m.explicit && !fs.explicit[m.key] {
		prev := fs.source[m.key]
		fs.values[m.key] = m.value
		fs.explicit[m.key] = true
		fs.source[m.key] = src
		return true, &prev
	}
	return false, nil
}

func (fs *fieldSet) fields() []Field {
	out := make([]Field, 0, len(fs.order))
	for _, k := range fs.order {
		out = append(out, Field{Key: k, Value: fs.values[k]})
	}
	return out
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
