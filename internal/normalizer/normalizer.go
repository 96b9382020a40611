// Package normalizer rewrites free-form chat text into a canonical form that
// pattern matchers can rely on.
package normalizer

import (
	"strings"
	"unicode"
)

// Features is a read-only diagnostic of dialect density in a message.
type Features struct {
	Particles        []string `json:"particles"`
	LocalExpressions []string `json:"local_expressions"`
	Abbreviations    []string `json:"abbreviations"`
	Confidence       float64  `json:"confidence"`
}

// Count returns the number of matched features.
func (f Features) Count() int {
	return len(f.Particles) + len(f.LocalExpressions) + len(f.Abbreviations)
}

// Normalizer applies a Dictionary to chat text. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	stages     []map[string]string
	abbr       map[string]string
	preserve   map[string]struct{}
	particles  map[string]struct{}
	localWords map[string]struct{}
	localPhr   []string
}

// New builds a Normalizer from d. Keys are lower-cased.
func New(d Dictionary) *Normalizer {
	abbr := lowerMap(d.Abbreviations)
	n := &Normalizer{
		stages:     []map[string]string{abbr, lowerMap(d.Typos), lowerMap(d.Colloquial)},
		abbr:       abbr,
		preserve:   toSet(d.Preserve),
		particles:  toSet(d.Particles),
		localWords: make(map[string]struct{}),
	}
	for _, expr := range d.LocalExpressions {
		expr = strings.ToLower(strings.TrimSpace(expr))
		if expr == "" {
			continue
		}
		if strings.Contains(expr, " ") {
			n.localPhr = append(n.localPhr, expr)
			continue
		}
		n.localWords[expr] = struct{}{}
	}
	return n
}

// NewDefault returns a Normalizer over DefaultDictionary.
func NewDefault() *Normalizer {
	return New(DefaultDictionary())
}

// Preprocess lower-cases, collapses whitespace, strips punctuation other than
// '?' and '!', then expands abbreviations, fixes typos and normalizes
// colloquial words. Preserved words are never rewritten.
func (n *Normalizer) Preprocess(text string) string {
	cleaned := clean(text)
	if cleaned == "" {
		return ""
	}
	tokens := strings.Fields(cleaned)
	for _, table := range n.stages {
		tokens = n.rewrite(tokens, table)
	}
	return strings.Join(strings.Fields(strings.Join(tokens, " ")), " ")
}

func (n *Normalizer) rewrite(tokens []string, table map[string]string) []string {
	if len(table) == 0 {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		core, suffix := splitMarks(tok)
		if core == "" {
			out = append(out, tok)
			continue
		}
		if _, keep := n.preserve[core]; keep {
			out = append(out, tok)
			continue
		}
		repl, ok := table[core]
		if !ok {
			out = append(out, tok)
			continue
		}
		switch {
		case repl == "" && suffix == "":
		case repl == "":
			out = append(out, suffix)
		default:
			out = append(out, repl+suffix)
		}
	}
	return out
}

// AnalyzeFeatures reports dialect particles, local expressions and
// abbreviations found in text. Confidence is min(1, 0.3 × feature count).
func (n *Normalizer) AnalyzeFeatures(text string) Features {
	cleaned := clean(text)
	f := Features{
		Particles:        []string{},
		LocalExpressions: []string{},
		Abbreviations:    []string{},
	}
	if cleaned == "" {
		return f
	}
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		core, _ := splitMarks(tok)
		if core == "" {
			continue
		}
		if _, dup := seen[core]; dup {
			continue
		}
		seen[core] = struct{}{}
		if _, ok := n.particles[core]; ok {
			f.Particles = append(f.Particles, core)
			continue
		}
		if _, ok := n.localWords[core]; ok {
			f.LocalExpressions = append(f.LocalExpressions, core)
			continue
		}
		if _, keep := n.preserve[core]; keep {
			continue
		}
		if _, ok := n.abbr[core]; ok {
			f.Abbreviations = append(f.Abbreviations, core)
		}
	}
	padded := " " + stripMarks(cleaned) + " "
	for _, phrase := range n.localPhr {
		if strings.Contains(padded, " "+phrase+" ") {
			f.LocalExpressions = append(f.LocalExpressions, phrase)
		}
	}
	f.Confidence = 0.3 * float64(f.Count())
	if f.Confidence > 1 {
		f.Confidence = 1
	}
	return f
}

// IsLocalDialect reports whether the message carries enough dialect features.
func (n *Normalizer) IsLocalDialect(text string) bool {
	return n.AnalyzeFeatures(text).Confidence > 0.3
}

// clean lower-cases, trims, strips punctuation except '?' and '!' and
// collapses whitespace. Apostrophes are dropped so contractions fuse.
func clean(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\'' || r == '’' || r == '`':
		case r == '?' || r == '!':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// splitMarks separates trailing '?'/'!' so "tmr?" still matches "tmr".
func splitMarks(tok string) (core, suffix string) {
	end := len(tok)
	for end > 0 && (tok[end-1] == '?' || tok[end-1] == '!') {
		end--
	}
	return tok[:end], tok[end:]
}

func stripMarks(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("?", " ", "!", " ").Replace(s)), " ")
}

func lowerMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}
