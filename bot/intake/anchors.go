// Package intake classifies free text sent by customers and extracts order
// fields from pasted order summaries.
package intake

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultMinTextLength is the shortest text still considered an order summary.
	DefaultMinTextLength = 50
	// DefaultCountryCode replaces a leading local 0 in phone numbers.
	DefaultCountryCode = "+251"
)

// AnchorConfig is the configurable pattern set used by the classifier.
// Empty fields fall back to the defaults.
type AnchorConfig struct {
	Ref           string   `yaml:"ref"`
	OrderBlock    []string `yaml:"order_block"`
	Total         []string `yaml:"total"`
	QuestionWords []string `yaml:"question_words"`
}

// DefaultAnchorConfig returns the anchors matching the upstream order template.
func DefaultAnchorConfig() AnchorConfig {
	return AnchorConfig{
		Ref: `\bGG-\d{8}-\d{6}-[A-Za-z0-9]{4}\b`,
		OrderBlock: []string{
			`(?i)order\s+summary`,
			`🧾`,
		},
		Total: []string{
			`(?i)total\s*[:=]?\s*(?:ETB|Birr|Br)\.?\s*[\d][\d,]*(?:\.\d+)?`,
			`(?i)total\s*[:=]?\s*[\d][\d,]*(?:\.\d+)?\s*(?:ETB|Birr|Br)\b`,
		},
		QuestionWords: []string{
			"how", "where", "why", "help", "support", "problem", "issue", "can you", "please call",
		},
	}
}

// Anchors is the compiled classifier configuration.
type Anchors struct {
	ref         *regexp.Regexp
	orderBlock  []*regexp.Regexp
	total       []*regexp.Regexp
	question    *regexp.Regexp
	countryCode string
}

// Compile builds Anchors from cfg. countryCode may be empty.
func Compile(cfg AnchorConfig, countryCode string) (*Anchors, error) {
	def := DefaultAnchorConfig()
	if strings.TrimSpace(cfg.Ref) == "" {
		cfg.Ref = def.Ref
	}
	if len(cfg.OrderBlock) == 0 {
		cfg.OrderBlock = def.OrderBlock
	}
	if len(cfg.Total) == 0 {
		cfg.Total = def.Total
	}
	if len(cfg.QuestionWords) == 0 {
		cfg.QuestionWords = def.QuestionWords
	}

	a := &Anchors{countryCode: strings.TrimSpace(countryCode)}
	if a.countryCode == "" {
		a.countryCode = DefaultCountryCode
	}

	var err error
	if a.ref, err = regexp.Compile(cfg.Ref); err != nil {
		return nil, fmt.Errorf("intake: ref anchor: %w", err)
	}
	if a.orderBlock, err = compileAll("order_block", cfg.OrderBlock); err != nil {
		return nil, err
	}
	if a.total, err = compileAll("total", cfg.Total); err != nil {
		return nil, err
	}

	words := make([]string, 0, len(cfg.QuestionWords))
	for _, w := range cfg.QuestionWords {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		words = append(words, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	if len(words) > 0 {
		a.question = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return a, nil
}

// MustDefault compiles the default anchors.
func MustDefault() *Anchors {
	a, err := Compile(AnchorConfig{}, "")
	if err != nil {
		panic(err)
	}
	return a
}

func compileAll(name string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("intake: %s anchor %q: %w", name, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
