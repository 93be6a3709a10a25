package intake

import (
	"strings"
	"unicode/utf8"
)

// Options tunes IsOrderSummaryStrict.
type Options struct {
	Strict        bool
	MinTextLength int
}

// DefaultOptions returns strict mode with the default minimum length.
func DefaultOptions() Options {
	return Options{Strict: true, MinTextLength: DefaultMinTextLength}
}

// Kind is the classification of an incoming text.
type Kind int

const (
	KindNoise Kind = iota
	KindOrder
	KindQuestion
)

func (k Kind) String() string {
	switch k {
	case KindOrder:
		return "order"
	case KindQuestion:
		return "question"
	default:
		return "noise"
	}
}

// IsOrderSummaryStrict reports whether text looks like a pasted order summary.
// Strict mode requires the reference, order-block and total anchors together;
// otherwise any one of them is enough. Texts shorter than MinTextLength never match.
func (a *Anchors) IsOrderSummaryStrict(text string, opts Options) bool {
	minLen := opts.MinTextLength
	if minLen <= 0 {
		minLen = DefaultMinTextLength
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minLen {
		return false
	}

	hasRef := a.ref.MatchString(text)
	hasBlock := matchAny(a.orderBlock, text)
	hasTotal := matchAny(a.total, text)

	if opts.Strict {
		return hasRef && hasBlock && hasTotal
	}
	return hasRef || hasBlock || hasTotal
}

// IsLikelyQuestion reports whether text asks something or names a support trigger.
func (a *Anchors) IsLikelyQuestion(text string) bool {
	if strings.ContainsAny(text, "?？") {
		return true
	}
	return a.question != nil && a.question.MatchString(text)
}

// Classify runs the order check first, then the question check.
func (a *Anchors) Classify(text string, opts Options) Kind {
	switch {
	case a.IsOrderSummaryStrict(text, opts):
		return KindOrder
	case a.IsLikelyQuestion(text):
		return KindQuestion
	default:
		return KindNoise
	}
}
