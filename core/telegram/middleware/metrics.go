package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	keyMessages = "messages"
	keyKB       = "kb"
	keyAnswered = "answered"
)

// metricsContext wraps tele.Context to count sent messages, keyboards and
// callback answers for the handler summary log.
type metricsContext struct{ tele.Context }

func (m metricsContext) incMessages(hasKB bool) {
	n, _ := m.Get(keyMessages).(int)
	m.Set(keyMessages, n+1)
	if hasKB {
		m.Set(keyKB, true)
	}
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Edit proxies tele.Context.Edit; edits count as responses.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.incMessages(hasKeyboard(opts))
	}
	return err
}

// Respond proxies tele.Context.Respond and marks the callback answered.
func (m metricsContext) Respond(resp ...*tele.CallbackResponse) error {
	err := m.Context.Respond(resp...)
	if err == nil {
		m.Set(keyAnswered, true)
	}
	return err
}

// MessageMetricsMiddleware instruments context to track messages count,
// keyboard usage and callback answers.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(keyMessages, 0)
		c.Set(keyKB, false)
		c.Set(keyAnswered, false)
		return next(metricsContext{Context: c})
	}
}

// Counters are the per-update response counters.
type Counters struct {
	Messages int
	KB       bool
	Answered bool
}

// GetCounters reads the counters recorded for c.
func GetCounters(c tele.Context) Counters {
	var out Counters
	out.Messages, _ = c.Get(keyMessages).(int)
	out.KB, _ = c.Get(keyKB).(bool)
	out.Answered, _ = c.Get(keyAnswered).(bool)
	return out
}
