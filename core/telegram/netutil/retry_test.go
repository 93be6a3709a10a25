package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"url dial", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, true},
		{"server", &tele.Error{Code: 502}, true},
		{"blocked", &tele.Error{Code: 403}, false},
		{"flood", tele.FloodError{RetryAfter: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRetry(tt.err))
		})
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 3*time.Second, Backoff(tele.FloodError{RetryAfter: 3}, 1, time.Second))
	assert.Equal(t, 2*time.Second, Backoff(errors.New("x"), 2, time.Second))
	assert.Equal(t, time.Second, Backoff(errors.New("x"), 0, time.Second))
}

func TestClassify(t *testing.T) {
	tests := map[string]error{
		"":         nil,
		"flood":    tele.FloodError{RetryAfter: 1},
		"http_5xx": &tele.Error{Code: 500},
		"http_4xx": &tele.Error{Code: 400},
		"dns":      &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
		"dial":     &net.OpError{Op: "dial", Err: errors.New("refused")},
		"timeout":  context.DeadlineExceeded,
		"unknown":  errors.New("boom"),
	}
	for want, err := range tests {
		assert.Equal(t, want, Classify(err), "%v", err)
	}
}

func TestRedact(t *testing.T) {
	msg := `Post "https://api.telegram.org/bot123456:ABC-def_ghi/sendMessage": timeout`
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`, Redact(msg))
}
