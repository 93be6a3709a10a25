// Package netutil classifies Bot API failures for retrying senders.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/url"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether a failed Bot API call is worth repeating:
// transient dial or timeout failures, flood control and server errors.
// Client errors such as a blocked bot or a bad chat id are final.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := RetryAfter(err); ok {
		return true
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return ShouldRetry(urlErr.Err)
		}
	}
	return false
}

// RetryAfter returns the wait Telegram asked for in a flood error.
func RetryAfter(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	var floodPtr *tele.FloodError
	if errors.As(err, &floodPtr) && floodPtr.RetryAfter > 0 {
		return time.Duration(floodPtr.RetryAfter) * time.Second, true
	}
	return 0, false
}

// Backoff is the delay before the next attempt: the flood wait when
// Telegram sent one, otherwise base grown linearly with attempt.
func Backoff(err error, attempt int, base time.Duration) time.Duration {
	if wait, ok := RetryAfter(err); ok {
		return wait
	}
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Redact hides bot tokens that transport errors embed in request URLs.
func Redact(msg string) string {
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}

// Classify names the failure kind for logs: timeout, dns, dial, tls,
// flood, http_4xx, http_5xx or unknown.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := RetryAfter(err); ok {
		return "flood"
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 {
			return "http_5xx"
		}
		return "http_4xx"
	}
	var dnsErr *net.DNSError
	var netErr net.Error
	var opErr *net.OpError
	var alert tls.AlertError
	var certErr *tls.CertificateVerificationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &alert), errors.As(err, &certErr):
		return "tls"
	}
	return "unknown"
}
