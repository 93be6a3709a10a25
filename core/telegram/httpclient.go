package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/dispatchbot/core/telegram/netutil"
)

const (
	dialTimeout     = 5 * time.Second
	keepAlive       = 30 * time.Second
	idleConnTimeout = 30 * time.Second
	headerTimeout   = 5 * time.Second

	// clientTimeout must exceed the long poll timeout.
	clientTimeout = 30 * time.Second

	dialRetries = 3
	dialBackoff = time.Second
)

// newHTTPClient returns the Bot API client. Only failures to connect are
// retried here: a request that reached Telegram may have delivered a message,
// so everything else is left to the sender's retry policy.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: clientTimeout,
		Transport: &dialRetryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       idleConnTimeout,
				TLSHandshakeTimeout:   dialTimeout,
				ResponseHeaderTimeout: headerTimeout,
				ExpectContinueTimeout: time.Second,
			},
			retries: dialRetries,
			backoff: dialBackoff,
		},
	}
}

type dialRetryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && isDialError(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		timer := time.NewTimer(netutil.Backoff(err, attempt, t.backoff))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			if retry.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
		resp, err = t.base.RoundTrip(retry)
	}
	return resp, err
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
