// Package transport builds the HTTP client shared by every backend call. The
// client keeps the session cookie in a jar, tags requests with an id, paces
// them per class, and optionally traces them.
package transport

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"

	"github.com/bulkedge/edgeadmin/internal/ratelimit"
)

// HeaderRequestID carries the per-request id.
const HeaderRequestID = "X-Request-ID"

// Options configures the client.
type Options struct {
	// Timeout bounds each request. Zero means none; streaming clients must
	// leave it zero.
	Timeout time.Duration
	Limiter *ratelimit.Limiter
	Tracing bool
	Logger  *slog.Logger
	// Base is the innermost round tripper; http.DefaultTransport when nil.
	Base http.RoundTripper
	// Jar is shared between clients built from the same options; a new jar
	// is created when nil.
	Jar http.CookieJar
}

// NewJar returns a cookie jar scoped by the public suffix list.
func NewJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("transport: cookie jar: %w", err)
	}
	return jar, nil
}

// New builds an HTTP client from opts.
func New(opts Options) (*http.Client, error) {
	jar := opts.Jar
	if jar == nil {
		var err error
		if jar, err = NewJar(); err != nil {
			return nil, err
		}
	}

	rt := opts.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	if opts.Tracing {
		rt = otelhttp.NewTransport(rt)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt = &pacedTransport{next: rt, limiter: opts.Limiter, logger: logger}

	return &http.Client{Transport: rt, Jar: jar, Timeout: opts.Timeout}, nil
}

type pacedTransport struct {
	next    http.RoundTripper
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context(), ratelimit.ClassFor(req.URL.Path)); err != nil {
			return nil, err
		}
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	id := req.Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
		req.Header.Set(HeaderRequestID, id)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug("backend request failed", "method", req.Method, "path", req.URL.Path,
			"request_id", id, "error", err)
		return nil, err
	}
	t.logger.Debug("backend request", "method", req.Method, "path", req.URL.Path,
		"request_id", id, "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}
