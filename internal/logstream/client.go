package logstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bulkedge/edgeadmin/internal/observability"
)

// PathLogs is the log stream endpoint.
const PathLogs = "/api/logs"

// ErrMalformed marks an event whose data is not a log record.
var ErrMalformed = errors.New("logstream: malformed event")

// Client opens log subscriptions against the backend.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a log stream client. httpClient must not carry a Timeout, or
// the stream is cut when it expires.
func New(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("logstream: invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{base: u, httpClient: httpClient, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Subscription is one open log stream. It ends when the stream ends, fails,
// or is closed; it never reconnects.
type Subscription struct {
	feed        *Feed
	onEntry     func(Entry)
	onMalformed func(error)
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// SubscribeOption configures a Subscription.
type SubscribeOption func(*Subscription)

// OnEntry registers fn to be called for each appended entry, from the
// reader goroutine.
func OnEntry(fn func(Entry)) SubscribeOption {
	return func(s *Subscription) { s.onEntry = fn }
}

// OnMalformed registers fn to be called, from the reader goroutine, with the
// error for each event that could not be used. The stream keeps running.
func OnMalformed(fn func(error)) SubscribeOption {
	return func(s *Subscription) { s.onMalformed = fn }
}

// Open connects to the log stream and starts appending to feed.
func (c *Client) Open(ctx context.Context, feed *Feed, opts ...SubscribeOption) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.ResolveReference(&url.URL{Path: PathLogs}).String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("logstream: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("logstream: connect: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("logstream: connect: unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("logstream: connect: unexpected content type %q", ct)
	}

	s := &Subscription{feed: feed, cancel: cancel, done: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	c.logger.Info("log stream opened", "url", req.URL.String())

	go func() {
		defer close(s.done)
		defer cancel()
		defer resp.Body.Close()
		err := readEvents(resp.Body, func(ev event) { c.handle(ctx, s, ev) })
		if err != nil && ctx.Err() == nil {
			s.setErr(fmt.Errorf("logstream: read: %w", err))
			c.logger.Warn("log stream failed", "error", err)
			return
		}
		c.logger.Info("log stream closed")
	}()
	return s, nil
}

func (c *Client) handle(ctx context.Context, s *Subscription, ev event) {
	if ev.Err != nil {
		c.malformed(ctx, s, ev, ev.Err)
		return
	}
	var rec struct {
		Target  *string `json:"target"`
		Level   string  `json:"level"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal([]byte(ev.Data), &rec); err != nil || rec.Message == nil {
		if err == nil {
			err = errors.New("missing message")
		}
		c.malformed(ctx, s, ev, err)
		return
	}

	e := Entry{Level: strings.ToLower(rec.Level), Message: *rec.Message, ReceivedAt: c.now()}
	if rec.Target != nil {
		e.Target = *rec.Target
	}
	if e.Level == "" {
		e.Level = "info"
	}
	e = s.feed.Append(e)
	c.metrics.RecordLogEvent(ctx, "ok")
	if s.onEntry != nil {
		s.onEntry(e)
	}
}

func (c *Client) malformed(ctx context.Context, s *Subscription, ev event, cause error) {
	err := fmt.Errorf("%w: %w", ErrMalformed, cause)
	s.feed.reject(err)
	c.metrics.RecordLogEvent(ctx, "malformed")
	c.logger.Debug("malformed log event", "id", ev.ID, "error", cause)
	if s.onMalformed != nil {
		s.onMalformed(err)
	}
}

// Feed returns the feed the subscription appends to.
func (s *Subscription) Feed() *Feed { return s.feed }

// Done is closed when the reader has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the stream-level failure, nil if the stream ended cleanly or
// was closed.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for the reader to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
