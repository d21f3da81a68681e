// Package submit builds operation requests from form state and sends them to
// the bulk-change API.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/form"
	"github.com/bulkedge/edgeadmin/internal/observability"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// Client submits operations to the bulk-change API. The HTTP client is
// expected to carry the session cookie jar.
type Client struct {
	base       *url.URL
	cat        *catalog.Catalog
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for submission records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a submission client for the API rooted at baseURL.
func New(baseURL string, cat *catalog.Catalog, httpClient *http.Client, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("submit: invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		base:       u,
		cat:        cat,
		httpClient: httpClient,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit builds and sends st. Every failure is returned inside the Result.
func (c *Client) Submit(ctx context.Context, st form.State) Result {
	start := c.now()
	res := c.submit(ctx, st)
	res.Operation = st.Operation.ID
	res.Duration = c.now().Sub(start)

	outcome := res.Outcome()
	c.metrics.RecordSubmission(ctx, res.Operation, string(outcome), res.Duration)
	if res.OK() {
		c.logger.Info("operation submitted", "operation", res.Operation, "duration", res.Duration)
	} else {
		c.logger.Warn("operation failed", "operation", res.Operation, "outcome", outcome, "error", res.Err)
	}
	return res
}

func (c *Client) submit(ctx context.Context, st form.State) Result {
	payload, err := Build(c.cat, st)
	if err != nil {
		return Result{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(payload.Path), bytes.NewReader(payload.Body))
	if err != nil {
		return Result{Err: fmt.Errorf("submit: build request: %w", err)}
	}
	req.Header.Set("Content-Type", payload.ContentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("sending operation",
		"operation", st.Operation.ID, "path", payload.Path, "file", payload.FileName, "bytes", len(payload.Body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("submit: request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{Err: fmt.Errorf("submit: read response: %w", err)}
	}
	return classify(resp, body)
}

func classify(resp *http.Response, body []byte) Result {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Err: newHTTPError(resp, errorDetail(body))}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Result{Value: json.RawMessage("null")}
	}
	if !gjson.ValidBytes(body) {
		return Result{Err: &DecodeError{StatusCode: resp.StatusCode}}
	}
	if e := gjson.GetBytes(body, "error"); e.Exists() && e.Type != gjson.Null {
		return Result{Err: &AppError{Message: e.String()}}
	}
	if r := gjson.GetBytes(body, "result"); r.Exists() {
		return Result{Value: json.RawMessage(r.Raw)}
	}
	return Result{Value: json.RawMessage(body)}
}

func errorDetail(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		if v := gjson.GetBytes(body, key); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
	}
	return ""
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}
