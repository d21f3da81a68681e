package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OTel metric instruments for the client. A nil *Metrics
// records nothing.
type Metrics struct {
	Submissions        metric.Int64Counter
	SubmissionLatency  metric.Float64Histogram
	SessionTransitions metric.Int64Counter
	LogEvents          metric.Int64Counter
}

// NewMetrics creates the client metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("edgeadmin")

	submissions, err := meter.Int64Counter("edgeadmin.submission.count",
		metric.WithDescription("Number of operation submissions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("edgeadmin.submission.latency_seconds",
		metric.WithDescription("Time from request start to classified result"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("edgeadmin.session.transitions",
		metric.WithDescription("Auth session state transitions"),
	)
	if err != nil {
		return nil, err
	}

	logEvents, err := meter.Int64Counter("edgeadmin.logstream.events",
		metric.WithDescription("Log stream events received by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Submissions:        submissions,
		SubmissionLatency:  latency,
		SessionTransitions: transitions,
		LogEvents:          logEvents,
	}, nil
}

// RecordSubmission records a classified submission.
func (m *Metrics) RecordSubmission(ctx context.Context, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.Submissions.Add(ctx, 1, attrs)
	m.SubmissionLatency.Record(ctx, d.Seconds(), attrs)
}

// RecordSessionTransition records an auth state change.
func (m *Metrics) RecordSessionTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.SessionTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordLogEvent records a received log stream event.
func (m *Metrics) RecordLogEvent(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.LogEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
