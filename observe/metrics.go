// Package observe exports session metrics and traces through OpenTelemetry,
// with a Prometheus bridge for scraping.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"whisperkey/session"
)

const meterName = "whisperkey"

// Metrics holds the instruments fed from controller transitions.
type Metrics struct {
	// Sessions counts finished sessions by outcome.
	Sessions metric.Int64Counter

	// Failures counts failed sessions by pipeline stage.
	Failures metric.Int64Counter

	// SessionDuration is key-down to Idle.
	SessionDuration metric.Float64Histogram

	// AudioDuration is the length of recorded audio handed to the model.
	AudioDuration metric.Float64Histogram

	// Recording is 1 while the microphone is open.
	Recording metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Sessions, err = m.Int64Counter("whisperkey.sessions",
		metric.WithDescription("Finished dictation sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Failures, err = m.Int64Counter("whisperkey.failures",
		metric.WithDescription("Failed sessions by pipeline stage."),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("whisperkey.session.duration",
		metric.WithDescription("Time from key press until the controller is idle again."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AudioDuration, err = m.Float64Histogram("whisperkey.audio.duration",
		metric.WithDescription("Length of captured audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Recording, err = m.Int64UpDownCounter("whisperkey.recording",
		metric.WithDescription("1 while a recording is in progress."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Observe updates the instruments for one transition. It has the signature
// session.WithObserver expects.
func (m *Metrics) Observe(t session.Transition) {
	ctx := context.Background()

	if t.To == session.Recording {
		m.Recording.Add(ctx, 1)
	}
	if t.From == session.Recording {
		m.Recording.Add(ctx, -1)
	}
	if t.To == session.Failed {
		m.Failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", session.Stage(t.Reason))))
	}
	if t.To != session.Idle || t.Outcome == "" {
		return
	}

	outcome := metric.WithAttributes(attribute.String("outcome", string(t.Outcome)))
	m.Sessions.Add(ctx, 1, outcome)
	if !t.Started.IsZero() {
		m.SessionDuration.Record(ctx, t.At.Sub(t.Started).Seconds(), outcome)
	}
	if t.Audio > 0 {
		m.AudioDuration.Record(ctx, t.Audio.Seconds(), outcome)
	}
}
