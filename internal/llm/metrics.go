package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Instrumented wraps a Completer and records request latency by outcome.
type Instrumented struct {
	next     Completer
	duration *prometheus.HistogramVec
}

var _ Completer = (*Instrumented)(nil)

// NewInstrumented registers completion_request_duration_seconds on reg.
func NewInstrumented(next Completer, reg prometheus.Registerer) (*Instrumented, error) {
	m := &Instrumented{
		next: next,
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "completion_request_duration_seconds",
				Help:    "Latency of completion API calls.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		),
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// Complete delegates and observes the call.
func (m *Instrumented) Complete(ctx context.Context, question, docContext string) (string, error) {
	start := time.Now()
	answer, err := m.next.Complete(ctx, question, docContext)
	m.duration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	return answer, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
