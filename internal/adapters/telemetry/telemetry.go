// Package telemetry records swallowed errors and product analytics events.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/okian/mapcheck/pkg/logger"
	"github.com/okian/mapcheck/pkg/metrics"
)

// CapturedError is an error kept for the stats endpoint.
type CapturedError struct {
	Component string    `json:"component"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Reporter logs captured errors, counts them and keeps the latest few.
type Reporter struct {
	component string
	log       logger.Logger
	mu        sync.Mutex
	recent    []CapturedError
	keep      int
	now       func() time.Time
}

// NewReporter creates a reporter labelled with component.
func NewReporter(component string, l logger.Logger) *Reporter {
	if l == nil {
		l = logger.Nop()
	}
	return &Reporter{component: component, log: l, keep: 20, now: time.Now}
}

// Capture records err. Nil errors are ignored.
func (r *Reporter) Capture(ctx context.Context, err error) {
	if err == nil {
		return
	}
	r.log.Error(ctx, "captured error", logger.String("component", r.component), logger.Error(err))
	metrics.RecordErrorCaptured(r.component)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, CapturedError{Component: r.component, Message: err.Error(), At: r.now()})
	if len(r.recent) > r.keep {
		r.recent = r.recent[len(r.recent)-r.keep:]
	}
}

// Recent returns the latest captured errors, oldest first.
func (r *Reporter) Recent() []CapturedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CapturedError, len(r.recent))
	copy(out, r.recent)
	return out
}

// Analytics records named product events. Recording never fails.
type Analytics struct {
	log    logger.Logger
	mu     sync.Mutex
	counts map[string]int64
}

// NewAnalytics creates an analytics recorder.
func NewAnalytics(l logger.Logger) *Analytics {
	if l == nil {
		l = logger.Nop()
	}
	return &Analytics{log: l, counts: make(map[string]int64)}
}

// Record logs the event and counts it once per error type.
func (a *Analytics) Record(ctx context.Context, name string, props map[string]any) {
	fields := make([]logger.Field, 0, len(props)+1)
	fields = append(fields, logger.String("event", name))
	for k, v := range props {
		fields = append(fields, logger.Any(k, v))
	}
	a.log.Info(ctx, "analytics event", fields...)

	types, _ := props["error_type"].([]string)
	if len(types) == 0 {
		metrics.RecordAnalyticsEvent(name, "")
	}
	for _, t := range types {
		metrics.RecordAnalyticsEvent(name, t)
	}

	a.mu.Lock()
	a.counts[name]++
	a.mu.Unlock()
}

// Counts returns how many times each event was recorded.
func (a *Analytics) Counts() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int64, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

