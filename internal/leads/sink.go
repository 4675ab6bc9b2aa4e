// Package leads delivers lead records to the external lead log.
package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/jkindrix/quotebot/internal/domain"
)

// Sink receives lead records.
type Sink interface {
	Record(ctx context.Context, rec domain.LeadRecord) error
}

// Named is implemented by sinks that carry a label for logs and metrics.
type Named interface {
	Name() string
}

// Recorder receives per-sink delivery outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordLeadDelivery(sink string, err error)
}

// SinkName returns the label of s, or "sink" when it has none.
func SinkName(s Sink) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return "sink"
}

// Fanout delivers each record to every sink in order. One sink failing does
// not stop delivery to the rest; all failures are joined.
type Fanout struct {
	sinks    []Sink
	recorder Recorder
}

// NewFanout combines sinks. recorder may be nil.
func NewFanout(recorder Recorder, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, recorder: recorder}
}

// Record implements Sink.
func (f *Fanout) Record(ctx context.Context, rec domain.LeadRecord) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Record(ctx, rec)
		name := SinkName(s)
		if f.recorder != nil {
			f.recorder.RecordLeadDelivery(name, err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }
