package metrics

import (
	"time"

	"github.com/kilianp07/civicdispatch/core/factory"
	"github.com/kilianp07/civicdispatch/core/model"
)

// OutcomeRecord is one delivery attempt to be recorded.
type OutcomeRecord struct {
	IssueID  string
	TargetID string
	Category model.IssueCategory
	Success  bool
	Latency  time.Duration
	Time     time.Time
}

// MetricsSink records per-target delivery outcomes.
type MetricsSink interface {
	RecordOutcomes(recs []OutcomeRecord) error
}

// RoundRecord summarises a completed round.
type RoundRecord struct {
	IssueID     string
	Status      model.RoundStatus
	Targets     int
	Succeeded   int
	MeanLatency time.Duration
	P95Latency  time.Duration
	Time        time.Time
}

// RoundRecorder records round summaries.
type RoundRecorder interface {
	RecordRound(rec RoundRecord) error
}

// Config defines settings for metrics sinks. PrometheusPort, when set,
// exposes /metrics on that address.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	PrometheusPort string                 `json:"prometheus_port"`
}

// NopSink implements MetricsSink and RoundRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordOutcomes([]OutcomeRecord) error { return nil }

func (NopSink) RecordRound(RoundRecord) error { return nil }

// MultiSink forwards records to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordOutcomes forwards to all sinks, returning the first error encountered.
func (m *MultiSink) RecordOutcomes(recs []OutcomeRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordOutcomes(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordRound forwards to the sinks that implement RoundRecorder.
func (m *MultiSink) RecordRound(rec RoundRecord) error {
	for _, s := range m.Sinks {
		if rr, ok := s.(RoundRecorder); ok {
			if err := rr.RecordRound(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
