package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/civicdispatch/core/metrics"
)

// PromSink records submission outcomes and round sizes in Prometheus metrics.
type PromSink struct {
	submissions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	roundSize   *prometheus.HistogramVec
}

// NewPromSink registers submission metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	submissions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "civic_submissions_total",
		Help: "Issue submissions by target, category and result",
	}, []string{"target_id", "category", "success"}))
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civic_submission_latency_seconds",
		Help:    "Time taken by a target to accept or reject a submission",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"}))
	if err != nil {
		return nil, err
	}
	roundSize, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civic_round_targets",
		Help:    "Number of targets attempted per round",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{submissions: submissions, latency: latency, roundSize: roundSize}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordOutcomes increments the submission counter for each outcome.
func (s *PromSink) RecordOutcomes(recs []coremetrics.OutcomeRecord) error {
	for _, r := range recs {
		cat := r.Category.String()
		s.submissions.WithLabelValues(r.TargetID, cat, strconv.FormatBool(r.Success)).Inc()
		s.latency.WithLabelValues(cat).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordRound observes the number of targets attempted in the round.
func (s *PromSink) RecordRound(rec coremetrics.RoundRecord) error {
	s.roundSize.WithLabelValues(rec.Status.String()).Observe(float64(rec.Targets))
	return nil
}
