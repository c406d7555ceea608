package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/civicdispatch/core/compose"
	"github.com/kilianp07/civicdispatch/core/events"
	"github.com/kilianp07/civicdispatch/core/logger"
	"github.com/kilianp07/civicdispatch/core/metrics"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/monitoring"
	"github.com/kilianp07/civicdispatch/internal/eventbus"
)

// Orchestrator submits an issue to a set of targets concurrently and
// aggregates the per-target outcomes.
//
// A round launches one goroutine per target and waits for all of them before
// returning. Attempts share no writable state: each writes only its own slot
// of the outcome slice. There is no per-attempt timeout and caller
// cancellation does not abort a started round; a stalled transport stalls the
// whole round.
type Orchestrator struct {
	transport Transport
	issuer    string
	logger    logger.Logger
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus

	now   func() time.Time
	token func() string
	mu    sync.Mutex
}

// NewOrchestrator creates an orchestrator delivering through t. issuer
// prefixes the reference ids; empty means DefaultIssuingSystem.
func NewOrchestrator(t Transport, issuer string, log logger.Logger) (*Orchestrator, error) {
	if t == nil {
		return nil, fault(ErrNoTransport)
	}
	if issuer == "" {
		issuer = DefaultIssuingSystem
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Orchestrator{
		transport: t,
		issuer:    issuer,
		logger:    log,
		now:       time.Now,
		token:     timeToken,
	}, nil
}

// SetMetricsSink configures the sink receiving per-target outcomes. Round
// summaries are published as events.RoundCompletedEvent instead.
func (o *Orchestrator) SetMetricsSink(sink metrics.MetricsSink) {
	o.mu.Lock()
	o.metrics = sink
	o.mu.Unlock()
}

// SetEventBus configures the bus receiving round and outcome events.
func (o *Orchestrator) SetEventBus(bus eventbus.EventBus) {
	o.mu.Lock()
	o.bus = bus
	o.mu.Unlock()
}

func (o *Orchestrator) observers() (metrics.MetricsSink, eventbus.EventBus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metrics, o.bus
}

// SubmitRound delivers req to every target and returns the outcomes in target
// order. An empty target list yields a RoundEmpty result without error. The
// returned error is non-nil only for orchestrator faults and always wraps
// ErrOrchestratorFault.
func (o *Orchestrator) SubmitRound(ctx context.Context, req model.DispatchRequest, targets []model.DispatchTarget) (model.DispatchResult, error) {
	if err := req.Validate(); err != nil {
		return model.DispatchResult{}, o.fail(req.IssueID, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t.ID]; dup {
			return model.DispatchResult{}, o.fail(req.IssueID, fmt.Errorf("%w: %s", ErrDuplicateTarget, t.ID))
		}
		seen[t.ID] = struct{}{}
	}

	sink, bus := o.observers()
	if len(targets) == 0 {
		o.logger.Infof("issue %s: no targets to dispatch to", req.IssueID)
		res := model.NewDispatchResult(nil)
		roundsTotal.WithLabelValues(res.Status.String()).Inc()
		return res, nil
	}

	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	if bus != nil {
		bus.Publish(events.RoundStartedEvent{IssueID: req.IssueID, TargetIDs: ids, Time: o.now()})
	}
	o.logger.Infof("issue %s: dispatching to %d targets", req.IssueID, len(targets))

	// Attempts outlive caller cancellation; values such as trace ids are kept.
	roundCtx := context.WithoutCancel(ctx)
	outcomes := make([]model.DispatchOutcome, len(targets))
	latencies := make([]time.Duration, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, t model.DispatchTarget) {
			defer wg.Done()
			start := time.Now()
			outcomes[i] = o.AttemptDelivery(roundCtx, req, t)
			latencies[i] = time.Since(start)
			o.observe(req, outcomes[i], latencies[i], bus)
		}(i, t)
	}
	wg.Wait()

	res := model.NewDispatchResult(outcomes)
	stats := computeStats(latencies)
	o.record(req, res, latencies, stats, sink, bus)
	return res, nil
}

// AttemptDelivery makes one delivery attempt and converts its result, including
// a panic inside the transport, into an outcome. It never fails.
func (o *Orchestrator) AttemptDelivery(ctx context.Context, req model.DispatchRequest, t model.DispatchTarget) (out model.DispatchOutcome) {
	out = model.DispatchOutcome{TargetID: t.ID, TargetDisplayName: t.DisplayName}
	defer func() {
		if r := recover(); r != nil {
			transportPanics.Inc()
			monitoring.CapturePanic(r, map[string]string{"issue_id": req.IssueID, "target_id": t.ID})
			out.Success = false
			out.ReferenceID = ""
			out.Message = failureMessage(t, fmt.Errorf("%w: %v", ErrTransportPanic, r))
			out.Timestamp = o.now()
		}
	}()

	d := Delivery{Request: req, Target: t, Message: compose.Compose(req, t)}
	err := o.transport.Deliver(ctx, d)
	out.Timestamp = o.now()
	if err != nil {
		out.Message = failureMessage(t, err)
		return out
	}
	out.Success = true
	out.Message = "Successfully submitted to " + t.DisplayName
	out.ReferenceID = ReferenceID(o.issuer, t.ID, o.token())
	return out
}

func failureMessage(t model.DispatchTarget, err error) string {
	return fmt.Sprintf("Failed to submit to %s: %v", t.DisplayName, err)
}

func (o *Orchestrator) observe(req model.DispatchRequest, out model.DispatchOutcome, lat time.Duration, bus eventbus.EventBus) {
	result := "failure"
	if out.Success {
		result = "success"
	} else {
		o.logger.Warnf("issue %s: %s", req.IssueID, out.Message)
	}
	deliveriesTotal.WithLabelValues(out.TargetID, result).Inc()
	deliveryLatency.WithLabelValues(out.TargetID).Observe(lat.Seconds())
	if bus != nil {
		bus.Publish(events.OutcomeEvent{IssueID: req.IssueID, Outcome: out, Latency: lat})
	}
}

func (o *Orchestrator) record(req model.DispatchRequest, res model.DispatchResult, lat []time.Duration, stats RoundStats, sink metrics.MetricsSink, bus eventbus.EventBus) {
	succeeded := res.Succeeded()
	roundsTotal.WithLabelValues(res.Status.String()).Inc()
	roundSuccessRate.Set(float64(succeeded) / float64(len(res.Outcomes)))
	o.logger.Infow("round completed", map[string]any{
		"issue_id":        req.IssueID,
		"status":          res.Status.String(),
		"succeeded":       succeeded,
		"total":           len(res.Outcomes),
		"mean_latency_ms": stats.MeanLatency.Milliseconds(),
		"p95_latency_ms":  stats.P95Latency.Milliseconds(),
	})
	now := o.now()
	if bus != nil {
		bus.Publish(events.RoundCompletedEvent{
			IssueID:     req.IssueID,
			Status:      res.Status,
			Succeeded:   succeeded,
			Total:       len(res.Outcomes),
			MeanLatency: stats.MeanLatency,
			P95Latency:  stats.P95Latency,
			Time:        now,
		})
	}
	if sink == nil {
		return
	}
	recs := make([]metrics.OutcomeRecord, len(res.Outcomes))
	for i, out := range res.Outcomes {
		recs[i] = metrics.OutcomeRecord{
			IssueID:  req.IssueID,
			TargetID: out.TargetID,
			Category: req.Category,
			Success:  out.Success,
			Latency:  lat[i],
			Time:     out.Timestamp,
		}
	}
	if err := sink.RecordOutcomes(recs); err != nil {
		o.logger.Errorf("metrics error: %v", err)
	}
}

func (o *Orchestrator) fail(issueID string, err error) error {
	err = fault(err)
	o.logger.Errorf("issue %s: %v", issueID, err)
	monitoring.CaptureException(err, map[string]string{"issue_id": issueID})
	return err
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Infow(string, map[string]any)  {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
