package metrics

import (
	"context"

	"github.com/kilianp07/civicdispatch/core/events"
	coremetrics "github.com/kilianp07/civicdispatch/core/metrics"
	"github.com/kilianp07/civicdispatch/infra/logger"
	"github.com/kilianp07/civicdispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records round summaries
// on sinks implementing RoundRecorder. It stops when the context is canceled
// or the bus is closed. The returned channel is closed once it has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	rr, ok := sink.(coremetrics.RoundRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe(eventbus.Of[events.RoundCompletedEvent]())
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, ok := ev.(events.RoundCompletedEvent)
				if !ok {
					continue
				}
				err := rr.RecordRound(coremetrics.RoundRecord{
					IssueID:     e.IssueID,
					Status:      e.Status,
					Targets:     e.Total,
					Succeeded:   e.Succeeded,
					MeanLatency: e.MeanLatency,
					P95Latency:  e.P95Latency,
					Time:        e.Time,
				})
				if err != nil {
					log.Errorf("record round %s: %v", e.IssueID, err)
				}
			}
		}
	}()
	return done
}
