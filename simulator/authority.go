package main

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/infra/logger"
)

// Authority answers the reports published to every target's report topic.
type Authority struct {
	prefix   string
	delay    time.Duration
	strategy AckStrategy
	publish  Publisher
	log      logger.Logger

	wg       sync.WaitGroup
	received atomic.Int64
	answered atomic.Int64
}

// Stats counts the reports seen and the acks sent.
type Stats struct {
	Received int64
	Answered int64
}

func NewAuthority(prefix string, delay time.Duration, s AckStrategy, pub Publisher, log logger.Logger) *Authority {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Authority{prefix: prefix, delay: delay, strategy: s, publish: pub, log: log}
}

// Handle decodes one report and answers it in the background.
func (a *Authority) Handle(ctx context.Context, payload []byte) {
	var p dispatch.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		a.log.Warnf("discarding malformed report: %v", err)
		return
	}
	a.received.Add(1)
	a.log.Infow("report received", map[string]any{
		"correlation_id": p.CorrelationID,
		"issue_id":       p.IssueID,
		"target_id":      p.Target.ID,
		"category":       p.Category,
		"photos":         len(p.Photos),
	})
	ack := a.strategy.Decide(p)
	if ack == nil {
		a.log.Debugf("dropping report %s", p.CorrelationID)
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := answer(ctx, a.publish, a.prefix, p, ack, a.delay); err != nil {
			a.log.Errorf("ack %s: %v", p.CorrelationID, err)
			return
		}
		a.answered.Add(1)
	}()
}

// Wait blocks until every pending ack has been sent or abandoned.
func (a *Authority) Wait() { a.wg.Wait() }

// Stats returns the counters so far.
func (a *Authority) Stats() Stats {
	return Stats{Received: a.received.Load(), Answered: a.answered.Load()}
}
