package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/infra/mqtt"
)

// Publisher sends an ack payload to a topic.
type Publisher func(topic string, payload []byte) error

// AckStrategy decides how an authority answers a report. A nil ack means no
// answer is sent.
type AckStrategy interface {
	Decide(report dispatch.Payload) *mqtt.Ack
}

// AutoAck accepts every report.
type AutoAck struct{}

// Decide implements AckStrategy.
func (AutoAck) Decide(r dispatch.Payload) *mqtt.Ack {
	return &mqtt.Ack{CorrelationID: r.CorrelationID, Accepted: true}
}

// RandomAck drops or rejects reports with the configured probabilities and
// accepts the rest.
type RandomAck struct {
	DropRate   float64
	RejectRate float64
	Reason     string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAck seeds the strategy so runs can be replayed.
func NewRandomAck(dropRate, rejectRate float64, reason string, seed uint64) *RandomAck {
	if reason == "" {
		reason = "Municipality server temporarily unavailable"
	}
	return &RandomAck{
		DropRate:   dropRate,
		RejectRate: rejectRate,
		Reason:     reason,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Decide implements AckStrategy.
func (r *RandomAck) Decide(p dispatch.Payload) *mqtt.Ack {
	r.mu.Lock()
	x := r.rng.Float64()
	r.mu.Unlock()
	switch {
	case x < r.DropRate:
		return nil
	case x < r.DropRate+r.RejectRate:
		return &mqtt.Ack{CorrelationID: p.CorrelationID, Reason: r.Reason}
	default:
		return &mqtt.Ack{CorrelationID: p.CorrelationID, Accepted: true}
	}
}

// RejectTargets rejects reports for the listed targets and defers to Next
// for the others.
type RejectTargets struct {
	Reasons map[string]string
	Next    AckStrategy
}

// Decide implements AckStrategy.
func (s RejectTargets) Decide(p dispatch.Payload) *mqtt.Ack {
	if reason, ok := s.Reasons[p.Target.ID]; ok {
		return &mqtt.Ack{CorrelationID: p.CorrelationID, Reason: reason}
	}
	return s.Next.Decide(p)
}

// answer publishes the strategy's decision after delay.
func answer(ctx context.Context, pub Publisher, prefix string, p dispatch.Payload, ack *mqtt.Ack, delay time.Duration) error {
	if ack == nil {
		return nil
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	return pub(fmt.Sprintf("%s/%s/acks", prefix, p.Target.ID), payload)
}
