package transport

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kilianp07/civicdispatch/core/dispatch"
)

// ErrUnavailable is the failure reported by the simulated endpoint.
var ErrUnavailable = errors.New("Municipality server temporarily unavailable")

// SimulatedConfig tunes the simulated municipal endpoint.
type SimulatedConfig struct {
	LatencyMS   int     `json:"latency_ms"`
	JitterMS    int     `json:"jitter_ms"`
	// SuccessRate is the share of accepted submissions. Nil means 0.9.
	SuccessRate *float64 `json:"success_rate"`
	// Seed makes outcomes reproducible when non-zero.
	Seed uint64 `json:"seed"`
}

// SetDefaults applies the behaviour of the reference municipal endpoint.
func (c *SimulatedConfig) SetDefaults() {
	if c.LatencyMS == 0 {
		c.LatencyMS = 2000
	}
	if c.SuccessRate == nil {
		rate := 0.9
		c.SuccessRate = &rate
	}
}

// Simulated accepts a configurable share of submissions after a fixed delay.
type Simulated struct {
	latency time.Duration
	jitter  time.Duration
	rate    float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated(cfg SimulatedConfig) *Simulated {
	rate := 0.9
	if cfg.SuccessRate != nil {
		rate = *cfg.SuccessRate
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulated{
		latency: time.Duration(cfg.LatencyMS) * time.Millisecond,
		jitter:  time.Duration(cfg.JitterMS) * time.Millisecond,
		rate:    rate,
		rnd:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulated) Deliver(ctx context.Context, _ dispatch.Delivery) error {
	s.mu.Lock()
	delay := s.latency
	if s.jitter > 0 {
		delay += time.Duration(s.rnd.Int64N(int64(s.jitter)))
	}
	ok := s.rnd.Float64() < s.rate
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !ok {
		return ErrUnavailable
	}
	return nil
}
