package dispatch

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RoundStats summarises delivery latencies within one round.
type RoundStats struct {
	Attempts    int
	MeanLatency time.Duration
	P95Latency  time.Duration
	MaxLatency  time.Duration
}

func computeStats(latencies []time.Duration) RoundStats {
	if len(latencies) == 0 {
		return RoundStats{}
	}
	xs := make([]float64, len(latencies))
	for i, l := range latencies {
		xs[i] = float64(l)
	}
	sort.Float64s(xs)
	return RoundStats{
		Attempts:    len(xs),
		MeanLatency: time.Duration(stat.Mean(xs, nil)),
		P95Latency:  time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil)),
		MaxLatency:  time.Duration(floats.Max(xs)),
	}
}
