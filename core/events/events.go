package events

import (
	"time"

	"github.com/kilianp07/civicdispatch/core/model"
)

// RoundStartedEvent is published before the fan-out begins.
type RoundStartedEvent struct {
	IssueID   string
	TargetIDs []string
	Time      time.Time
}

// OutcomeEvent is published as soon as one target's attempt settles. Events
// arrive in completion order, not target order.
type OutcomeEvent struct {
	IssueID string
	Outcome model.DispatchOutcome
	Latency time.Duration
}

// RoundCompletedEvent is published after the fan-in barrier.
type RoundCompletedEvent struct {
	IssueID     string
	Status      model.RoundStatus
	Succeeded   int
	Total       int
	MeanLatency time.Duration
	P95Latency  time.Duration
	Time        time.Time
}
