package model

import (
	"fmt"
	"time"
)

// DispatchOutcome is the result of one delivery attempt to one target.
// ReferenceID is set only when Success is true.
type DispatchOutcome struct {
	TargetID          string    `json:"target_id"`
	TargetDisplayName string    `json:"target_display_name"`
	Success           bool      `json:"success"`
	Message           string    `json:"message"`
	ReferenceID       string    `json:"reference_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// RoundStatus distinguishes the user-visible states of a completed round.
type RoundStatus int

const (
	// RoundEmpty means no target was resolved; nothing was attempted.
	RoundEmpty RoundStatus = iota
	// RoundFailed means every attempted target failed.
	RoundFailed
	// RoundPartial means some, but not all, targets succeeded.
	RoundPartial
	// RoundSucceeded means every attempted target succeeded.
	RoundSucceeded
)

func (s RoundStatus) String() string {
	switch s {
	case RoundEmpty:
		return "empty"
	case RoundFailed:
		return "failed"
	case RoundPartial:
		return "partial"
	case RoundSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

func (s RoundStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *RoundStatus) UnmarshalText(b []byte) error {
	v, err := ParseRoundStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseRoundStatus converts the textual form back into a RoundStatus.
func ParseRoundStatus(v string) (RoundStatus, error) {
	for s := RoundEmpty; s <= RoundSucceeded; s++ {
		if s.String() == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown round status %q", v)
}

// DispatchResult aggregates the outcomes of one round. Outcomes follow the
// order of the targets handed to the orchestrator.
type DispatchResult struct {
	AggregateSuccess bool              `json:"aggregate_success"`
	Status           RoundStatus       `json:"status"`
	Outcomes         []DispatchOutcome `json:"outcomes"`
}

// NewDispatchResult computes the aggregate fields from the ordered outcomes.
func NewDispatchResult(outcomes []DispatchOutcome) DispatchResult {
	if outcomes == nil {
		outcomes = []DispatchOutcome{}
	}
	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}
	res := DispatchResult{AggregateSuccess: succeeded > 0, Outcomes: outcomes}
	switch {
	case len(outcomes) == 0:
		res.Status = RoundEmpty
	case succeeded == 0:
		res.Status = RoundFailed
	case succeeded == len(outcomes):
		res.Status = RoundSucceeded
	default:
		res.Status = RoundPartial
	}
	return res
}

// Succeeded counts successful outcomes.
func (r DispatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
