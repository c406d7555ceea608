// Package ledger persists dispatch rounds against the issue they belong to.
//
// Each issue has one current SubmissionRecord holding the outcomes of its
// latest round. RecordRound replaces that record wholesale; the outcomes of
// earlier rounds are not merged into it. Every round is also appended to an
// audit trail that History reads back, so replaced records are not lost.
//
// Backends: Memory, JSONL (optionally rotated with lumberjack) and SQLite.
// None of them serialise concurrent rounds for one issue: callers must not
// run two rounds for the same issue at the same time.
package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/kilianp07/civicdispatch/core/model"
)

// SubmissionRecord holds the outcomes of an issue's most recent round.
type SubmissionRecord struct {
	IssueID   string                  `json:"issue_id"`
	Status    model.RoundStatus       `json:"status"`
	Outcomes  []model.DispatchOutcome `json:"outcomes"`
	UpdatedAt time.Time               `json:"updated_at,omitempty"`
}

// RoundEntry is one round in the audit trail.
type RoundEntry struct {
	IssueID    string               `json:"issue_id"`
	RecordedAt time.Time            `json:"recorded_at"`
	Result     model.DispatchResult `json:"result"`
}

// Record converts the entry into the record it produced.
func (e RoundEntry) Record() SubmissionRecord {
	return SubmissionRecord{
		IssueID:   e.IssueID,
		Status:    e.Result.Status,
		Outcomes:  slices.Clone(e.Result.Outcomes),
		UpdatedAt: e.RecordedAt,
	}
}

// Query filters the audit trail. Zero fields match everything.
type Query struct {
	IssueID  string
	TargetID string
	Start    time.Time
	End      time.Time
}

// Matches reports whether e satisfies the query.
func (q Query) Matches(e RoundEntry) bool {
	if q.IssueID != "" && e.IssueID != q.IssueID {
		return false
	}
	if !q.Start.IsZero() && e.RecordedAt.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.RecordedAt.After(q.End) {
		return false
	}
	if q.TargetID == "" {
		return true
	}
	for _, o := range e.Result.Outcomes {
		if o.TargetID == q.TargetID {
			return true
		}
	}
	return false
}

// Ledger stores rounds and serves the current record of each issue.
type Ledger interface {
	// RecordRound makes res the issue's current record and appends it to the
	// audit trail.
	RecordRound(ctx context.Context, issueID string, res model.DispatchResult) error
	// CurrentRecord returns the issue's record. An issue without rounds has an
	// empty record.
	CurrentRecord(ctx context.Context, issueID string) (SubmissionRecord, error)
	History(ctx context.Context, q Query) ([]RoundEntry, error)
	Close() error
}

// EmptyRecord is the record of an issue no round was recorded for.
func EmptyRecord(issueID string) SubmissionRecord {
	return SubmissionRecord{IssueID: issueID, Status: model.RoundEmpty, Outcomes: []model.DispatchOutcome{}}
}

func newEntry(issueID string, res model.DispatchResult) RoundEntry {
	if res.Outcomes == nil {
		res.Outcomes = []model.DispatchOutcome{}
	} else {
		res.Outcomes = slices.Clone(res.Outcomes)
	}
	return RoundEntry{IssueID: issueID, RecordedAt: time.Now().UTC(), Result: res}
}
