package dispatch

import (
	"fmt"
	"strconv"

	"github.com/kilianp07/civicdispatch/core/model"
)

// RoundReport is the user-facing summary of a dispatch round.
type RoundReport struct {
	IssueID   string                  `json:"issue_id"`
	RadiusKm  float64                 `json:"radius_km"`
	Status    model.RoundStatus       `json:"status"`
	Success   bool                    `json:"success"`
	Message   string                  `json:"message"`
	Succeeded int                     `json:"succeeded"`
	Total     int                     `json:"total"`
	Outcomes  []model.DispatchOutcome `json:"outcomes"`
}

// NewRoundReport summarises res for the reporter.
func NewRoundReport(issueID string, radiusKm float64, res model.DispatchResult) RoundReport {
	r := RoundReport{
		IssueID:   issueID,
		RadiusKm:  radiusKm,
		Status:    res.Status,
		Success:   res.AggregateSuccess,
		Succeeded: res.Succeeded(),
		Total:     len(res.Outcomes),
		Outcomes:  res.Outcomes,
	}
	if r.Outcomes == nil {
		r.Outcomes = []model.DispatchOutcome{}
	}
	switch res.Status {
	case model.RoundEmpty:
		r.Message = "No nearby municipalities found within " + strconv.FormatFloat(radiusKm, 'f', -1, 64) + " km"
	case model.RoundFailed:
		r.Message = fmt.Sprintf("Submission failed for all %d nearby municipalities", r.Total)
	default:
		r.Message = fmt.Sprintf("Successfully submitted to %d of %d nearby municipalities", r.Succeeded, r.Total)
	}
	return r
}
