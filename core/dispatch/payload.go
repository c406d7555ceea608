package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/civicdispatch/core/compose"
)

// Payload is the JSON document network transports send to a target.
// Photos are base64 encoded by encoding/json.
type Payload struct {
	CorrelationID string          `json:"correlation_id"`
	IssueID       string          `json:"issue_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Location      PayloadLocation `json:"location"`
	Reporter      PayloadReporter `json:"reporter"`
	Photos        [][]byte        `json:"photos,omitempty"`
	SubmittedAt   time.Time       `json:"submitted_at"`
	Target        PayloadTarget   `json:"target"`
	Message       compose.Message `json:"message"`
}

type PayloadLocation struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type PayloadReporter struct {
	Name        string `json:"name"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type PayloadTarget struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// NewPayload builds the wire document for d.
func NewPayload(d Delivery, correlationID string, now time.Time) Payload {
	req := d.Request
	reporter := PayloadReporter{Name: req.ReporterDisplayName, IsAnonymous: req.IsAnonymous}
	if req.IsAnonymous {
		reporter.Name = "Anonymous"
	}
	return Payload{
		CorrelationID: correlationID,
		IssueID:       req.IssueID,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category.String(),
		Location: PayloadLocation{
			Lat:     req.Location.Lat,
			Lng:     req.Location.Lng,
			Address: fmt.Sprintf("Location: %.6f, %.6f", req.Location.Lat, req.Location.Lng),
		},
		Reporter:    reporter,
		Photos:      req.Photos,
		SubmittedAt: now.UTC(),
		Target: PayloadTarget{
			ID:    d.Target.ID,
			Name:  d.Target.DisplayName,
			Email: d.Target.ContactEmail,
		},
		Message: d.Message,
	}
}
