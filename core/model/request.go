package model

// DispatchRequest is the read-only view of an issue handed to the dispatch
// subsystem. Photos are opaque blobs and are forwarded untouched.
type DispatchRequest struct {
	IssueID             string        `json:"issue_id" validate:"required"`
	Title               string        `json:"title" validate:"required,max=100"`
	Description         string        `json:"description" validate:"max=500"`
	Category            IssueCategory `json:"category" validate:"category"`
	Location            GeoPoint      `json:"location"`
	ReporterDisplayName string        `json:"reporter_display_name" validate:"required_unless=IsAnonymous true"`
	IsAnonymous         bool          `json:"is_anonymous"`
	Photos              [][]byte      `json:"photos,omitempty" validate:"max=5"`
}

// Limits carried over from the reporting form.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
	MaxPhotos            = 5
)

// Validate checks the request fields and its location.
func (r DispatchRequest) Validate() error {
	if err := validate().Struct(r); err != nil {
		return validationError("dispatch request", err)
	}
	return r.Location.Validate()
}

// ReporterLabel is the name shown to the recipient.
func (r DispatchRequest) ReporterLabel() string {
	if r.IsAnonymous {
		return "Anonymous Citizen"
	}
	return r.ReporterDisplayName
}
