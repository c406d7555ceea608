package model

import "slices"

// DispatchTarget is a fixed-location authority that can receive issue reports.
// Targets are immutable once loaded into a registry.
type DispatchTarget struct {
	ID                string          `json:"id" validate:"required"`
	DisplayName       string          `json:"display_name" validate:"required"`
	Location          GeoPoint        `json:"location"`
	ContactEmail      string          `json:"contact_email" validate:"omitempty,email"`
	ContactPhone      string          `json:"contact_phone"`
	WebsiteURL        string          `json:"website_url" validate:"omitempty,url"`
	JurisdictionLabel string          `json:"jurisdiction_label"`
	CoveredCategories []IssueCategory `json:"covered_categories" validate:"dive,category"`
	MessageTemplate   string          `json:"message_template"`
}

// Validate checks required fields and the location range.
func (t DispatchTarget) Validate() error {
	if err := validate().Struct(t); err != nil {
		return validationError("dispatch target", err)
	}
	return t.Location.Validate()
}

// Covers reports whether the target handles issues of category c.
func (t DispatchTarget) Covers(c IssueCategory) bool {
	return slices.Contains(t.CoveredCategories, c)
}

// Clone returns a deep copy so callers cannot mutate registry-owned slices.
func (t DispatchTarget) Clone() DispatchTarget {
	t.CoveredCategories = slices.Clone(t.CoveredCategories)
	return t
}
