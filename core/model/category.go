package model

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned when a category string is not part of the enumeration.
var ErrUnknownCategory = errors.New("unknown issue category")

// IssueCategory classifies a reported civic issue.
type IssueCategory int

const (
	CategoryRoads IssueCategory = iota + 1
	CategoryLighting
	CategoryWaterSupply
	CategoryCleanliness
	CategoryPublicSafety
	CategoryObstructions
)

type categoryInfo struct {
	value string
	label string
}

var categories = map[IssueCategory]categoryInfo{
	CategoryRoads:        {value: "roads", label: "Roads"},
	CategoryLighting:     {value: "lighting", label: "Lighting"},
	CategoryWaterSupply:  {value: "water-supply", label: "Water Supply"},
	CategoryCleanliness:  {value: "cleanliness", label: "Cleanliness"},
	CategoryPublicSafety: {value: "public-safety", label: "Public Safety"},
	CategoryObstructions: {value: "obstructions", label: "Obstructions"},
}

// AllCategories lists every category in declaration order.
func AllCategories() []IssueCategory {
	return []IssueCategory{
		CategoryRoads,
		CategoryLighting,
		CategoryWaterSupply,
		CategoryCleanliness,
		CategoryPublicSafety,
		CategoryObstructions,
	}
}

// ParseCategory maps the wire value ("water-supply") to a category.
func ParseCategory(s string) (IssueCategory, error) {
	for c, info := range categories {
		if info.value == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is a member of the enumeration.
func (c IssueCategory) Valid() bool {
	_, ok := categories[c]
	return ok
}

// String returns the wire value of the category.
func (c IssueCategory) String() string {
	if info, ok := categories[c]; ok {
		return info.value
	}
	return "unknown"
}

// Label returns the human-readable display label, e.g. "Public Safety".
func (c IssueCategory) Label() string {
	if info, ok := categories[c]; ok {
		return info.label
	}
	return "Unknown"
}

// MarshalText encodes the category as its wire value. It also covers JSON and map keys.
func (c IssueCategory) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(c.String()), nil
}

func (c *IssueCategory) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
