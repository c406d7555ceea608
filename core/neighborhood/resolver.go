// Package neighborhood selects the dispatch targets around a point.
package neighborhood

import (
	"sort"

	"github.com/kilianp07/civicdispatch/core/geo"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/registry"
)

// DefaultRadiusKm is used when a Resolver is built with a non-positive radius.
const DefaultRadiusKm = 100.0

// Match is a target together with its distance from the query point.
type Match struct {
	Target     model.DispatchTarget `json:"target"`
	DistanceKm float64              `json:"distance_km"`
}

// Resolve returns every target within radiusKm of point, nearest first.
// Ties keep registry order.
func Resolve(point model.GeoPoint, radiusKm float64, reg *registry.Registry) []Match {
	return resolve(point, radiusKm, reg, nil)
}

func resolve(point model.GeoPoint, radiusKm float64, reg *registry.Registry, keep func(model.DispatchTarget) bool) []Match {
	if reg == nil || radiusKm < 0 {
		return []Match{}
	}
	matches := make([]Match, 0, reg.Len())
	for _, t := range reg.All() {
		if keep != nil && !keep(t) {
			continue
		}
		d := geo.DistanceKm(point, t.Location)
		if d <= radiusKm {
			matches = append(matches, Match{Target: t, DistanceKm: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].DistanceKm < matches[j].DistanceKm })
	return matches
}

// Targets strips distances from matches, keeping their order.
func Targets(matches []Match) []model.DispatchTarget {
	out := make([]model.DispatchTarget, len(matches))
	for i, m := range matches {
		out[i] = m.Target
	}
	return out
}

// Resolver binds a registry to the configured search radius.
type Resolver struct {
	reg      *registry.Registry
	radiusKm float64
}

// NewResolver returns a Resolver. A radius <= 0 falls back to DefaultRadiusKm.
func NewResolver(reg *registry.Registry, radiusKm float64) *Resolver {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Resolver{reg: reg, radiusKm: radiusKm}
}

// RadiusKm returns the configured radius.
func (r *Resolver) RadiusKm() float64 { return r.radiusKm }

// Resolve returns the targets within the configured radius of point.
func (r *Resolver) Resolve(point model.GeoPoint) []Match {
	return Resolve(point, r.radiusKm, r.reg)
}

// ResolveCovering is Resolve restricted to targets handling category c.
func (r *Resolver) ResolveCovering(point model.GeoPoint, c model.IssueCategory) []Match {
	return resolve(point, r.radiusKm, r.reg, func(t model.DispatchTarget) bool { return t.Covers(c) })
}
