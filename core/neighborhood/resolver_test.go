package neighborhood

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/civicdispatch/core/geo"
	"github.com/kilianp07/civicdispatch/core/model"
	"github.com/kilianp07/civicdispatch/core/registry"
)

// kmPerDegLat is the haversine length of one degree along a meridian.
const kmPerDegLat = geo.EarthRadiusKm * math.Pi / 180

var origin = model.GeoPoint{Lat: 10, Lng: 20}

// north returns a point d kilometres due north of origin.
func north(d float64) model.GeoPoint {
	return model.GeoPoint{Lat: origin.Lat + d/kmPerDegLat, Lng: origin.Lng}
}

func tgt(id string, p model.GeoPoint, cats ...model.IssueCategory) model.DispatchTarget {
	return model.DispatchTarget{ID: id, DisplayName: id, Location: p, CoveredCategories: cats}
}

func ids(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Target.ID
	}
	return out
}

func TestResolveScenario(t *testing.T) {
	// Registered out of distance order on purpose.
	reg := registry.MustNew([]model.DispatchTarget{
		tgt("T3", north(120)),
		tgt("T1", north(10)),
		tgt("T2", north(60)),
	})
	got := Resolve(origin, 100, reg)
	require.Equal(t, []string{"T1", "T2"}, ids(got))
	assert.InDelta(t, 10, got[0].DistanceKm, 1e-6)
	assert.InDelta(t, 60, got[1].DistanceKm, 1e-6)
}

func TestResolveOrderingAndBounds(t *testing.T) {
	reg := registry.Default()
	mumbai := model.GeoPoint{Lat: 19.0760, Lng: 72.8777}
	for _, radius := range []float64{0, 50, 150, 500, 1500, 3000} {
		got := Resolve(mumbai, radius, reg)
		for i, m := range got {
			assert.LessOrEqual(t, m.DistanceKm, radius)
			if i > 0 {
				assert.Less(t, got[i-1].DistanceKm, m.DistanceKm, "not strictly ascending at radius %v", radius)
			}
		}
	}
	got := Resolve(mumbai, 150, reg)
	assert.Equal(t, []string{"mumbai", "pune"}, ids(got))
}

func TestResolveZeroRadius(t *testing.T) {
	reg := registry.MustNew([]model.DispatchTarget{tgt("near", north(0.001)), tgt("here", origin)})
	assert.Equal(t, []string{"here"}, ids(Resolve(origin, 0, reg)))
	assert.Empty(t, Resolve(north(5), 0, reg))
}

func TestResolveTiesKeepRegistryOrder(t *testing.T) {
	east := model.GeoPoint{Lat: origin.Lat, Lng: origin.Lng + 0.1}
	reg := registry.MustNew([]model.DispatchTarget{tgt("b", origin), tgt("a", origin), tgt("c", east)})
	assert.Equal(t, []string{"b", "a", "c"}, ids(Resolve(origin, 50, reg)))
}

func TestResolveNegativeRadiusOrNilRegistry(t *testing.T) {
	assert.Empty(t, Resolve(origin, -1, registry.Default()))
	assert.Empty(t, Resolve(origin, 10, nil))
}

func TestResolverDefaultsAndCategoryFilter(t *testing.T) {
	reg := registry.MustNew([]model.DispatchTarget{
		tgt("roads-only", north(5), model.CategoryRoads),
		tgt("water-only", north(6), model.CategoryWaterSupply),
		tgt("far", north(500), model.CategoryRoads),
	})
	r := NewResolver(reg, 0)
	assert.Equal(t, DefaultRadiusKm, r.RadiusKm())
	assert.Equal(t, []string{"roads-only", "water-only"}, ids(r.Resolve(origin)))
	assert.Equal(t, []string{"roads-only"}, ids(r.ResolveCovering(origin, model.CategoryRoads)))
	assert.Empty(t, r.ResolveCovering(origin, model.CategoryLighting))

	targets := Targets(r.Resolve(origin))
	assert.Equal(t, "roads-only", targets[0].ID)
}
