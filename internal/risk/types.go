package risk

import (
	"fmt"
	"math"
)

// LossTypeDamage is the loss type produced by damage workflows. Workflows
// computing monetary losses use other loss types, which the damage
// aggregation ignores.
const LossTypeDamage = "damage"

// Location is a point on the earth in decimal degrees.
type Location struct {
	Lon float64
	Lat float64
}

// WKT returns the location as a WKT point.
func (l Location) WKT() string {
	return fmt.Sprintf("POINT(%g %g)", l.Lon, l.Lat)
}

// DistanceKm returns the great circle distance to other in kilometers.
func (l Location) DistanceKm(other Location) float64 {
	const earthRadiusKm = 6371.0

	lat1 := l.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (other.Lon - l.Lon) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Asset is one exposed element: a building or a group of identical
// buildings of the same taxonomy at one location.
type Asset struct {
	ID       string
	Taxonomy string
	// Number of units represented by the asset. Damage fractions are scaled
	// by it to obtain damage counts.
	Number   float64
	Location Location
}

// Site is a point where ground motion has been computed.
type Site struct {
	ID       int
	Location Location
}

// DamageState is a named damage state with its position in the ordered list
// of damage states (the limit state index).
type DamageState struct {
	Name  string
	Index int
}

// DamageStates builds the ordered damage states from their names.
func DamageStates(names []string) []DamageState {
	out := make([]DamageState, len(names))
	for i, n := range names {
		out[i] = DamageState{Name: n, Index: i}
	}
	return out
}

// Hazard maps a GSIM name to the ground-motion values at one site for one
// IMT, one value per realization.
type Hazard map[string][]float64
