// Package geofence decides circular zone membership for location samples
// and detects enter/exit transitions per user.
package geofence

import "github.com/jgirmay/livetrack/pkg/geo"

// ZoneKind classifies what a zone represents.
type ZoneKind string

const (
	ZoneOffice      ZoneKind = "office"
	ZoneCustomer    ZoneKind = "customer"
	ZoneServiceArea ZoneKind = "service_area"
	ZoneRestricted  ZoneKind = "restricted"
)

// Zone is a named circular region. Zones are validated by whoever creates
// them (RadiusMeters > 0); the evaluator does not re-check.
type Zone struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Kind         ZoneKind `json:"kind"`
	CenterLat    float64  `json:"centerLat"`
	CenterLon    float64  `json:"centerLon"`
	RadiusMeters float64  `json:"radiusMeters"`
	IsActive     bool     `json:"isActive"`
}

// Center returns the zone center as a geo.Point.
func (z Zone) Center() geo.Point {
	return geo.Point{Lat: z.CenterLat, Lon: z.CenterLon}
}

// IsInside reports whether point lies within the zone, boundary included.
func IsInside(point geo.Point, zone Zone) bool {
	return geo.DistanceMeters(point, zone.Center()) <= zone.RadiusMeters
}

// FilterActive returns the zones with IsActive set, preserving order.
func FilterActive(zones []Zone) []Zone {
	active := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive {
			active = append(active, z)
		}
	}
	return active
}
