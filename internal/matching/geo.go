// Package matching ranks technicians against a service request.
package matching

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance is HaversineKm over two points.
func Distance(a, b Point) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// EffectiveRadius is the smaller of two radii, where a non-positive value
// means that side sets no limit. Zero is returned when neither does.
func EffectiveRadius(requestKm, technicianKm float64) float64 {
	switch {
	case requestKm <= 0:
		return math.Max(technicianKm, 0)
	case technicianKm <= 0:
		return requestKm
	default:
		return math.Min(requestKm, technicianKm)
	}
}

// withinRadius computes the distance when both points are known and reports
// whether it is inside the effective radius. Unknown distance is inside.
func withinRadius(target Target, c Candidate) (*float64, bool) {
	if target.Location == nil || c.Location == nil {
		return nil, true
	}
	d := Distance(*target.Location, *c.Location)
	limit := EffectiveRadius(target.RadiusKm, c.RadiusKm)
	if limit > 0 && d > limit {
		return &d, false
	}
	return &d, true
}
