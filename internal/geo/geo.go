package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

// boundaryTolerance absorbs floating point noise so a point computed to sit
// exactly on the perimeter is still admitted.
const boundaryTolerance = 1e-6

var ErrInvalidCoordinate = errors.New("invalid coordinate")

type Point struct {
	Lat float64
	Lng float64
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// Distance is the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// WithinPerimeter reports whether point lies inside the circle of radiusMeters
// around center. The boundary itself is inside.
func WithinPerimeter(point, center Point, radiusMeters float64) (bool, error) {
	if err := point.Validate(); err != nil {
		return false, err
	}
	if err := center.Validate(); err != nil {
		return false, err
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return false, fmt.Errorf("%w: radius %v must be positive", ErrInvalidCoordinate, radiusMeters)
	}

	return Distance(point, center) <= radiusMeters+boundaryTolerance, nil
}
