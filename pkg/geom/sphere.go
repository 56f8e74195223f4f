package geom

import (
	"encoding/json"
	"errors"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sphere is a bounding sphere.
type Sphere struct {
	Center v3.Vec
	Radius float64
}

type sphereJSON struct {
	Center []float64 `json:"center"`
	Radius float64   `json:"radius"`
}

// MarshalJSON encodes the sphere as {"center":[x,y,z],"radius":r}.
func (s Sphere) MarshalJSON() ([]byte, error) {
	return json.Marshal(sphereJSON{Center: VecToSlice(s.Center), Radius: s.Radius})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (s *Sphere) UnmarshalJSON(data []byte) error {
	var sj sphereJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	if len(sj.Center) != 3 {
		return errors.New("geom: sphere center must have 3 components")
	}
	if sj.Radius < 0 || !finite(sj.Radius) {
		return errors.New("geom: sphere radius must be a finite non-negative number")
	}
	s.Center = VecFromSlice(sj.Center)
	s.Radius = sj.Radius
	return nil
}

// ContainsPoint reports whether p lies inside or on the sphere.
func (s Sphere) ContainsPoint(p v3.Vec) bool {
	return p.Sub(s.Center).Length2() <= s.Radius*s.Radius
}

// SphereFromPoints returns a sphere centered on the midpoint of the points'
// axis-aligned bounds with the smallest radius reaching every point. It is
// not the minimal enclosing sphere but is within a factor of sqrt(3) of it.
func SphereFromPoints(points []v3.Vec) Sphere {
	if len(points) == 0 {
		return Sphere{}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	center := lo.Add(hi).MulScalar(0.5)
	r2 := 0.0
	for _, p := range points {
		if d := p.Sub(center).Length2(); d > r2 {
			r2 = d
		}
	}
	return Sphere{Center: center, Radius: math.Sqrt(r2)}
}
