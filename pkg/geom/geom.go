// Package geom holds the small amount of linear algebra the bounding volume
// code needs on top of sdfx vectors: a 3x3 basis matrix, a packed symmetric
// matrix with its eigen-decomposition, and the bounding sphere type.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Component returns the i'th component (0=X, 1=Y, 2=Z) of v.
func Component(v v3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic("geom: component index out of range")
}

// Finite reports whether every component of v is neither NaN nor infinite.
func Finite(v v3.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// VecFromSlice builds a vector from a 3-element slice.
func VecFromSlice(s []float64) v3.Vec {
	return v3.Vec{X: s[0], Y: s[1], Z: s[2]}
}

// VecToSlice flattens v into a new 3-element slice.
func VecToSlice(v v3.Vec) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// ApproxEqualVec reports whether a and b differ by at most tol per component.
func ApproxEqualVec(a, b v3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}
