// Package obb implements oriented bounding boxes: fitting a tight box to a
// point set through the covariance of its convex hull surface, and the
// point and sphere queries a simulation needs to approximate an entity's
// occupied volume.
//
// An OBB is a plain value. Every method works on locals only, so distinct
// boxes may be fitted and queried from any number of goroutines; a single
// box must not be mutated concurrently with other use.
package obb

import (
	"math"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// RotationTolerance bounds the deviation from orthonormality accepted by
// Set, Copy and FromJSON.
const RotationTolerance = 1e-6

// OBB is an oriented bounding box. Rotation's columns are the box's local
// axes in world space; HalfSizes holds the half extent along each of them.
type OBB struct {
	Center    v3.Vec
	HalfSizes v3.Vec
	Rotation  geom.Mat3
}

// New returns a zero-sized box at the origin with identity orientation.
func New() OBB {
	return OBB{Rotation: geom.Identity3()}
}

// Set replaces all fields after validating them. The receiver is left
// unchanged on error.
func (b *OBB) Set(center, halfSizes v3.Vec, rotation geom.Mat3) error {
	if err := validate("set", center, halfSizes, rotation); err != nil {
		return err
	}
	b.Center = center
	b.HalfSizes = halfSizes
	b.Rotation = rotation
	return nil
}

// Copy sets b to the value of other, which must itself be valid.
func (b *OBB) Copy(other OBB) error {
	if err := validate("copy", other.Center, other.HalfSizes, other.Rotation); err != nil {
		return err
	}
	*b = other
	return nil
}

// Clone returns a copy of b.
func (b OBB) Clone() OBB {
	return b
}

// Equals reports exact field-wise equality. Use ApproxEquals to compare
// with a tolerance.
func (b OBB) Equals(other OBB) bool {
	return b.Center == other.Center &&
		b.HalfSizes == other.HalfSizes &&
		b.Rotation == other.Rotation
}

// ApproxEquals reports whether every field of b is within tol of other.
func (b OBB) ApproxEquals(other OBB, tol float64) bool {
	if !geom.ApproxEqualVec(b.Center, other.Center, tol) ||
		!geom.ApproxEqualVec(b.HalfSizes, other.HalfSizes, tol) {
		return false
	}
	for i := range b.Rotation {
		if math.Abs(b.Rotation[i]-other.Rotation[i]) > tol {
			return false
		}
	}
	return true
}

// Size returns the full extents of the box along its local axes.
func (b OBB) Size() v3.Vec {
	return b.HalfSizes.MulScalar(2)
}

// Volume returns the enclosed volume.
func (b OBB) Volume() float64 {
	return 8 * b.HalfSizes.X * b.HalfSizes.Y * b.HalfSizes.Z
}

// Corners returns the eight world-space corners.
func (b OBB) Corners() [8]v3.Vec {
	var out [8]v3.Vec
	i := 0
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				local := v3.Vec{X: sx * b.HalfSizes.X, Y: sy * b.HalfSizes.Y, Z: sz * b.HalfSizes.Z}
				out[i] = b.Center.Add(b.Rotation.MulVec(local))
				i++
			}
		}
	}
	return out
}

// AABB returns the smallest world axis-aligned box enclosing b.
func (b OBB) AABB() sdf.Box3 {
	r := b.Rotation
	h := b.HalfSizes
	e := v3.Vec{
		X: math.Abs(r.At(0, 0))*h.X + math.Abs(r.At(0, 1))*h.Y + math.Abs(r.At(0, 2))*h.Z,
		Y: math.Abs(r.At(1, 0))*h.X + math.Abs(r.At(1, 1))*h.Y + math.Abs(r.At(1, 2))*h.Z,
		Z: math.Abs(r.At(2, 0))*h.X + math.Abs(r.At(2, 1))*h.Y + math.Abs(r.At(2, 2))*h.Z,
	}
	return sdf.Box3{Min: b.Center.Sub(e), Max: b.Center.Add(e)}
}

// FromAABB sets b to the axis-aligned box bb.
func (b *OBB) FromAABB(bb sdf.Box3) error {
	half := bb.Max.Sub(bb.Min).MulScalar(0.5)
	center := bb.Min.Add(bb.Max).MulScalar(0.5)
	if err := validate("from aabb", center, half, geom.Identity3()); err != nil {
		return err
	}
	b.Center = center
	b.HalfSizes = half
	b.Rotation = geom.Identity3()
	return nil
}

func validate(op string, center, halfSizes v3.Vec, rotation geom.Mat3) error {
	if !geom.Finite(center) {
		return &InvalidInputError{Op: op, Reason: "center is not finite"}
	}
	if !geom.Finite(halfSizes) {
		return &InvalidInputError{Op: op, Reason: "half sizes are not finite"}
	}
	if halfSizes.X < 0 || halfSizes.Y < 0 || halfSizes.Z < 0 {
		return &InvalidInputError{Op: op, Reason: "half sizes must be non-negative"}
	}
	if !rotation.IsRotation(RotationTolerance) {
		return &InvalidInputError{Op: op, Reason: "rotation is not orthonormal"}
	}
	return nil
}
