package obb

import (
	"math"

	"github.com/chazu/boxfit/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// containsSlack is the relative slack ContainsPoint allows past the
// boundary so that points produced by ClampPoint or FromPoints, which carry
// a few ulps of rounding, still test as contained.
const containsSlack = 1e-12

// local returns p - Center expressed in the box's local frame.
func (b OBB) local(p v3.Vec) v3.Vec {
	return b.Rotation.TransposeMulVec(p.Sub(b.Center))
}

// ClampPoint returns the point of b (surface or interior) closest to p.
func (b OBB) ClampPoint(p v3.Vec) v3.Vec {
	l := b.local(p)
	c := v3.Vec{
		X: clamp(l.X, b.HalfSizes.X),
		Y: clamp(l.Y, b.HalfSizes.Y),
		Z: clamp(l.Z, b.HalfSizes.Z),
	}
	return b.Center.Add(b.Rotation.MulVec(c))
}

func clamp(v, h float64) float64 {
	return math.Max(-h, math.Min(h, v))
}

// ContainsPoint reports whether p lies inside b or on its boundary.
func (b OBB) ContainsPoint(p v3.Vec) bool {
	l := b.local(p)
	h := b.HalfSizes
	slack := containsSlack * (1 + p.Length() + b.Center.Length() + math.Max(h.X, math.Max(h.Y, h.Z)))
	return math.Abs(l.X) <= h.X+slack &&
		math.Abs(l.Y) <= h.Y+slack &&
		math.Abs(l.Z) <= h.Z+slack
}

// IntersectsSphere reports whether b and s overlap, touching included.
func (b OBB) IntersectsSphere(s geom.Sphere) bool {
	closest := b.ClampPoint(s.Center)
	return closest.Sub(s.Center).Length2() <= s.Radius*s.Radius
}

// DistanceToPoint returns the Euclidean distance from p to b, zero when p
// is inside.
func (b OBB) DistanceToPoint(p v3.Vec) float64 {
	return b.ClampPoint(p).Sub(p).Length()
}
