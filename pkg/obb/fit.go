package obb

import (
	"fmt"
	"math"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/chazu/boxfit/pkg/hull"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// flushEpsilon is the relative magnitude below which covariance entries
// are treated as cancellation noise.
const flushEpsilon = 1e-12

// FitOption adjusts FromPoints.
type FitOption func(*fitOptions)

type fitOptions struct {
	accumulateCenter bool
}

// WithAccumulatedCenter makes FromPoints add the fitted center onto the
// box's current Center instead of replacing it.
func WithAccumulatedCenter() FitOption {
	return func(o *fitOptions) {
		o.accumulateCenter = true
	}
}

// triangle is one fan triangle of a hull face.
type triangle struct {
	p, q, r v3.Vec
}

// FromPoints fits b to points. The box axes are the eigenvectors of the
// covariance of the points' convex hull surface; extents and center come
// from projecting every input point onto those axes.
//
// At least four affinely independent points are required. On error the
// receiver is unchanged.
func (b *OBB) FromPoints(points []v3.Vec, opts ...FitOption) error {
	var o fitOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(points) < 4 {
		return &InvalidInputError{Op: "fit", Reason: fmt.Sprintf("need at least 4 points, got %d", len(points))}
	}

	h, err := hull.Build(points)
	if err != nil {
		return &InvalidInputError{Op: "fit", Reason: "cannot build convex hull", Err: err}
	}

	cov, err := surfaceCovariance(fanTriangles(h))
	if err != nil {
		return err
	}

	basis, _, err := geom.EigenSym(cov.Flush(flushEpsilon))
	if err != nil {
		return &NumericError{Op: "fit", Reason: "covariance eigen-decomposition", Err: err}
	}
	if basis.Det() < 0 {
		basis = basis.SetColumn(2, basis.Column(2).MulScalar(-1))
	}

	var lo, hi [3]float64
	for k := 0; k < 3; k++ {
		lo[k], hi[k] = math.Inf(1), math.Inf(-1)
	}
	axes := [3]v3.Vec{basis.Column(0), basis.Column(1), basis.Column(2)}
	for _, p := range points {
		for k, axis := range axes {
			d := p.Dot(axis)
			lo[k] = math.Min(lo[k], d)
			hi[k] = math.Max(hi[k], d)
		}
	}

	half := v3.Vec{X: (hi[0] - lo[0]) / 2, Y: (hi[1] - lo[1]) / 2, Z: (hi[2] - lo[2]) / 2}
	var offset v3.Vec
	for k, axis := range axes {
		offset = offset.Add(axis.MulScalar((lo[k] + hi[k]) / 2))
	}

	center := offset
	if o.accumulateCenter {
		center = b.Center.Add(offset)
	}
	if !geom.Finite(center) || !geom.Finite(half) {
		return &NumericError{Op: "fit", Reason: "fitted box is not finite"}
	}

	b.Center = center
	b.HalfSizes = half
	b.Rotation = basis
	return nil
}

// fanTriangles splits every hull face into a fan anchored at its first
// boundary vertex.
func fanTriangles(h *hull.Hull) []triangle {
	var tris []triangle
	for _, f := range h.Faces {
		vs := f.Vertices()
		for i := 1; i+1 < len(vs); i++ {
			tris = append(tris, triangle{p: vs[0], q: vs[i], r: vs[i+1]})
		}
	}
	return tris
}

// surfaceCovariance returns the covariance of a uniform area distribution
// over the triangles. Each triangle contributes its exact second moment,
// (9*m_i*m_j + p_i*p_j + q_i*q_j + r_i*r_j) * area / 12, where m is its
// centroid. Coordinates are taken relative to the first vertex, which
// leaves the covariance unchanged but keeps the mean subtraction from
// cancelling catastrophically for geometry far from the origin.
func surfaceCovariance(tris []triangle) (geom.Sym3, error) {
	var (
		sum     geom.Sym3
		areaSum float64
		mean    v3.Vec
		origin  v3.Vec
	)
	if len(tris) > 0 {
		origin = tris[0].p
	}
	for _, t := range tris {
		t = triangle{p: t.p.Sub(origin), q: t.q.Sub(origin), r: t.r.Sub(origin)}
		m := t.p.Add(t.q).Add(t.r).DivScalar(3)
		area := t.q.Sub(t.p).Cross(t.r.Sub(t.p)).Length() / 2

		areaSum += area
		mean = mean.Add(m.MulScalar(area))

		w := area / 12
		sum.XX += (9*m.X*m.X + t.p.X*t.p.X + t.q.X*t.q.X + t.r.X*t.r.X) * w
		sum.XY += (9*m.X*m.Y + t.p.X*t.p.Y + t.q.X*t.q.Y + t.r.X*t.r.Y) * w
		sum.XZ += (9*m.X*m.Z + t.p.X*t.p.Z + t.q.X*t.q.Z + t.r.X*t.r.Z) * w
		sum.YY += (9*m.Y*m.Y + t.p.Y*t.p.Y + t.q.Y*t.q.Y + t.r.Y*t.r.Y) * w
		sum.YZ += (9*m.Y*m.Z + t.p.Y*t.p.Z + t.q.Y*t.q.Z + t.r.Y*t.r.Z) * w
		sum.ZZ += (9*m.Z*m.Z + t.p.Z*t.p.Z + t.q.Z*t.q.Z + t.r.Z*t.r.Z) * w
	}

	if areaSum == 0 || math.IsNaN(areaSum) || math.IsInf(areaSum, 0) {
		return geom.Sym3{}, &NumericError{Op: "fit", Reason: "hull surface area is zero"}
	}

	mean = mean.DivScalar(areaSum)
	cov := geom.Sym3{
		XX: sum.XX/areaSum - mean.X*mean.X,
		XY: sum.XY/areaSum - mean.X*mean.Y,
		XZ: sum.XZ/areaSum - mean.X*mean.Z,
		YY: sum.YY/areaSum - mean.Y*mean.Y,
		YZ: sum.YZ/areaSum - mean.Y*mean.Z,
		ZZ: sum.ZZ/areaSum - mean.Z*mean.Z,
	}
	return cov, nil
}
