package geom

import (
	"errors"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"
)

// ErrEigen is returned when a symmetric eigen-decomposition fails to converge
// or yields a non-finite basis.
var ErrEigen = errors.New("geom: symmetric eigen-decomposition failed")

// Sym3 is a symmetric 3x3 matrix stored as its six independent entries.
type Sym3 struct {
	XX, XY, XZ float64
	YY, YZ     float64
	ZZ         float64
}

// Trace returns XX + YY + ZZ.
func (s Sym3) Trace() float64 {
	return s.XX + s.YY + s.ZZ
}

// Dense expands s into a full column-major matrix.
func (s Sym3) Dense() Mat3 {
	return Mat3{
		s.XX, s.XY, s.XZ,
		s.XY, s.YY, s.YZ,
		s.XZ, s.YZ, s.ZZ,
	}
}

// Flush zeroes every entry whose magnitude is at most eps times the largest
// entry magnitude. Cancellation in symmetric inputs leaves residues of a few
// ulps in entries that are exactly zero in theory; left in place they tilt
// the eigenvectors of near-degenerate matrices arbitrarily.
func (s Sym3) Flush(eps float64) Sym3 {
	entries := []*float64{&s.XX, &s.XY, &s.XZ, &s.YY, &s.YZ, &s.ZZ}
	scale := 0.0
	for _, e := range entries {
		scale = math.Max(scale, math.Abs(*e))
	}
	limit := eps * scale
	for _, e := range entries {
		if math.Abs(*e) <= limit {
			*e = 0
		}
	}
	return s
}

// EigenSym diagonalizes s. The returned basis holds the unit eigenvectors as
// columns and values holds the matching eigenvalues in ascending order.
// The basis is orthonormal but may be improper; callers that need a
// rotation must fix the handedness themselves.
func EigenSym(s Sym3) (basis Mat3, values [3]float64, err error) {
	sym := mat.NewSymDense(3, []float64{
		s.XX, s.XY, s.XZ,
		s.XY, s.YY, s.YZ,
		s.XZ, s.YZ, s.ZZ,
	})

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return Mat3{}, values, ErrEigen
	}
	es.Values(values[:])

	var vecs mat.Dense
	es.VectorsTo(&vecs)
	for c := 0; c < 3; c++ {
		col := v3.Vec{X: vecs.At(0, c), Y: vecs.At(1, c), Z: vecs.At(2, c)}
		if !Finite(col) {
			return Mat3{}, values, ErrEigen
		}
		basis = basis.SetColumn(c, col)
	}
	return basis, values, nil
}
