package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mat3 is a 3x3 matrix stored column-major: elements 0..2 are the first
// column, 3..5 the second, 6..8 the third. When used as an orientation the
// columns are the local X, Y and Z axes expressed in world space.
type Mat3 [9]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Mat3FromColumns builds a matrix whose columns are x, y and z.
func Mat3FromColumns(x, y, z v3.Vec) Mat3 {
	return Mat3{
		x.X, x.Y, x.Z,
		y.X, y.Y, y.Z,
		z.X, z.Y, z.Z,
	}
}

// Mat3FromSlice copies 9 column-major elements into a matrix.
func Mat3FromSlice(s []float64) Mat3 {
	var m Mat3
	copy(m[:], s)
	return m
}

// At returns the element at row r, column c.
func (m Mat3) At(r, c int) float64 {
	return m[c*3+r]
}

// Column returns the i'th column.
func (m Mat3) Column(i int) v3.Vec {
	return v3.Vec{X: m[i*3], Y: m[i*3+1], Z: m[i*3+2]}
}

// Columns returns all three columns.
func (m Mat3) Columns() (x, y, z v3.Vec) {
	return m.Column(0), m.Column(1), m.Column(2)
}

// SetColumn returns a copy of m with column i replaced by v.
func (m Mat3) SetColumn(i int, v v3.Vec) Mat3 {
	m[i*3], m[i*3+1], m[i*3+2] = v.X, v.Y, v.Z
	return m
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Mul returns the product m * n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for c := 0; c < 3; c++ {
		out = out.SetColumn(c, m.MulVec(n.Column(c)))
	}
	return out
}

// MulVec returns m * v, i.e. v interpreted in the basis of m's columns.
func (m Mat3) MulVec(v v3.Vec) v3.Vec {
	x, y, z := m.Columns()
	return x.MulScalar(v.X).Add(y.MulScalar(v.Y)).Add(z.MulScalar(v.Z))
}

// TransposeMulVec returns m^T * v: the dot product of v with each column.
// For an orthonormal m this maps a world direction into the local frame.
func (m Mat3) TransposeMulVec(v v3.Vec) v3.Vec {
	x, y, z := m.Columns()
	return v3.Vec{X: x.Dot(v), Y: y.Dot(v), Z: z.Dot(v)}
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	x, y, z := m.Columns()
	return x.Dot(y.Cross(z))
}

// IsRotation reports whether m has unit-length, mutually orthogonal columns
// and a positive determinant, all within tol.
func (m Mat3) IsRotation(tol float64) bool {
	for _, f := range m {
		if !finite(f) {
			return false
		}
	}
	x, y, z := m.Columns()
	if math.Abs(x.Length()-1) > tol || math.Abs(y.Length()-1) > tol || math.Abs(z.Length()-1) > tol {
		return false
	}
	if math.Abs(x.Dot(y)) > tol || math.Abs(x.Dot(z)) > tol || math.Abs(y.Dot(z)) > tol {
		return false
	}
	return m.Det() > 0
}

// RotationX returns a rotation of angle radians about the X axis.
func RotationX(angle float64) Mat3 {
	s, c := math.Sincos(angle)
	return Mat3{
		1, 0, 0,
		0, c, s,
		0, -s, c,
	}
}

// RotationY returns a rotation of angle radians about the Y axis.
func RotationY(angle float64) Mat3 {
	s, c := math.Sincos(angle)
	return Mat3{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	}
}

// RotationZ returns a rotation of angle radians about the Z axis.
func RotationZ(angle float64) Mat3 {
	s, c := math.Sincos(angle)
	return Mat3{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	}
}

// RotationEuler returns Rz * Ry * Rx for angles given in degrees, matching
// the order the geometry kernel applies Euler rotations.
func RotationEuler(x, y, z float64) Mat3 {
	const deg = math.Pi / 180.0
	return RotationZ(z * deg).Mul(RotationY(y * deg)).Mul(RotationX(x * deg))
}
