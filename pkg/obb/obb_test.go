package obb

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func unitCube() OBB {
	return OBB{HalfSizes: v3.Vec{X: 1, Y: 1, Z: 1}, Rotation: geom.Identity3()}
}

func TestNewDefaults(t *testing.T) {
	b := New()
	assert.Equal(t, v3.Vec{}, b.Center)
	assert.Equal(t, v3.Vec{}, b.HalfSizes)
	assert.Equal(t, geom.Identity3(), b.Rotation)
}

func TestSetValidates(t *testing.T) {
	tests := []struct {
		name     string
		half     v3.Vec
		rotation geom.Mat3
		wantErr  bool
	}{
		{"valid", v3.Vec{X: 1, Y: 2, Z: 3}, geom.RotationEuler(10, 20, 30), false},
		{"zero size", v3.Vec{}, geom.Identity3(), false},
		{"negative half size", v3.Vec{X: 1, Y: -2, Z: 3}, geom.Identity3(), true},
		{"nan half size", v3.Vec{X: math.NaN(), Y: 1, Z: 1}, geom.Identity3(), true},
		{"scaled rotation", v3.Vec{X: 1, Y: 1, Z: 1}, geom.Mat3{2, 0, 0, 0, 2, 0, 0, 0, 2}, true},
		{"reflection", v3.Vec{X: 1, Y: 1, Z: 1}, geom.Mat3{1, 0, 0, 0, 1, 0, 0, 0, -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			before := b
			err := b.Set(v3.Vec{X: 5}, tt.half, tt.rotation)
			if tt.wantErr {
				var inv *InvalidInputError
				require.True(t, errors.As(err, &inv), "got %v", err)
				assert.True(t, b.Equals(before), "receiver mutated on error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, v3.Vec{X: 5}, b.Center)
			assert.Equal(t, tt.half, b.HalfSizes)
		})
	}
}

func TestCopyCloneEquals(t *testing.T) {
	a := New()
	require.NoError(t, a.Set(v3.Vec{X: 1, Y: 2, Z: 3}, v3.Vec{X: 1, Y: 1, Z: 2}, geom.RotationEuler(0, 45, 0)))

	c := a.Clone()
	assert.True(t, c.Equals(a))
	c.HalfSizes.X = 9
	assert.False(t, c.Equals(a), "clone must not alias")

	var d OBB
	require.NoError(t, d.Copy(a))
	assert.True(t, d.Equals(a))

	bad := a
	bad.HalfSizes.Y = -1
	assert.Error(t, d.Copy(bad))
	assert.True(t, d.Equals(a))

	// Equals is exact; ApproxEquals takes a tolerance.
	e := a
	e.Center.X += 1e-12
	assert.False(t, e.Equals(a))
	assert.True(t, e.ApproxEquals(a, 1e-9))
}

func TestClampPoint(t *testing.T) {
	b := unitCube()
	tests := []struct {
		name string
		p    v3.Vec
		want v3.Vec
	}{
		{"inside", v3.Vec{X: 0.5, Y: -0.25}, v3.Vec{X: 0.5, Y: -0.25}},
		{"face", v3.Vec{X: 3}, v3.Vec{X: 1}},
		{"edge", v3.Vec{X: 3, Y: -4}, v3.Vec{X: 1, Y: -1}},
		{"corner", v3.Vec{X: 3, Y: 3, Z: 3}, v3.Vec{X: 1, Y: 1, Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ClampPoint(tt.p)
			assert.True(t, geom.ApproxEqualVec(got, tt.want, tol), "got %v", got)
		})
	}
}

func TestClampPointRotated(t *testing.T) {
	b := New()
	require.NoError(t, b.Set(v3.Vec{X: 10}, v3.Vec{X: 2, Y: 1, Z: 1}, geom.RotationZ(math.Pi/2)))
	// The long local X axis now runs along world Y.
	got := b.ClampPoint(v3.Vec{X: 10, Y: 5})
	assert.True(t, geom.ApproxEqualVec(got, v3.Vec{X: 10, Y: 2}, tol), "got %v", got)
	got = b.ClampPoint(v3.Vec{X: 15})
	assert.True(t, geom.ApproxEqualVec(got, v3.Vec{X: 11}, tol), "got %v", got)
	assert.InDelta(t, 4.0, b.DistanceToPoint(v3.Vec{X: 15}), tol)
}

func TestContainsPoint(t *testing.T) {
	b := unitCube()
	assert.True(t, b.ContainsPoint(v3.Vec{}))
	assert.True(t, b.ContainsPoint(v3.Vec{X: 1, Y: 1, Z: 1}), "boundary is inclusive")
	assert.True(t, b.ContainsPoint(v3.Vec{X: -1, Y: 0.3}))
	assert.False(t, b.ContainsPoint(v3.Vec{X: 1.001}))
	assert.False(t, b.ContainsPoint(v3.Vec{Y: -2}))
}

func TestIntersectsSphere(t *testing.T) {
	b := unitCube()
	tests := []struct {
		name   string
		sphere geom.Sphere
		want   bool
	}{
		{"reaches face", geom.Sphere{Center: v3.Vec{X: 2}, Radius: 1.5}, true},
		{"short of face", geom.Sphere{Center: v3.Vec{X: 2}, Radius: 0.5}, false},
		{"touching", geom.Sphere{Center: v3.Vec{X: 2}, Radius: 1}, true},
		{"center inside", geom.Sphere{Center: v3.Vec{X: 0.5}, Radius: 0}, true},
		{"near corner miss", geom.Sphere{Center: v3.Vec{X: 2, Y: 2, Z: 2}, Radius: 1.7}, false},
		{"near corner hit", geom.Sphere{Center: v3.Vec{X: 2, Y: 2, Z: 2}, Radius: 1.75}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.IntersectsSphere(tt.sphere))
		})
	}
}

func TestCornersAndAABB(t *testing.T) {
	b := New()
	require.NoError(t, b.Set(v3.Vec{X: 1}, v3.Vec{X: 1, Y: 1, Z: 1}, geom.RotationZ(math.Pi/4)))
	s2 := math.Sqrt2
	box := b.AABB()
	assert.True(t, geom.ApproxEqualVec(box.Min, v3.Vec{X: 1 - s2, Y: -s2, Z: -1}, tol), "min %v", box.Min)
	assert.True(t, geom.ApproxEqualVec(box.Max, v3.Vec{X: 1 + s2, Y: s2, Z: 1}, tol), "max %v", box.Max)
	for _, c := range b.Corners() {
		assert.True(t, b.ContainsPoint(c))
		assert.True(t, c.X >= box.Min.X-tol && c.X <= box.Max.X+tol)
	}
	assert.InDelta(t, 8.0, b.Volume(), tol)
	assert.Equal(t, v3.Vec{X: 2, Y: 2, Z: 2}, b.Size())
}

func TestFromAABB(t *testing.T) {
	var b OBB
	require.NoError(t, b.FromAABB(sdf.Box3{Min: v3.Vec{X: -1, Y: 0, Z: 2}, Max: v3.Vec{X: 3, Y: 2, Z: 4}}))
	assert.Equal(t, v3.Vec{X: 1, Y: 1, Z: 3}, b.Center)
	assert.Equal(t, v3.Vec{X: 2, Y: 1, Z: 1}, b.HalfSizes)
	assert.Equal(t, geom.Identity3(), b.Rotation)

	assert.Error(t, b.FromAABB(sdf.Box3{Min: v3.Vec{X: 1}, Max: v3.Vec{}}))
}

func TestQueryProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		b := New()
		require.NoError(t, b.Set(
			randVec(rng, 10),
			v3.Vec{X: rng.Float64() * 3, Y: rng.Float64() * 3, Z: rng.Float64() * 3},
			geom.RotationEuler(rng.Float64()*360, rng.Float64()*360, rng.Float64()*360),
		))
		for j := 0; j < 20; j++ {
			p := b.Center.Add(randVec(rng, 6))
			c := b.ClampPoint(p)
			assert.True(t, b.ContainsPoint(c), "clamped point must be contained")
			if b.ContainsPoint(p) {
				assert.True(t, geom.ApproxEqualVec(c, p, 1e-9), "clamp must not move contained points")
			}
			assert.True(t, b.ClampPoint(c).Sub(c).Length() < 1e-9, "clamp is idempotent")
		}
	}
}

func randVec(rng *rand.Rand, scale float64) v3.Vec {
	return v3.Vec{
		X: (rng.Float64()*2 - 1) * scale,
		Y: (rng.Float64()*2 - 1) * scale,
		Z: (rng.Float64()*2 - 1) * scale,
	}
}
