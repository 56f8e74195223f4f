package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/chazu/boxfit/pkg/kernel/sdfx"
	"github.com/chazu/boxfit/pkg/obb"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cuboid returns the corners of an axis-aligned box.
func cuboid(center, half v3.Vec) []v3.Vec {
	var pts []v3.Vec
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				pts = append(pts, center.Add(v3.Vec{X: sx * half.X, Y: sy * half.Y, Z: sz * half.Z}))
			}
		}
	}
	return pts
}

func names(es []*Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func twoBoxes(t *testing.T) *Scene {
	t.Helper()
	s := New()
	_, err := s.Add("left", cuboid(v3.Vec{X: -5}, v3.Vec{X: 1, Y: 1, Z: 1}))
	require.NoError(t, err)
	_, err = s.Add("right", cuboid(v3.Vec{X: 5}, v3.Vec{X: 2, Y: 1, Z: 1}))
	require.NoError(t, err)
	return s
}

func TestAddAndGet(t *testing.T) {
	s := twoBoxes(t)
	assert.Equal(t, 2, s.Len())

	e, ok := s.Get("right")
	require.True(t, ok)
	assert.Equal(t, "right", e.Name)
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Len(t, e.Points, 8)
	assert.True(t, geom.ApproxEqualVec(e.Bounds.Center, v3.Vec{X: 5}, 1e-9))
	assert.InDelta(t, 16.0, e.Bounds.Volume(), 1e-9)
	assert.InDelta(t, v3.Vec{X: 2, Y: 1, Z: 1}.Length(), e.Sphere.Radius, 1e-9)

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"left", "right"}, names(s.Entities()))
}

func TestAddRejects(t *testing.T) {
	s := twoBoxes(t)

	_, err := s.Add("left", cuboid(v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1}))
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	_, err = s.Add("", cuboid(v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1}))
	assert.True(t, errors.Is(err, ErrEmptyName), "got %v", err)

	_, err = s.Add("flat", []v3.Vec{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}})
	var inv *obb.InvalidInputError
	assert.True(t, errors.As(err, &inv), "got %v", err)

	assert.Equal(t, 2, s.Len())
}

func TestContaining(t *testing.T) {
	s := twoBoxes(t)
	tests := []struct {
		name string
		p    v3.Vec
		want []string
	}{
		{"inside left", v3.Vec{X: -5, Y: 0.5}, []string{"left"}},
		{"inside right", v3.Vec{X: 6.5}, []string{"right"}},
		{"on right boundary", v3.Vec{X: 7, Y: 1, Z: 1}, []string{"right"}},
		{"between", v3.Vec{}, nil},
		{"far away", v3.Vec{Z: 100}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Containing(tt.p)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestIntersectingSphere(t *testing.T) {
	s := twoBoxes(t)
	tests := []struct {
		name   string
		sphere geom.Sphere
		want   []string
	}{
		{"both", geom.Sphere{Center: v3.Vec{}, Radius: 4.5}, []string{"left", "right"}},
		{"left only", geom.Sphere{Center: v3.Vec{X: -2}, Radius: 2.5}, []string{"left"}},
		{"reaches right", geom.Sphere{Center: v3.Vec{X: 9}, Radius: 2.1}, []string{"right"}},
		{"near corner miss", geom.Sphere{Center: v3.Vec{X: 8, Y: 2, Z: 2}, Radius: 1.7}, nil},
		{"none", geom.Sphere{Center: v3.Vec{Y: 10}, Radius: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.IntersectingSphere(tt.sphere)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestRefit(t *testing.T) {
	s := twoBoxes(t)
	before, _ := s.Get("left")

	after, err := s.Refit("left", cuboid(v3.Vec{Y: 20}, v3.Vec{X: 1, Y: 1, Z: 1}))
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.True(t, geom.ApproxEqualVec(after.Bounds.Center, v3.Vec{Y: 20}, 1e-9))

	// The index follows the new box.
	assert.Empty(t, s.Containing(v3.Vec{X: -5}))
	assert.Equal(t, []string{"left"}, names(s.Containing(v3.Vec{Y: 20})))

	// A failed refit keeps the previous volumes.
	_, err = s.Refit("left", []v3.Vec{{}, {X: 1}})
	require.Error(t, err)
	cur, _ := s.Get("left")
	assert.True(t, cur.Bounds.Equals(after.Bounds))

	_, err = s.Refit("missing", cuboid(v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1}))
	assert.True(t, errors.Is(err, ErrUnknownEntity), "got %v", err)
}

func TestRemove(t *testing.T) {
	s := twoBoxes(t)
	require.NoError(t, s.Remove("left"))
	assert.Empty(t, s.Containing(v3.Vec{X: -5}))
	assert.True(t, errors.Is(s.Remove("left"), ErrUnknownEntity))
	assert.Equal(t, 1, s.Len())
}

func TestClosestPoint(t *testing.T) {
	s := twoBoxes(t)
	p, err := s.ClosestPoint("left", v3.Vec{})
	require.NoError(t, err)
	assert.True(t, geom.ApproxEqualVec(p, v3.Vec{X: -4}, 1e-9), "got %v", p)

	_, err = s.ClosestPoint("missing", v3.Vec{})
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestAddSolid(t *testing.T) {
	k := sdfx.New(sdfx.WithMeshCells(24))
	box, err := k.Box(4, 2, 1)
	require.NoError(t, err)
	solid := k.Translate(k.Rotate(box, 0, 0, 30), 10, 0, 0)

	s := New()
	e, err := s.AddSolid("plank", k, solid)
	require.NoError(t, err)
	assert.True(t, geom.ApproxEqualVec(e.Bounds.Center, v3.Vec{X: 10}, 0.2), "center %v", e.Bounds.Center)
	assert.InDelta(t, 8.0, e.Bounds.Volume(), 2.0)
	assert.Equal(t, []string{"plank"}, names(s.Containing(v3.Vec{X: 10})))
	for _, p := range e.Points {
		assert.True(t, e.Bounds.ContainsPoint(p))
	}
}

func TestBroadphaseMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := New()
	for i := 0; i < 40; i++ {
		center := v3.Vec{X: rng.Float64() * 40, Y: rng.Float64() * 40, Z: rng.Float64() * 40}
		rot := geom.RotationEuler(rng.Float64()*360, rng.Float64()*360, rng.Float64()*360)
		var pts []v3.Vec
		for _, c := range cuboid(v3.Vec{}, v3.Vec{X: 1 + rng.Float64()*3, Y: 1 + rng.Float64(), Z: 0.5}) {
			pts = append(pts, center.Add(rot.MulVec(c)))
		}
		_, err := s.Add(fmt.Sprintf("e%02d", i), pts)
		require.NoError(t, err)
	}

	for i := 0; i < 200; i++ {
		p := v3.Vec{X: rng.Float64() * 40, Y: rng.Float64() * 40, Z: rng.Float64() * 40}
		sp := geom.Sphere{Center: p, Radius: rng.Float64() * 3}

		var wantIn, wantHit []string
		for _, e := range s.Entities() {
			if e.Bounds.ContainsPoint(p) {
				wantIn = append(wantIn, e.Name)
			}
			if e.Bounds.IntersectsSphere(sp) {
				wantHit = append(wantHit, e.Name)
			}
		}
		assert.Equal(t, len(wantIn), len(s.Containing(p)))
		assert.Equal(t, len(wantHit), len(s.IntersectingSphere(sp)))
		if len(wantHit) > 0 {
			assert.Equal(t, wantHit, names(s.IntersectingSphere(sp)))
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := twoBoxes(t)
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var restored Scene
	require.NoError(t, json.Unmarshal(data, &restored))
	require.Equal(t, 2, restored.Len())
	for _, want := range s.Entities() {
		got, ok := restored.Get(want.Name)
		require.True(t, ok)
		assert.Equal(t, want.ID, got.ID)
		assert.True(t, got.Bounds.Equals(want.Bounds))
		assert.Equal(t, want.Sphere, got.Sphere)
		assert.Equal(t, want.Points, got.Points)
	}
	assert.Equal(t, []string{"right"}, names(restored.Containing(v3.Vec{X: 6})))
}

func TestSnapshotRejects(t *testing.T) {
	box := `{"type":"OBB","center":[0,0,0],"halfSizes":[1,1,1],"rotation":[1,0,0,0,1,0,0,0,1]}`
	sphere := `{"center":[0,0,0],"radius":2}`
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `{"entities":`},
		{"bad box", `{"entities":[{"name":"a","bounds":{"type":"OBB"},"sphere":` + sphere + `}]}`},
		{"missing box", `{"entities":[{"name":"a","sphere":` + sphere + `}]}`},
		{"empty name", `{"entities":[{"name":"","bounds":` + box + `,"sphere":` + sphere + `}]}`},
		{"duplicate", `{"entities":[{"name":"a","bounds":` + box + `,"sphere":` + sphere + `},{"name":"a","bounds":` + box + `,"sphere":` + sphere + `}]}`},
		{"short point", `{"entities":[{"name":"a","bounds":` + box + `,"sphere":` + sphere + `,"points":[[1,2]]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := twoBoxes(t)
			assert.Error(t, json.Unmarshal([]byte(tt.doc), s))
			assert.Equal(t, []string{"left", "right"}, names(s.Entities()), "scene changed on error")
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := twoBoxes(t)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				name := fmt.Sprintf("w%d-%d", w, i)
				_, err := s.Add(name, cuboid(v3.Vec{Z: float64(i)}, v3.Vec{X: 1, Y: 1, Z: 1}))
				assert.NoError(t, err)
				s.Containing(v3.Vec{Z: float64(i)})
				s.IntersectingSphere(geom.Sphere{Center: v3.Vec{}, Radius: 3})
				assert.NoError(t, s.Remove(name))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 2, s.Len())
}
