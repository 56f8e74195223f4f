package sdfx

import (
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func mustBox(t *testing.T, k *SdfxKernel, x, y, z float64) *sdfxSolid {
	t.Helper()
	s, err := k.Box(x, y, z)
	if err != nil {
		t.Fatalf("Box(%v, %v, %v) failed: %v", x, y, z, err)
	}
	return s.(*sdfxSolid)
}

func checkBounds(t *testing.T, bb sdf.Box3, wantMin, wantMax v3.Vec, tol float64) {
	t.Helper()
	got := [6]float64{bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z}
	want := [6]float64{wantMin.X, wantMin.Y, wantMin.Z, wantMax.X, wantMax.Y, wantMax.Z}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("bounds[%d] = %f, expected ~%f", i, got[i], want[i])
		}
	}
}

func TestNewOptions(t *testing.T) {
	if got := New().MeshCells(); got != DefaultMeshCells {
		t.Errorf("default MeshCells() = %d, want %d", got, DefaultMeshCells)
	}
	if got := New(WithMeshCells(16)).MeshCells(); got != 16 {
		t.Errorf("MeshCells() = %d, want 16", got)
	}
	if got := New(WithMeshCells(0)).MeshCells(); got != DefaultMeshCells {
		t.Errorf("MeshCells() with 0 = %d, want default", got)
	}
}

func TestBox(t *testing.T) {
	k := New(WithMeshCells(32))
	box := mustBox(t, k, 100, 50, 25)
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	if len(mesh.Normals) != triCount*3 {
		t.Fatalf("normals length %d != triCount*3 %d", len(mesh.Normals), triCount*3)
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
	for _, idx := range mesh.Indices {
		if int(idx) >= mesh.VertexCount() {
			t.Fatalf("index %d out of range (%d vertices)", idx, mesh.VertexCount())
		}
	}

	// Every vertex lies within the box, up to one cell of slack.
	const slack = 100.0 / 32
	for _, p := range mesh.Points() {
		if math.Abs(p.X) > 50+slack || math.Abs(p.Y) > 25+slack || math.Abs(p.Z) > 12.5+slack {
			t.Fatalf("vertex %v outside box", p)
		}
	}
}

func TestBoxRejectsNegativeSize(t *testing.T) {
	if _, err := New().Box(-1, 1, 1); err == nil {
		t.Fatal("expected error for negative box size")
	}
}

func TestSphere(t *testing.T) {
	k := New(WithMeshCells(24))
	s, err := k.Sphere(10)
	if err != nil {
		t.Fatalf("Sphere failed: %v", err)
	}
	mesh, err := k.ToMesh(s)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	pts := mesh.Points()
	if len(pts) < 8 {
		t.Fatalf("sphere produced only %d points", len(pts))
	}
	const tol = 20.0 / 24
	for _, p := range pts {
		if math.Abs(p.Length()-10) > tol {
			t.Fatalf("vertex %v at distance %f, expected ~10", p, p.Length())
		}
	}
}

func TestCylinder(t *testing.T) {
	k := New(WithMeshCells(24))
	cyl, err := k.Cylinder(50, 10)
	if err != nil {
		t.Fatalf("Cylinder failed: %v", err)
	}
	checkBounds(t, cyl.BoundingBox(), v3.Vec{X: -10, Y: -10, Z: -25}, v3.Vec{X: 10, Y: 10, Z: 25}, 0.01)
	mesh, err := k.ToMesh(cyl)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.TriangleCount() == 0 {
		t.Fatal("expected non-zero triangle count")
	}
}

func TestDifference(t *testing.T) {
	k := New(WithMeshCells(32))

	box := mustBox(t, k, 100, 100, 100)
	boxMesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh(box) failed: %v", err)
	}

	cyl, err := k.Cylinder(120, 20)
	if err != nil {
		t.Fatalf("Cylinder failed: %v", err)
	}
	diffMesh, err := k.ToMesh(k.Difference(box, cyl))
	if err != nil {
		t.Fatalf("ToMesh(diff) failed: %v", err)
	}
	// A box with a hole should have more triangles than a plain box.
	if diffMesh.TriangleCount() <= boxMesh.TriangleCount() {
		t.Fatalf("difference (%d triangles) should have more triangles than box (%d triangles)",
			diffMesh.TriangleCount(), boxMesh.TriangleCount())
	}
}

func TestUnion(t *testing.T) {
	k := New(WithMeshCells(32))
	box1 := mustBox(t, k, 50, 50, 50)
	box2 := k.Translate(mustBox(t, k, 50, 50, 50), 30, 0, 0)
	u := k.Union(box1, box2)
	checkBounds(t, u.BoundingBox(), v3.Vec{X: -25, Y: -25, Z: -25}, v3.Vec{X: 55, Y: 25, Z: 25}, 0.01)
	mesh, err := k.ToMesh(u)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
}

func TestTranslate(t *testing.T) {
	k := New()
	translated := k.Translate(mustBox(t, k, 10, 10, 10), 100, 200, 300)
	checkBounds(t, translated.BoundingBox(),
		v3.Vec{X: 95, Y: 195, Z: 295}, v3.Vec{X: 105, Y: 205, Z: 305}, 0.5)
}

func TestIntersection(t *testing.T) {
	k := New(WithMeshCells(32))
	box1 := mustBox(t, k, 100, 100, 100)
	box2 := k.Translate(mustBox(t, k, 100, 100, 100), 50, 0, 0)
	mesh, err := k.ToMesh(k.Intersection(box1, box2))
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	for _, p := range mesh.Points() {
		if p.X < -1 || p.X > 51 {
			t.Fatalf("intersection vertex %v outside overlap", p)
		}
	}
}

func TestRotate(t *testing.T) {
	k := New()
	// A long box along X rotated 90 degrees around Z should extend along Y instead.
	rotated := k.Rotate(mustBox(t, k, 100, 10, 10), 0, 0, 90)
	bb := rotated.BoundingBox()

	xExtent := bb.Max.X - bb.Min.X
	yExtent := bb.Max.Y - bb.Min.Y

	const tol = 1.0
	if math.Abs(xExtent-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", xExtent)
	}
	if math.Abs(yExtent-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", yExtent)
	}
}
