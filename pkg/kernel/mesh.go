package kernel

import v3 "github.com/deadsy/sdfx/vec/v3"

// Mesh is an indexed triangle mesh. Vertices holds 3 floats per unique
// vertex, Normals 3 floats per triangle and Indices 3 per triangle.
type Mesh struct {
	Vertices []float64 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float64 `json:"normals"`  // [nx0,ny0,nz0, ...] one per triangle
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // entity this mesh was built for
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Points returns the distinct vertex positions in first-seen order.
func (m *Mesh) Points() []v3.Vec {
	seen := make(map[v3.Vec]struct{}, m.VertexCount())
	out := make([]v3.Vec, 0, m.VertexCount())
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		p := v3.Vec{X: m.Vertices[i], Y: m.Vertices[i+1], Z: m.Vertices[i+2]}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Builder accumulates triangles into an indexed Mesh, sharing vertices
// with identical coordinates.
type Builder struct {
	mesh  Mesh
	index map[v3.Vec]uint32
}

// NewBuilder returns an empty Builder for the named mesh.
func NewBuilder(name string) *Builder {
	return &Builder{mesh: Mesh{Name: name}, index: make(map[v3.Vec]uint32)}
}

// AddTriangle appends the triangle p, q, r with face normal n.
func (b *Builder) AddTriangle(p, q, r, n v3.Vec) {
	for _, p := range [3]v3.Vec{p, q, r} {
		b.mesh.Indices = append(b.mesh.Indices, b.vertex(p))
	}
	b.mesh.Normals = append(b.mesh.Normals, n.X, n.Y, n.Z)
}

func (b *Builder) vertex(p v3.Vec) uint32 {
	if i, ok := b.index[p]; ok {
		return i
	}
	i := uint32(len(b.index))
	b.index[p] = i
	b.mesh.Vertices = append(b.mesh.Vertices, p.X, p.Y, p.Z)
	return i
}

// Mesh returns the accumulated mesh.
func (b *Builder) Mesh() *Mesh {
	m := b.mesh
	return &m
}
