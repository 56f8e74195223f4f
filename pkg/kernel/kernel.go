// Package kernel defines the abstract geometry kernel interface.
// Implementations turn primitive solids and their boolean combinations
// into triangle meshes whose vertices feed bounding box fitting.
package kernel

import "github.com/deadsy/sdfx/sdf"

// Solid is an opaque handle to a geometry kernel solid.
type Solid interface {
	// BoundingBox returns the world axis-aligned bounding box.
	BoundingBox() sdf.Box3
}

// Kernel builds solids and tessellates them. Primitives are centered on
// the origin; place them with Translate and Rotate.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) (Solid, error)
	Sphere(radius float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	ToMesh(s Solid) (*Mesh, error)
}
