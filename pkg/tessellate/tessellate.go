// Package tessellate describes solids as trees of primitives, boolean
// operations and placements, and builds them with a geometry kernel.
package tessellate

import (
	"fmt"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/chazu/boxfit/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kind identifies the operation a Node performs.
type Kind int

const (
	KindBox Kind = iota
	KindSphere
	KindCylinder
	KindUnion
	KindDifference
	KindIntersection
)

var kindNames = [...]string{
	KindBox:          "box",
	KindSphere:       "sphere",
	KindCylinder:     "cylinder",
	KindUnion:        "union",
	KindDifference:   "difference",
	KindIntersection: "intersection",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is one step of a solid description. Primitives are centered on the
// origin. Rotation (Euler degrees about X, then Y, then Z) and then
// Translation are applied to the node's result, so a parent's placement
// composes with its children's.
type Node struct {
	Kind        Kind
	Size        v3.Vec  // box
	Radius      float64 // sphere, cylinder
	Height      float64 // cylinder
	Translation v3.Vec
	Rotation    v3.Vec
	Children    []*Node // boolean operands
}

// Box returns a box primitive with the given full dimensions.
func Box(size v3.Vec) *Node { return &Node{Kind: KindBox, Size: size} }

// Sphere returns a sphere primitive.
func Sphere(radius float64) *Node { return &Node{Kind: KindSphere, Radius: radius} }

// Cylinder returns a cylinder primitive along Z.
func Cylinder(height, radius float64) *Node {
	return &Node{Kind: KindCylinder, Height: height, Radius: radius}
}

// Union returns the union of children.
func Union(children ...*Node) *Node { return &Node{Kind: KindUnion, Children: children} }

// Difference returns the first child minus the others.
func Difference(children ...*Node) *Node {
	return &Node{Kind: KindDifference, Children: children}
}

// Intersection returns the common volume of children.
func Intersection(children ...*Node) *Node {
	return &Node{Kind: KindIntersection, Children: children}
}

// At sets the translation of n and returns n.
func (n *Node) At(v v3.Vec) *Node {
	n.Translation = v
	return n
}

// Rotated sets the rotation of n and returns n.
func (n *Node) Rotated(degrees v3.Vec) *Node {
	n.Rotation = degrees
	return n
}

// Solid builds the solid described by n. The description is read-only and
// never mutated.
func Solid(k kernel.Kernel, n *Node) (kernel.Solid, error) {
	if n == nil {
		return nil, fmt.Errorf("tessellate: nil node")
	}
	return walkNode(k, n, 0)
}

// walkNode builds n and its children, then applies n's placement.
func walkNode(k kernel.Kernel, n *Node, depth int) (kernel.Solid, error) {
	if !geom.Finite(n.Translation) || !geom.Finite(n.Rotation) {
		return nil, fmt.Errorf("tessellate: %s at depth %d: non-finite placement", n.Kind, depth)
	}

	var (
		s   kernel.Solid
		err error
	)
	switch n.Kind {
	case KindBox, KindSphere, KindCylinder:
		s, err = handlePrimitive(k, n)
	case KindUnion, KindDifference, KindIntersection:
		s, err = handleBoolean(k, n, depth)
	default:
		err = fmt.Errorf("unknown node kind: %v", n.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("tessellate: %s at depth %d: %w", n.Kind, depth, err)
	}

	rot := n.Rotation
	if rot.X != 0 || rot.Y != 0 || rot.Z != 0 {
		s = k.Rotate(s, rot.X, rot.Y, rot.Z)
	}
	trans := n.Translation
	if trans.X != 0 || trans.Y != 0 || trans.Z != 0 {
		s = k.Translate(s, trans.X, trans.Y, trans.Z)
	}
	return s, nil
}

func handlePrimitive(k kernel.Kernel, n *Node) (kernel.Solid, error) {
	switch n.Kind {
	case KindBox:
		if !geom.Finite(n.Size) || n.Size.X <= 0 || n.Size.Y <= 0 || n.Size.Z <= 0 {
			return nil, fmt.Errorf("size %v must be positive", n.Size)
		}
		return k.Box(n.Size.X, n.Size.Y, n.Size.Z)
	case KindSphere:
		if !(n.Radius > 0) {
			return nil, fmt.Errorf("radius %v must be positive", n.Radius)
		}
		return k.Sphere(n.Radius)
	default:
		if !(n.Radius > 0) || !(n.Height > 0) {
			return nil, fmt.Errorf("height %v and radius %v must be positive", n.Height, n.Radius)
		}
		return k.Cylinder(n.Height, n.Radius)
	}
}

// handleBoolean folds the children left to right with the node's operation.
// A single operand passes through unchanged.
func handleBoolean(k kernel.Kernel, n *Node, depth int) (kernel.Solid, error) {
	if len(n.Children) == 0 {
		return nil, fmt.Errorf("no operands")
	}
	var acc kernel.Solid
	for i, child := range n.Children {
		if child == nil {
			return nil, fmt.Errorf("operand %d is nil", i)
		}
		s, err := walkNode(k, child, depth+1)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = s
			continue
		}
		switch n.Kind {
		case KindUnion:
			acc = k.Union(acc, s)
		case KindDifference:
			acc = k.Difference(acc, s)
		default:
			acc = k.Intersection(acc, s)
		}
	}
	return acc, nil
}
