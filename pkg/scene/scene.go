// Package scene holds named entities, each carrying the oriented bounding
// box fitted to its points, and answers spatial queries against them. An
// R-tree over each box's world AABB prunes candidates before the exact
// box test runs.
package scene

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/chazu/boxfit/pkg/kernel"
	"github.com/chazu/boxfit/pkg/obb"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"
)

var (
	// ErrDuplicate is returned when adding an entity whose name is taken.
	ErrDuplicate = errors.New("scene: duplicate entity name")
	// ErrUnknownEntity is returned when a named entity does not exist.
	ErrUnknownEntity = errors.New("scene: unknown entity")
	// ErrEmptyName is returned when adding an entity without a name.
	ErrEmptyName = errors.New("scene: entity name is empty")
)

// R-tree branching bounds.
const (
	treeMinChildren = 25
	treeMaxChildren = 50
)

// rectMargin is the relative margin added around index rectangles so that
// boundary contacts survive the strict overlap test of the R-tree.
const rectMargin = 1e-9

// Entity is a named point set and the volumes fitted to it. Entities are
// immutable once stored; Refit replaces the entity with a new value that
// keeps the same ID.
type Entity struct {
	ID     uuid.UUID
	Name   string
	Points []v3.Vec
	Bounds obb.OBB
	Sphere geom.Sphere
}

// indexed is the R-tree record of an entity.
type indexed struct {
	entity *Entity
	rect   rtreego.Rect
}

func (x *indexed) Bounds() rtreego.Rect { return x.rect }

// Option configures a Scene.
type Option func(*Scene)

// WithFitOptions sets the options passed to obb.OBB.FromPoints whenever the
// scene fits an entity.
func WithFitOptions(opts ...obb.FitOption) Option {
	return func(s *Scene) {
		s.fitOpts = append(s.fitOpts, opts...)
	}
}

// Scene is a set of uniquely named entities. It is safe for concurrent use.
type Scene struct {
	mu       sync.RWMutex
	entities map[string]*indexed
	tree     *rtreego.Rtree
	fitOpts  []obb.FitOption
}

// New returns an empty scene.
func New(opts ...Option) *Scene {
	s := &Scene{}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

func (s *Scene) reset() {
	s.entities = make(map[string]*indexed)
	s.tree = rtreego.NewTree(3, treeMinChildren, treeMaxChildren)
}

// fit builds a new entity from points without touching the scene.
func (s *Scene) fit(id uuid.UUID, name string, points []v3.Vec) (*Entity, error) {
	b := obb.New()
	if err := b.FromPoints(points, s.fitOpts...); err != nil {
		return nil, err
	}
	return &Entity{
		ID:     id,
		Name:   name,
		Points: append([]v3.Vec(nil), points...),
		Bounds: b,
		Sphere: geom.SphereFromPoints(points),
	}, nil
}

// Add fits a box and bounding sphere to points and stores them under name.
func (s *Scene) Add(name string, points []v3.Vec) (*Entity, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	e, err := s.fit(uuid.New(), name, points)
	if err != nil {
		return nil, fmt.Errorf("scene: add %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	if err := s.insert(e); err != nil {
		return nil, err
	}
	return e, nil
}

// AddSolid tessellates solid with k and adds the mesh vertices as a new
// entity.
func (s *Scene) AddSolid(name string, k kernel.Kernel, solid kernel.Solid) (*Entity, error) {
	mesh, err := k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("scene: tessellate %q: %w", name, err)
	}
	mesh.Name = name
	return s.Add(name, mesh.Points())
}

// Refit replaces the points of an existing entity and fits it again. When
// fitting fails the entity keeps its previous volumes and the error is
// returned.
func (s *Scene) Refit(name string, points []v3.Vec) (*Entity, error) {
	s.mu.RLock()
	old, ok := s.entities[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}

	e, err := s.fit(old.entity.ID, name, points)
	if err != nil {
		return nil, fmt.Errorf("scene: refit %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	s.tree.Delete(cur)
	delete(s.entities, name)
	if err := s.insert(e); err != nil {
		return nil, err
	}
	return e, nil
}

// insert indexes e. Callers hold the write lock.
func (s *Scene) insert(e *Entity) error {
	rect, err := boxRect(e.Bounds)
	if err != nil {
		return fmt.Errorf("scene: index %q: %w", e.Name, err)
	}
	x := &indexed{entity: e, rect: rect}
	s.entities[e.Name] = x
	s.tree.Insert(x)
	return nil
}

// Remove deletes the named entity.
func (s *Scene) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.entities[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	s.tree.Delete(x)
	delete(s.entities, name)
	return nil
}

// Get returns the named entity.
func (s *Scene) Get(name string) (*Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	x, ok := s.entities[name]
	if !ok {
		return nil, false
	}
	return x.entity, true
}

// Len returns the number of entities.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Entities returns every entity ordered by name.
func (s *Scene) Entities() []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entity, 0, len(s.entities))
	for _, x := range s.entities {
		out = append(out, x.entity)
	}
	sortByName(out)
	return out
}

// Containing returns the entities whose box contains p, ordered by name.
func (s *Scene) Containing(p v3.Vec) []*Entity {
	rect, err := pointRect(p)
	if err != nil {
		return nil
	}
	return s.search(rect, func(e *Entity) bool { return e.Bounds.ContainsPoint(p) })
}

// IntersectingSphere returns the entities whose box overlaps sp, ordered by
// name.
func (s *Scene) IntersectingSphere(sp geom.Sphere) []*Entity {
	rect, err := sphereRect(sp)
	if err != nil {
		return nil
	}
	return s.search(rect, func(e *Entity) bool { return e.Bounds.IntersectsSphere(sp) })
}

func (s *Scene) search(rect rtreego.Rect, exact func(*Entity) bool) []*Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entity
	for _, sp := range s.tree.SearchIntersect(rect) {
		e := sp.(*indexed).entity
		if exact(e) {
			out = append(out, e)
		}
	}
	sortByName(out)
	return out
}

// ClosestPoint returns the point of the named entity's box closest to p.
func (s *Scene) ClosestPoint(name string, p v3.Vec) (v3.Vec, error) {
	e, ok := s.Get(name)
	if !ok {
		return v3.Vec{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return e.Bounds.ClampPoint(p), nil
}

func sortByName(es []*Entity) {
	sort.Slice(es, func(i, j int) bool { return es[i].Name < es[j].Name })
}

// boxRect returns the R-tree rectangle of b's world AABB, padded by a
// small margin so that zero-thickness boxes still have positive lengths.
func boxRect(b obb.OBB) (rtreego.Rect, error) {
	box := b.AABB()
	return paddedRect(box.Min, box.Max)
}

func pointRect(p v3.Vec) (rtreego.Rect, error) {
	return paddedRect(p, p)
}

func sphereRect(sp geom.Sphere) (rtreego.Rect, error) {
	r := v3.Vec{X: sp.Radius, Y: sp.Radius, Z: sp.Radius}
	return paddedRect(sp.Center.Sub(r), sp.Center.Add(r))
}

func paddedRect(lo, hi v3.Vec) (rtreego.Rect, error) {
	if !geom.Finite(lo) || !geom.Finite(hi) {
		return rtreego.Rect{}, fmt.Errorf("non-finite bounds %v %v", lo, hi)
	}
	scale := 1 + math.Max(lo.Length(), hi.Length())
	m := rectMargin * scale
	origin := rtreego.Point{lo.X - m, lo.Y - m, lo.Z - m}
	lengths := []float64{hi.X - lo.X + 2*m, hi.Y - lo.Y + 2*m, hi.Z - lo.Z + 2*m}
	return rtreego.NewRect(origin, lengths)
}
