// Package hull builds the convex hull of a 3D point cloud as a closed
// polyhedron of outward-facing faces linked by half-edges.
//
// The builder follows quickhull: it seeds the hull with a maximal
// tetrahedron and gives every face a conflict list of the points above it.
// It then repeatedly takes the furthest point of some face, removes the
// faces that point can see and closes the hole with a fan of new faces
// around the horizon, handing the orphaned points to the new faces. Points
// closer to a face plane than the tolerance are treated as lying on the
// hull and are not added, so coplanar and duplicate input points never
// produce zero-area faces.
package hull

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/boxfit/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var (
	// ErrDegenerate is returned when the points do not span a volume:
	// fewer than four points, or all points collinear or coplanar.
	ErrDegenerate = errors.New("hull: degenerate point set")

	// ErrNonFinite is returned when an input point has a NaN or infinite
	// coordinate.
	ErrNonFinite = errors.New("hull: non-finite point")

	// ErrTopology is returned when floating point noise produces a
	// horizon that is not a simple cycle.
	ErrTopology = errors.New("hull: inconsistent topology")
)

// relTolerance scales the plane distance tolerance to the extent of the
// point cloud.
const relTolerance = 1e-9

// Vertex is a hull vertex. Index is the position of the point in the
// slice passed to Build.
type Vertex struct {
	Index int
	Point v3.Vec
}

// HalfEdge is one directed side of a hull edge. It points at its head
// vertex; the tail is the head of Prev.
type HalfEdge struct {
	Head *Vertex
	Next *HalfEdge
	Prev *HalfEdge
	Twin *HalfEdge
	Face *Face
}

// Tail returns the vertex the edge starts from.
func (e *HalfEdge) Tail() *Vertex {
	return e.Prev.Head
}

// Face is a planar hull face. Its boundary is the ring of half-edges
// reachable from Edge through Next, counter-clockwise seen from outside.
type Face struct {
	Edge   *HalfEdge
	Normal v3.Vec  // unit outward normal
	Offset float64 // Normal . p for any point p on the face

	outside []*Vertex // points above the face not yet on the hull
	far     *Vertex   // the outside point furthest above the face
	farDist float64
	visible bool
	dead    bool
}

// Vertices returns the face's boundary loop in order, starting at the head
// of Edge.
func (f *Face) Vertices() []v3.Vec {
	var pts []v3.Vec
	e := f.Edge
	for {
		pts = append(pts, e.Head.Point)
		e = e.Next
		if e == f.Edge {
			break
		}
	}
	return pts
}

// Edges returns the face's half-edge ring starting at Edge.
func (f *Face) Edges() []*HalfEdge {
	var edges []*HalfEdge
	e := f.Edge
	for {
		edges = append(edges, e)
		e = e.Next
		if e == f.Edge {
			break
		}
	}
	return edges
}

// Distance returns the signed distance from p to the face plane; positive
// values lie outside the hull.
func (f *Face) Distance(p v3.Vec) float64 {
	return f.Normal.Dot(p) - f.Offset
}

// Hull is a closed convex polyhedron.
type Hull struct {
	Vertices []*Vertex
	Faces    []*Face
	// Tolerance is the plane distance below which points count as on the
	// hull. It grows to cover any point whose insertion would have broken
	// the topology.
	Tolerance float64
}

// Area returns the total surface area.
func (h *Hull) Area() float64 {
	sum := 0.0
	for _, f := range h.Faces {
		vs := f.Vertices()
		for i := 1; i+1 < len(vs); i++ {
			sum += vs[i].Sub(vs[0]).Cross(vs[i+1].Sub(vs[0])).Length() / 2
		}
	}
	return sum
}

// Volume returns the enclosed volume.
func (h *Hull) Volume() float64 {
	sum := 0.0
	for _, f := range h.Faces {
		vs := f.Vertices()
		for i := 1; i+1 < len(vs); i++ {
			sum += vs[0].Dot(vs[i].Cross(vs[i+1]))
		}
	}
	return sum / 6
}

// Contains reports whether p lies inside the hull or within Tolerance of
// its surface.
func (h *Hull) Contains(p v3.Vec) bool {
	for _, f := range h.Faces {
		if f.Distance(p) > h.Tolerance {
			return false
		}
	}
	return true
}

type edgeKey struct {
	tail, head int
}

type builder struct {
	points  []v3.Vec
	verts   []*Vertex
	faces   []*Face // every face created, dead ones included
	edges   map[edgeKey]*HalfEdge
	pending []*Face // faces that may hold outside points
	tol     float64
	slack   float64
}

// Build returns the convex hull of points. The input slice is not modified.
func Build(points []v3.Vec) (*Hull, error) {
	if len(points) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 points, got %d", ErrDegenerate, len(points))
	}
	for i, p := range points {
		if !geom.Finite(p) {
			return nil, fmt.Errorf("%w: point %d is %v", ErrNonFinite, i, p)
		}
	}

	b := &builder{
		points: points,
		verts:  make([]*Vertex, len(points)),
		edges:  make(map[edgeKey]*HalfEdge),
	}
	for i, p := range points {
		b.verts[i] = &Vertex{Index: i, Point: p}
	}
	b.tol = relTolerance * extent(points)

	seed, err := b.seed()
	if err != nil {
		return nil, err
	}
	rest := make([]*Vertex, 0, len(points)-len(seed))
	for i, v := range b.verts {
		if !seed[i] {
			rest = append(rest, v)
		}
	}
	b.assign(rest, b.faces)

	// Every step either retires at least one face for good or drops a
	// point, so the loop is bounded; the cap catches numerical cycling.
	limit := 8*len(points) + 64
	for step := 0; ; step++ {
		f := b.next()
		if f == nil {
			break
		}
		if step > limit {
			return nil, fmt.Errorf("%w: no convergence after %d steps", ErrTopology, step)
		}
		if err := b.add(f); err != nil {
			return nil, err
		}
	}
	return b.result()
}

// extent returns the largest axis-aligned span of the points, or 1 when
// all points coincide so that the tolerance stays positive.
func extent(points []v3.Vec) float64 {
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	d := hi.Sub(lo)
	e := math.Max(d.X, math.Max(d.Y, d.Z))
	if e == 0 {
		return 1
	}
	return e
}

// seed builds the initial tetrahedron from four well separated points and
// returns the set of indices it used.
func (b *builder) seed() (map[int]bool, error) {
	// Extreme points along each axis.
	var extremes []int
	for axis := 0; axis < 3; axis++ {
		lo, hi := 0, 0
		for i, p := range b.points {
			if geom.Component(p, axis) < geom.Component(b.points[lo], axis) {
				lo = i
			}
			if geom.Component(p, axis) > geom.Component(b.points[hi], axis) {
				hi = i
			}
		}
		extremes = append(extremes, lo, hi)
	}

	// The two extremes furthest apart span the first edge.
	i0, i1, best := 0, 0, -1.0
	for a := 0; a < len(extremes); a++ {
		for c := a + 1; c < len(extremes); c++ {
			d := b.points[extremes[a]].Sub(b.points[extremes[c]]).Length2()
			if d > best {
				i0, i1, best = extremes[a], extremes[c], d
			}
		}
	}
	if math.Sqrt(best) <= b.tol {
		return nil, fmt.Errorf("%w: all points coincide", ErrDegenerate)
	}
	p0, p1 := b.points[i0], b.points[i1]
	dir := p1.Sub(p0).Normalize()

	// The point furthest from that line completes the base triangle.
	i2, best := -1, b.tol
	for i, p := range b.points {
		if d := p.Sub(p0).Cross(dir).Length(); d > best {
			i2, best = i, d
		}
	}
	if i2 < 0 {
		return nil, fmt.Errorf("%w: points are collinear", ErrDegenerate)
	}
	p2 := b.points[i2]
	normal := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()

	// The point furthest from the base plane is the apex.
	i3, best := -1, b.tol
	for i, p := range b.points {
		if d := math.Abs(p.Sub(p0).Dot(normal)); d > best {
			i3, best = i, d
		}
	}
	if i3 < 0 {
		return nil, fmt.Errorf("%w: points are coplanar", ErrDegenerate)
	}

	v := []*Vertex{b.verts[i0], b.verts[i1], b.verts[i2], b.verts[i3]}
	centroid := v[0].Point.Add(v[1].Point).Add(v[2].Point).Add(v[3].Point).MulScalar(0.25)
	for _, tri := range [][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}} {
		a, c, d := v[tri[0]], v[tri[1]], v[tri[2]]
		if facing(a.Point, c.Point, d.Point, centroid) {
			c, d = d, c
		}
		if _, err := b.newFace(a, c, d); err != nil {
			return nil, err
		}
	}
	return map[int]bool{i0: true, i1: true, i2: true, i3: true}, nil
}

// facing reports whether the plane through a, b, c (counter-clockwise)
// has p on its positive side.
func facing(a, b, c, p v3.Vec) bool {
	n := b.Sub(a).Cross(c.Sub(a))
	return n.Dot(p.Sub(a)) > 0
}

// ring returns the three half-edges of a triangular face.
func ring(f *Face) [3]*HalfEdge {
	e := f.Edge
	return [3]*HalfEdge{e, e.Next, e.Next.Next}
}

// newFace creates the triangle a->b->c and links its edges to any existing
// twins.
func (b *builder) newFace(a, c, d *Vertex) (*Face, error) {
	f := &Face{}
	e0 := &HalfEdge{Head: c, Face: f}
	e1 := &HalfEdge{Head: d, Face: f}
	e2 := &HalfEdge{Head: a, Face: f}
	e0.Next, e1.Next, e2.Next = e1, e2, e0
	e0.Prev, e1.Prev, e2.Prev = e2, e0, e1
	f.Edge = e0

	n := c.Point.Sub(a.Point).Cross(d.Point.Sub(a.Point))
	if l := n.Length(); l > 0 {
		f.Normal = n.DivScalar(l)
	}
	centroid := a.Point.Add(c.Point).Add(d.Point).DivScalar(3)
	f.Offset = f.Normal.Dot(centroid)

	for _, e := range []*HalfEdge{e0, e1, e2} {
		key := edgeKey{e.Tail().Index, e.Head.Index}
		if _, dup := b.edges[key]; dup {
			return nil, fmt.Errorf("%w: edge %d->%d used twice", ErrTopology, key.tail, key.head)
		}
		b.edges[key] = e
		if twin, ok := b.edges[edgeKey{key.head, key.tail}]; ok {
			e.Twin = twin
			twin.Twin = e
		}
	}
	b.faces = append(b.faces, f)
	return f, nil
}

// assign moves each point onto the conflict list of the face in faces it
// lies furthest above. Points above none of them are inside the hull and
// are dropped.
func (b *builder) assign(points []*Vertex, faces []*Face) {
	for _, v := range points {
		var best *Face
		bestDist := b.tol
		for _, f := range faces {
			if d := f.Distance(v.Point); d > bestDist {
				best, bestDist = f, d
			}
		}
		if best == nil {
			continue
		}
		if len(best.outside) == 0 {
			b.pending = append(b.pending, best)
		}
		best.outside = append(best.outside, v)
		if best.far == nil || bestDist > best.farDist {
			best.far, best.farDist = v, bestDist
		}
	}
}

// next returns a live face with outside points, or nil when the hull is
// complete.
func (b *builder) next() *Face {
	for len(b.pending) > 0 {
		f := b.pending[len(b.pending)-1]
		b.pending = b.pending[:len(b.pending)-1]
		if !f.dead && len(f.outside) > 0 {
			return f
		}
	}
	return nil
}

// add inserts the furthest outside point of f into the hull.
func (b *builder) add(f *Face) error {
	eye := f.far

	visible := b.visibleFrom(f, eye.Point)
	horizon, ok := horizonOf(visible)
	seen := len(visible)
	if !ok {
		// Near-coplanar faces can leave islands of hidden faces inside the
		// visible region. Swallow them and try again.
		visible = b.absorbIslands(visible)
		horizon, ok = horizonOf(visible)
	}
	if !ok {
		for _, g := range visible {
			g.visible = false
		}
		b.drop(f, eye)
		return nil
	}

	var orphans []*Vertex
	for _, g := range visible {
		for _, v := range g.outside {
			if v != eye {
				orphans = append(orphans, v)
			}
		}
		g.outside, g.far = nil, nil
	}
	// Vertices strictly inside a swallowed island leave the hull without
	// having been seen by the eye, so they compete for the new faces too.
	if len(visible) > seen {
		rim := make(map[*Vertex]bool, len(horizon))
		for _, e := range horizon {
			rim[e.Head] = true
		}
		for _, g := range visible[seen:] {
			for _, e := range ring(g) {
				if v := e.Head; !rim[v] && v != eye {
					rim[v] = true
					orphans = append(orphans, v)
				}
			}
		}
	}

	// Retire the visible faces before creating the cone so their edge keys
	// can be reused.
	for _, g := range visible {
		g.dead = true
		for _, e := range ring(g) {
			delete(b.edges, edgeKey{e.Tail().Index, e.Head.Index})
			if e.Twin != nil && e.Twin.Twin == e {
				e.Twin.Twin = nil
			}
		}
	}

	cone := make([]*Face, 0, len(horizon))
	for _, e := range horizon {
		nf, err := b.newFace(e.Tail(), e.Head, eye)
		if err != nil {
			return err
		}
		cone = append(cone, nf)
	}
	b.assign(orphans, cone)
	return nil
}

// visibleFrom marks and returns the connected region of faces p lies above,
// starting from start.
func (b *builder) visibleFrom(start *Face, p v3.Vec) []*Face {
	start.visible = true
	visible := []*Face{start}
	for i := 0; i < len(visible); i++ {
		for _, e := range ring(visible[i]) {
			n := e.Twin.Face
			if !n.visible && n.Distance(p) > b.tol {
				n.visible = true
				visible = append(visible, n)
			}
		}
	}
	return visible
}

// horizonOf returns the edges separating visible from hidden faces. It
// reports false unless they form one simple cycle, the only shape a cone
// can be glued to.
func horizonOf(visible []*Face) ([]*HalfEdge, bool) {
	var horizon []*HalfEdge
	for _, f := range visible {
		for _, e := range ring(f) {
			if !e.Twin.Face.visible {
				horizon = append(horizon, e)
			}
		}
	}
	if len(horizon) < 3 {
		return nil, false
	}

	from := make(map[*Vertex]*HalfEdge, len(horizon))
	for _, e := range horizon {
		t := e.Tail()
		if _, pinched := from[t]; pinched {
			return nil, false
		}
		from[t] = e
	}
	e, n := horizon[0], 0
	for {
		e = from[e.Head]
		n++
		if e == nil || n > len(horizon) {
			return nil, false
		}
		if e == horizon[0] {
			break
		}
	}
	return horizon, n == len(horizon)
}

// absorbIslands marks visible every hidden face not connected to the
// largest hidden region and returns the enlarged visible set.
func (b *builder) absorbIslands(visible []*Face) []*Face {
	region := make(map[*Face]int)
	var sizes []int
	for _, f := range b.faces {
		if f.dead || f.visible {
			continue
		}
		if _, ok := region[f]; ok {
			continue
		}
		id := len(sizes)
		region[f] = id
		queue := []*Face{f}
		for i := 0; i < len(queue); i++ {
			for _, e := range ring(queue[i]) {
				n := e.Twin.Face
				if _, ok := region[n]; !ok && !n.visible {
					region[n] = id
					queue = append(queue, n)
				}
			}
		}
		sizes = append(sizes, len(queue))
	}
	if len(sizes) < 2 {
		return visible
	}

	keep := 0
	for id, n := range sizes {
		if n > sizes[keep] {
			keep = id
		}
	}
	for _, f := range b.faces {
		if id, ok := region[f]; ok && id != keep {
			f.visible = true
			visible = append(visible, f)
		}
	}
	return visible
}

// drop gives up on inserting v, which lies above f, and widens the hull
// tolerance to cover it.
func (b *builder) drop(f *Face, v *Vertex) {
	b.slack = math.Max(b.slack, f.Distance(v.Point))
	kept := f.outside[:0]
	f.far, f.farDist = nil, 0
	for _, u := range f.outside {
		if u == v {
			continue
		}
		kept = append(kept, u)
		if d := f.Distance(u.Point); f.far == nil || d > f.farDist {
			f.far, f.farDist = u, d
		}
	}
	f.outside = kept
	if len(kept) > 0 {
		b.pending = append(b.pending, f)
	}
}

func (b *builder) result() (*Hull, error) {
	h := &Hull{Tolerance: math.Max(b.tol, b.slack)}
	seen := make(map[int]bool)
	for _, f := range b.faces {
		if f.dead {
			continue
		}
		h.Faces = append(h.Faces, f)
		for _, e := range ring(f) {
			if e.Twin == nil {
				return nil, fmt.Errorf("%w: open edge %d->%d", ErrTopology, e.Tail().Index, e.Head.Index)
			}
			if !seen[e.Head.Index] {
				seen[e.Head.Index] = true
				h.Vertices = append(h.Vertices, e.Head)
			}
		}
	}
	return h, nil
}
