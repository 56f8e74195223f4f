package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/chazu/boxfit/pkg/kernel"
	"github.com/chazu/boxfit/pkg/scene"
	"github.com/chazu/boxfit/pkg/tessellate"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites scene script source before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: half-sizes -> half_sizes
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line comments: ; and ;; become //, the zygomys comment syntax.
//
// All transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// ; line comments.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point or direction.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSphere wraps a query sphere.
type sexpSphere struct {
	sphere geom.Sphere
}

func (s *sexpSphere) SexpString(ps *zygo.PrintState) string {
	c := s.sphere.Center
	return fmt.Sprintf("(sphere (vec3 %g %g %g) %g)", c.X, c.Y, c.Z, s.sphere.Radius)
}
func (s *sexpSphere) Type() *zygo.RegisteredType { return nil }

// sexpShape wraps a solid description built by box, ball, cylinder and the
// boolean builtins, consumed by solid.
type sexpShape struct {
	node *tessellate.Node
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(shape %s)", s.node.Kind)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpEntity is returned by entity and solid.
type sexpEntity struct {
	entity *scene.Entity
}

func (e *sexpEntity) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(entity %q)", e.entity.Name)
}
func (e *sexpEntity) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Trailing keyword with no value.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toName accepts an entity name as a string or an entity value.
func toName(s zygo.Sexp) (string, error) {
	if e, ok := s.(*sexpEntity); ok {
		return e.entity.Name, nil
	}
	name, err := toString(s)
	if err != nil {
		return "", fmt.Errorf("expected entity name: %w", err)
	}
	return name, nil
}

// toVec3 extracts a v3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toSphere(s zygo.Sexp) (geom.Sphere, error) {
	if sp, ok := s.(*sexpSphere); ok {
		return sp.sphere, nil
	}
	return geom.Sphere{}, fmt.Errorf("expected sphere, got %T (%s)", s, s.SexpString(nil))
}

func toShape(s zygo.Sexp) (*tessellate.Node, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh.node, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toPoints converts a list of vec3 values.
func toPoints(s zygo.Sexp) ([]v3.Vec, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	pts := make([]v3.Vec, 0, len(items))
	for i, item := range items {
		p, err := toVec3(item)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// applyPlacement reads :at and :rotate into n.
func applyPlacement(fn string, pa kwArgs, n *tessellate.Node) error {
	if v, ok := pa.kw["at"]; ok {
		at, err := toVec3(v)
		if err != nil {
			return fmt.Errorf("%s: at: %w", fn, err)
		}
		n.At(at)
	}
	if v, ok := pa.kw["rotate"]; ok {
		rot, err := toVec3(v)
		if err != nil {
			return fmt.Errorf("%s: rotate: %w", fn, err)
		}
		n.Rotated(rot)
	}
	return nil
}

func sexpBool(b bool) zygo.Sexp { return &zygo.SexpBool{Val: b} }

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder is the state the builtins of one evaluation share.
type builder struct {
	scene  *scene.Scene
	kernel kernel.Kernel
}

var errNoKernel = errors.New("no geometry kernel configured")

// entity looks up a named entity.
func (b *builder) entity(fn string, s zygo.Sexp) (*scene.Entity, error) {
	name, err := toName(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	e, ok := b.scene.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", fn, scene.ErrUnknownEntity, name)
	}
	return e, nil
}

// registerBuiltins installs the scene builtins into a zygomys environment.
// Source code must be preprocessed with preprocessSource() before
// evaluation so that :keyword tokens are converted to recognizable string
// literals and kebab-case names match the underscore registrations.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere (vec3 0 0 0) 2.5)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("sphere requires a center and a radius")
		}
		center, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: center: %w", err)
		}
		r, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		if !(r >= 0) {
			return zygo.SexpNull, fmt.Errorf("sphere: radius %g must be non-negative", r)
		}
		return &sexpSphere{sphere: geom.Sphere{Center: center, Radius: r}}, nil
	})

	// -----------------------------------------------------------------------
	// (entity "crate" (list (vec3 0 0 0) (vec3 1 0 0) ...))
	// -----------------------------------------------------------------------
	env.AddFunction("entity", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("entity requires a name and a list of points")
		}
		entName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("entity: name: %w", err)
		}
		pts, err := toPoints(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("entity: points: %w", err)
		}
		e, err := b.scene.Add(entName, pts)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("entity: %w", err)
		}
		return &sexpEntity{entity: e}, nil
	})

	// -----------------------------------------------------------------------
	// (refit "crate" (list (vec3 ..) ..))
	// -----------------------------------------------------------------------
	env.AddFunction("refit", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("refit requires a name and a list of points")
		}
		entName, err := toName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("refit: %w", err)
		}
		pts, err := toPoints(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("refit: points: %w", err)
		}
		e, err := b.scene.Refit(entName, pts)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("refit: %w", err)
		}
		return &sexpEntity{entity: e}, nil
	})

	// -----------------------------------------------------------------------
	// (remove "crate")
	// -----------------------------------------------------------------------
	env.AddFunction("remove", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("remove requires a name")
		}
		entName, err := toName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("remove: %w", err)
		}
		if err := b.scene.Remove(entName); err != nil {
			return zygo.SexpNull, fmt.Errorf("remove: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// Shapes: (box (vec3 w h d) :at .. :rotate ..), (ball r ..),
	// (cylinder h r ..), (unite a b ..), (subtract a b ..), (intersect a b ..)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("box requires a size vec3")
		}
		size, err := toVec3(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		n := tessellate.Box(size)
		if err := applyPlacement("box", pa, n); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpShape{node: n}, nil
	})

	env.AddFunction("ball", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("ball requires a radius")
		}
		r, err := toFloat64(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ball: radius: %w", err)
		}
		n := tessellate.Sphere(r)
		if err := applyPlacement("ball", pa, n); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpShape{node: n}, nil
	})

	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("cylinder requires a height and a radius")
		}
		h, err := toFloat64(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		r, err := toFloat64(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		n := tessellate.Cylinder(h, r)
		if err := applyPlacement("cylinder", pa, n); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpShape{node: n}, nil
	})

	booleans := map[string]func(...*tessellate.Node) *tessellate.Node{
		"unite":     tessellate.Union,
		"subtract":  tessellate.Difference,
		"intersect": tessellate.Intersection,
	}
	for fn, combine := range booleans {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 shapes", fn)
			}
			children := make([]*tessellate.Node, 0, len(pa.positional))
			for i, arg := range pa.positional {
				n, err := toShape(arg)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", fn, i, err)
				}
				children = append(children, n)
			}
			n := combine(children...)
			if err := applyPlacement(fn, pa, n); err != nil {
				return zygo.SexpNull, err
			}
			return &sexpShape{node: n}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (solid "crate" :box (vec3 2 1 1) :at (vec3 ..) :rotate (vec3 ..))
	// (solid "ball" :sphere 1.5)
	// (solid "bracket" (subtract (box ..) (cylinder ..)))
	// -----------------------------------------------------------------------
	env.AddFunction("solid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.kernel == nil {
			return zygo.SexpNull, fmt.Errorf("solid: %w", errNoKernel)
		}
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("solid requires a name")
		}
		entName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid: name: %w", err)
		}

		var n *tessellate.Node
		switch {
		case len(pa.positional) == 2:
			n, err = toShape(pa.positional[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("solid: %w", err)
			}
		case pa.kw["box"] != nil:
			size, err := toVec3(pa.kw["box"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("solid: box: %w", err)
			}
			n = tessellate.Box(size)
		case pa.kw["sphere"] != nil:
			r, err := toFloat64(pa.kw["sphere"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("solid: sphere: %w", err)
			}
			n = tessellate.Sphere(r)
		default:
			return zygo.SexpNull, fmt.Errorf("solid %q: expected a shape, :box or :sphere", entName)
		}
		if pa.kw["at"] != nil || pa.kw["rotate"] != nil {
			// Placement wraps the shape so its own placement applies first.
			n = tessellate.Union(n)
			if err := applyPlacement("solid", pa, n); err != nil {
				return zygo.SexpNull, err
			}
		}

		s, err := tessellate.Solid(b.kernel, n)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid %q: %w", entName, err)
		}
		e, err := b.scene.AddSolid(entName, b.kernel, s)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("solid: %w", err)
		}
		return &sexpEntity{entity: e}, nil
	})

	// -----------------------------------------------------------------------
	// Queries: (contains? "crate" p), (intersects? "crate" sphere),
	// (clamp "crate" p), (distance "crate" p), (half-sizes "crate"),
	// (center "crate"), (entities-at p)
	// -----------------------------------------------------------------------
	env.AddFunction("contains?", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("contains? requires an entity and a point")
		}
		e, err := b.entity("contains?", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		p, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("contains?: point: %w", err)
		}
		return sexpBool(e.Bounds.ContainsPoint(p)), nil
	})

	env.AddFunction("intersects?", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("intersects? requires an entity and a sphere")
		}
		e, err := b.entity("intersects?", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		sp, err := toSphere(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("intersects?: %w", err)
		}
		return sexpBool(e.Bounds.IntersectsSphere(sp)), nil
	})

	env.AddFunction("clamp", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("clamp requires an entity and a point")
		}
		e, err := b.entity("clamp", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		p, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("clamp: point: %w", err)
		}
		return &sexpVec3{vec: e.Bounds.ClampPoint(p)}, nil
	})

	env.AddFunction("distance", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("distance requires an entity and a point")
		}
		e, err := b.entity("distance", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		p, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("distance: point: %w", err)
		}
		return &zygo.SexpFloat{Val: e.Bounds.DistanceToPoint(p)}, nil
	})

	env.AddFunction("half_sizes", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("half-sizes requires an entity")
		}
		e, err := b.entity("half-sizes", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: e.Bounds.HalfSizes}, nil
	})

	env.AddFunction("center", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("center requires an entity")
		}
		e, err := b.entity("center", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpVec3{vec: e.Bounds.Center}, nil
	})

	env.AddFunction("entities_at", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("entities-at requires a point")
		}
		p, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("entities-at: %w", err)
		}
		var names []zygo.Sexp
		for _, e := range b.scene.Containing(p) {
			names = append(names, &zygo.SexpStr{S: e.Name})
		}
		return zygo.MakeList(names), nil
	})
}
