package scene

import (
	"encoding/json"
	"fmt"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/chazu/boxfit/pkg/obb"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"
)

type entityDoc struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Bounds obb.OBB     `json:"bounds"`
	Sphere geom.Sphere `json:"sphere"`
	Points [][]float64 `json:"points,omitempty"`
}

type snapshot struct {
	Entities []entityDoc `json:"entities"`
}

// MarshalJSON encodes every entity, ordered by name.
func (s *Scene) MarshalJSON() ([]byte, error) {
	es := s.Entities()
	snap := snapshot{Entities: make([]entityDoc, 0, len(es))}
	for _, e := range es {
		doc := entityDoc{ID: e.ID, Name: e.Name, Bounds: e.Bounds, Sphere: e.Sphere}
		for _, p := range e.Points {
			doc.Points = append(doc.Points, geom.VecToSlice(p))
		}
		snap.Entities = append(snap.Entities, doc)
	}
	return json.Marshal(snap)
}

// UnmarshalJSON replaces the scene contents with a snapshot. Stored boxes
// are used as they are; nothing is refitted. The scene is left unchanged
// when the snapshot is invalid.
func (s *Scene) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("scene: decode snapshot: %w", err)
	}

	next := &Scene{fitOpts: s.fitOpts}
	next.reset()
	for i, doc := range snap.Entities {
		if doc.Name == "" {
			return fmt.Errorf("scene: decode entity %d: %w", i, ErrEmptyName)
		}
		if _, ok := next.entities[doc.Name]; ok {
			return fmt.Errorf("scene: decode entity %d: %w: %q", i, ErrDuplicate, doc.Name)
		}
		if !doc.Bounds.Rotation.IsRotation(obb.RotationTolerance) {
			return fmt.Errorf("scene: decode entity %q: missing or invalid bounds", doc.Name)
		}
		e := &Entity{ID: doc.ID, Name: doc.Name, Bounds: doc.Bounds, Sphere: doc.Sphere}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		for j, p := range doc.Points {
			if len(p) != 3 {
				return fmt.Errorf("scene: decode entity %q: point %d has %d coordinates", doc.Name, j, len(p))
			}
			e.Points = append(e.Points, v3.Vec{X: p[0], Y: p[1], Z: p[2]})
		}
		if err := next.insert(e); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = next.entities
	s.tree = next.tree
	return nil
}
