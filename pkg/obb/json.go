package obb

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/chazu/boxfit/pkg/geom"
	"github.com/xeipuuv/gojsonschema"
)

// TypeTag is the discriminant written in the "type" field of a serialized
// OBB.
const TypeTag = "OBB"

// document is the serialized form. Rotation is column-major.
type document struct {
	Type      string    `json:"type"`
	Center    []float64 `json:"center"`
	HalfSizes []float64 `json:"halfSizes"`
	Rotation  []float64 `json:"rotation"`
}

const schemaSource = `{
	"type": "object",
	"required": ["type", "center", "halfSizes", "rotation"],
	"properties": {
		"type": {"type": "string", "enum": ["OBB"]},
		"center": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
		"halfSizes": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
		"rotation": {"type": "array", "items": {"type": "number"}, "minItems": 9, "maxItems": 9}
	}
}`

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaSource))
})

// ToJSON returns the serialized form of b.
func (b OBB) ToJSON() ([]byte, error) {
	return json.Marshal(document{
		Type:      TypeTag,
		Center:    geom.VecToSlice(b.Center),
		HalfSizes: geom.VecToSlice(b.HalfSizes),
		Rotation:  append([]float64(nil), b.Rotation[:]...),
	})
}

// FromJSON replaces b with the OBB encoded in data. The document is checked
// against the schema and the OBB invariants before any field is written.
func (b *OBB) FromJSON(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return &SerializationError{Reason: "schema unavailable", Err: err}
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &SerializationError{Reason: "malformed JSON", Err: err}
	}
	if !result.Valid() {
		errs := result.Errors()
		descs := make([]string, 0, len(errs))
		for _, e := range errs {
			descs = append(descs, e.String())
		}
		return &SerializationError{Field: errs[0].Field(), Reason: strings.Join(descs, "; ")}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return &SerializationError{Reason: "malformed JSON", Err: err}
	}

	center := geom.VecFromSlice(doc.Center)
	halfSizes := geom.VecFromSlice(doc.HalfSizes)
	rotation := geom.Mat3FromSlice(doc.Rotation)
	if err := validate("decode", center, halfSizes, rotation); err != nil {
		return &SerializationError{Reason: "invalid box", Err: err}
	}

	b.Center = center
	b.HalfSizes = halfSizes
	b.Rotation = rotation
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b OBB) MarshalJSON() ([]byte, error) {
	return b.ToJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *OBB) UnmarshalJSON(data []byte) error {
	return b.FromJSON(data)
}
