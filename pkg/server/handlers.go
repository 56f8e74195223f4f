package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chazu/boxfit/pkg/engine"
	"github.com/chazu/boxfit/pkg/geom"
	"github.com/chazu/boxfit/pkg/obb"
	"github.com/chazu/boxfit/pkg/scene"
	"github.com/chazu/boxfit/pkg/store"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/gorilla/mux"
)

// vec3 is a point encoded as a three-element JSON array.
type vec3 v3.Vec

func (v vec3) MarshalJSON() ([]byte, error) {
	return json.Marshal(geom.VecToSlice(v3.Vec(v)))
}

func (v *vec3) UnmarshalJSON(data []byte) error {
	var a []float64
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a) != 3 {
		return fmt.Errorf("point needs 3 coordinates, got %d", len(a))
	}
	p := geom.VecFromSlice(a)
	if !geom.Finite(p) {
		return fmt.Errorf("point %v is not finite", a)
	}
	*v = vec3(p)
	return nil
}

type fitRequest struct {
	Points []vec3 `json:"points"`
}

type pointRequest struct {
	OBB   *obb.OBB `json:"obb"`
	Point *vec3    `json:"point"`
}

type sphereRequest struct {
	OBB    *obb.OBB     `json:"obb"`
	Sphere *geom.Sphere `json:"sphere"`
}

type sceneQuery struct {
	Point  *vec3        `json:"point"`
	Sphere *geom.Sphere `json:"sphere"`
}

type entitiesResponse struct {
	Entities []string `json:"entities"`
}

type evalErrorsResponse struct {
	Error  string             `json:"error"`
	Errors []engine.EvalError `json:"errors"`
}

// badRequest marks client errors that carry no typed cause.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return &badRequest{err: fmt.Errorf(format, args...)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	var req fitRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	pts := make([]v3.Vec, len(req.Points))
	for i, p := range req.Points {
		pts[i] = v3.Vec(p)
	}

	b := obb.New()
	if err := b.FromPoints(pts, s.fitOpts...); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleClamp(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodePointRequest(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	p := req.OBB.ClampPoint(v3.Vec(*req.Point))
	writeJSON(w, http.StatusOK, map[string]vec3{"point": vec3(p)})
}

func (s *Server) handleContains(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodePointRequest(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"contains": req.OBB.ContainsPoint(v3.Vec(*req.Point))})
}

func (s *Server) handleIntersects(w http.ResponseWriter, r *http.Request) {
	var req sphereRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.OBB == nil || req.Sphere == nil {
		s.writeError(w, invalid("obb and sphere are required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"intersects": req.OBB.IntersectsSphere(*req.Sphere)})
}

func decodePointRequest(w http.ResponseWriter, r *http.Request, req *pointRequest) error {
	if err := decode(w, r, req); err != nil {
		return err
	}
	if req.OBB == nil || req.Point == nil {
		return invalid("obb and point are required")
	}
	return nil
}

// handlePutScene evaluates the script in the body and stores the resulting
// scene snapshot.
func (s *Server) handlePutScene(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	key, err := snapshotKey(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	src, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, invalid("read script: %v", err))
		return
	}

	sc, evalErrs, err := s.sceneEngine(name).EvaluateContext(r.Context(), string(src))
	if err != nil {
		s.writeError(w, fmt.Errorf("evaluate scene %s: %w", name, err))
		return
	}
	if len(evalErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, evalErrorsResponse{
			Error:  fmt.Sprintf("scene %s: %d evaluation errors", name, len(evalErrs)),
			Errors: evalErrs,
		})
		return
	}

	data, err := json.Marshal(sc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.Save(r.Context(), key, data); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("scene stored", "scene", name, "entities", sc.Len(), "bytes", len(data))
	writeJSON(w, http.StatusCreated, entitiesResponse{Entities: entityNames(sc.Entities())})
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	data, err := s.loadSnapshot(r, mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleQueryScene(w http.ResponseWriter, r *http.Request) {
	var q sceneQuery
	if err := decode(w, r, &q); err != nil {
		s.writeError(w, err)
		return
	}
	if (q.Point == nil) == (q.Sphere == nil) {
		s.writeError(w, invalid("exactly one of point or sphere is required"))
		return
	}

	data, err := s.loadSnapshot(r, mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	sc := scene.New()
	if err := json.Unmarshal(data, sc); err != nil {
		s.writeError(w, err)
		return
	}

	var hits []*scene.Entity
	if q.Point != nil {
		hits = sc.Containing(v3.Vec(*q.Point))
	} else {
		hits = sc.IntersectingSphere(*q.Sphere)
	}
	writeJSON(w, http.StatusOK, entitiesResponse{Entities: entityNames(hits)})
}

func (s *Server) loadSnapshot(r *http.Request, name string) ([]byte, error) {
	key, err := snapshotKey(name)
	if err != nil {
		return nil, err
	}
	return s.store.Load(r.Context(), key)
}

func snapshotKey(name string) (string, error) {
	key := name + ".json"
	if err := store.ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

func entityNames(es []*scene.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &badRequest{err: fmt.Errorf("decode request: %w", err)}
	}
	return nil
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var (
		inv *obb.InvalidInputError
		ser *obb.SerializationError
		num *obb.NumericError
		bad *badRequest
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrTimeout):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &inv), errors.As(err, &ser), errors.As(err, &num), errors.As(err, &bad),
		errors.Is(err, store.ErrInvalidKey):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
