// Package gridedge exposes the charging-coordination environment over HTTP
// so external agents can drive it step by step.
package gridedge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/kilianp07/evgrid/core/gridedge"
	"github.com/kilianp07/evgrid/core/policy"
)

// Handler serves the environment. A single mutex serialises decide-then-step
// sequences so policy steps see the observation they act on.
type Handler struct {
	mu     sync.Mutex
	env    *gridedge.Env
	policy policy.Policy
}

// NewHandler wraps env. pol may be nil, in which case policy-step answers
// 404.
func NewHandler(env *gridedge.Env, pol policy.Policy) *Handler {
	return &Handler{env: env, policy: pol}
}

// Register mounts the routes on r.
func (h *Handler) Register(r *mux.Router) {
	s := r.PathPrefix("/api/gridedge").Subrouter()
	s.HandleFunc("/reset", h.reset).Methods(http.MethodPost)
	s.HandleFunc("/step", h.step).Methods(http.MethodPost)
	s.HandleFunc("/state", h.state).Methods(http.MethodGet)
	s.HandleFunc("/policy-step", h.policyStep).Methods(http.MethodPost)
}

// ResetRequest is the optional body of POST /reset.
type ResetRequest struct {
	Seed *uint64 `json:"seed"`
}

// ResetResponse is returned by POST /reset.
type ResetResponse struct {
	RunID       string               `json:"run_id"`
	Observation gridedge.Observation `json:"observation"`
}

// StepRequest is the body of POST /step.
type StepRequest struct {
	Action []float64 `json:"action"`
}

// PolicyStepResponse is returned by POST /policy-step.
type PolicyStepResponse struct {
	Policy string              `json:"policy"`
	Result gridedge.StepResult `json:"result"`
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := decodeOptional(r, &req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	obs := h.env.Reset(req.Seed)
	id := h.env.RunID()
	h.mu.Unlock()
	writeJSON(w, ResetResponse{RunID: id, Observation: obs})
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	res, err := h.env.Step(req.Action)
	h.mu.Unlock()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gridedge.ErrActionSize) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.env.Snapshot())
}

func (h *Handler) policyStep(w http.ResponseWriter, _ *http.Request) {
	if h.policy == nil {
		http.Error(w, "no policy configured", http.StatusNotFound)
		return
	}
	h.mu.Lock()
	rates, err := h.policy.Decide(h.env.Observation(), h.env.Config().EVs)
	if err != nil {
		h.mu.Unlock()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	res, err := h.env.Step(rates)
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, PolicyStepResponse{Policy: h.policy.Name(), Result: res})
}

func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
