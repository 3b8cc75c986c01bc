package psapitest

import (
	"net/http"

	"github.com/composureai/perfectstorm/internal/psapi"
)

// TriggerHandler simulates a Trigger Handler Host (spec.md §4.8): given a
// newly created trigger, it decides how the trigger resolves. Tests set
// this to fake recipe execution without a real Docker handler.
type TriggerHandler func(t psapi.Trigger) psapi.Trigger

func (s *Server) registerTriggers(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/triggers", s.handleListTriggers)
	mux.HandleFunc("POST /v1/triggers", s.handleCreateTrigger)
	mux.HandleFunc("GET /v1/triggers/{uuid}", s.handleGetTrigger)
	mux.HandleFunc("DELETE /v1/triggers/{uuid}", s.handleDeleteTrigger)
}

// SetTriggerHandler installs a TriggerHandler invoked synchronously on
// every trigger creation. Without one, triggers stay pending until a test
// calls CompleteTrigger/FailTrigger explicitly.
func (s *Server) SetTriggerHandler(h TriggerHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggerHandler = h
}

// CompleteTrigger marks a trigger done with the given result.
func (s *Server) CompleteTrigger(uuid string, result map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.triggers[uuid]; ok {
		t.Status = psapi.TriggerDone
		t.Result = result
	}
}

// FailTrigger marks a trigger errored with the given reason.
func (s *Server) FailTrigger(uuid string, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.triggers[uuid]; ok {
		t.Status = psapi.TriggerError
		t.Result = map[string]interface{}{"reason": reason}
	}
}

// Triggers returns a snapshot of every trigger currently known to the
// server, for test assertions.
func (s *Server) Triggers() []psapi.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]psapi.Trigger, 0, len(s.triggers))
	for _, t := range s.triggers {
		out = append(out, *t)
	}
	return out
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Triggers())
}

func (s *Server) handleCreateTrigger(w http.ResponseWriter, r *http.Request) {
	var t psapi.Trigger
	if err := decodeBody(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t.UUID = newUUID()
	t.Status = psapi.TriggerPending

	s.mu.Lock()
	handler := s.triggerHandler
	s.triggers[t.UUID] = &t
	s.mu.Unlock()

	if handler != nil {
		resolved := handler(t)
		s.mu.Lock()
		s.triggers[t.UUID] = &resolved
		s.mu.Unlock()
	}

	s.mu.Lock()
	out := *s.triggers[t.UUID]
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[uuid]
	if !ok {
		writeError(w, http.StatusNotFound, "trigger not found")
		return
	}
	writeJSON(w, http.StatusOK, *t)
}

func (s *Server) handleDeleteTrigger(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.triggers, uuid)
	writeJSON(w, http.StatusNoContent, nil)
}
