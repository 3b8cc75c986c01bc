package psapitest

import (
	"net/http"

	"github.com/composureai/perfectstorm/internal/psapi"
)

func (s *Server) registerApps(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/apps", s.handleListApps)
	mux.HandleFunc("POST /v1/apps", s.handleCreateApp)
	mux.HandleFunc("GET /v1/apps/{name}", s.handleGetApp)
	mux.HandleFunc("PUT /v1/apps/{name}", s.handleUpdateApp)
	mux.HandleFunc("DELETE /v1/apps/{name}", s.handleDeleteApp)
}

// SeedApp registers an application directly, bypassing HTTP, for test
// setup convenience.
func (s *Server) SeedApp(a psapi.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[a.Name] = &a
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]psapi.Application, 0, len(s.apps))
	for _, a := range s.apps {
		out = append(out, *a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var a psapi.Application
	if err := decodeBody(r, &a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[a.Name]; exists {
		writeError(w, http.StatusConflict, "app already exists")
		return
	}
	s.apps[a.Name] = &a
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[name]
	if !ok {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, *a)
}

func (s *Server) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var a psapi.Application
	if err := decodeBody(r, &a); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[name]; !ok {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	s.apps[name] = &a
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, name)
	writeJSON(w, http.StatusNoContent, nil)
}
