package psapitest

import (
	"net/http"

	"github.com/composureai/perfectstorm/internal/psapi"
)

func (s *Server) registerGroups(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/groups", s.handleListGroups)
	mux.HandleFunc("POST /v1/groups", s.handleCreateGroup)
	mux.HandleFunc("GET /v1/groups/{id}", s.handleGetGroup)
	mux.HandleFunc("PUT /v1/groups/{id}", s.handleUpdateGroup)
	mux.HandleFunc("DELETE /v1/groups/{id}", s.handleDeleteGroup)
	mux.HandleFunc("GET /v1/groups/{id}/members/", s.handleGroupMembers)
	mux.HandleFunc("POST /v1/groups/{id}/members/", s.handleMutateGroupMembers)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]psapi.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, *g)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var g psapi.Group
	if err := decodeBody(r, &g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.Identifier]; exists {
		writeError(w, http.StatusConflict, "group already exists")
		return
	}
	s.groups[g.Identifier] = &g
	if s.members[g.Identifier] == nil {
		s.members[g.Identifier] = make(map[string]bool)
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, *g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var g psapi.Group
	if err := decodeBody(r, &g); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	s.groups[id] = &g
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
	delete(s.members, id)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()

	memberSet := s.members[id]
	out := make([]psapi.Node, 0, len(memberSet))
	for cloudID := range memberSet {
		if n, ok := s.nodes[cloudID]; ok {
			out = append(out, n)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMutateGroupMembers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Include []string `json:"include"`
		Exclude []string `json:"exclude"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[id] == nil {
		s.members[id] = make(map[string]bool)
	}
	for _, cloudID := range body.Include {
		s.members[id][cloudID] = true
	}
	for _, cloudID := range body.Exclude {
		delete(s.members[id], cloudID)
	}
	writeJSON(w, http.StatusOK, nil)
}
