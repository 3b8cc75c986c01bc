package psapitest

import (
	"net/http"

	"github.com/composureai/perfectstorm/internal/psapi"
)

func (s *Server) registerRecipes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/recipes", s.handleListRecipes)
	mux.HandleFunc("POST /v1/recipes", s.handleCreateRecipe)
	mux.HandleFunc("GET /v1/recipes/{name}", s.handleGetRecipe)
	mux.HandleFunc("PUT /v1/recipes/{name}", s.handleUpdateRecipe)
	mux.HandleFunc("DELETE /v1/recipes/{name}", s.handleDeleteRecipe)
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]psapi.Recipe, 0, len(s.recipes))
	for _, rc := range s.recipes {
		out = append(out, *rc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var rc psapi.Recipe
	if err := decodeBody(r, &rc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recipes[rc.Name]; exists {
		writeError(w, http.StatusConflict, "recipe already exists")
		return
	}
	s.recipes[rc.Name] = &rc
	writeJSON(w, http.StatusCreated, rc)
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.recipes[name]
	if !ok {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}
	writeJSON(w, http.StatusOK, *rc)
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var rc psapi.Recipe
	if err := decodeBody(r, &rc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recipes[name]; !ok {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}
	s.recipes[name] = &rc
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recipes, name)
	writeJSON(w, http.StatusNoContent, nil)
}
