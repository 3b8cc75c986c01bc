// Package psapitest provides an in-memory fake of the Perfect Storm REST
// API, grounded on the teacher's internal/testing/mock package — a
// dedicated test-double package alongside the code it doubles for — but
// built on net/http/httptest rather than an MCP server, since the
// protocol here is plain REST/JSON (spec.md §6), not MCP.
package psapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/google/uuid"

	"github.com/composureai/perfectstorm/internal/psapi"
)

// Server is an in-memory, single-process double of the API server's
// groups/apps/recipes/triggers collections. It does not evaluate query
// predicates (spec.md §4.1 says the server does, and we only need enough
// behaviour to exercise the client and reconcilers); Members() applies a
// simple include/exclude-based membership model instead, which is all
// spec.md's operations require.
type Server struct {
	mu sync.Mutex

	groups   map[string]*psapi.Group
	apps     map[string]*psapi.Application
	recipes  map[string]*psapi.Recipe
	triggers map[string]*psapi.Trigger

	// members tracks the explicit membership of each group's identifier
	// to a set of node CloudIDs, independent of the Query field.
	members map[string]map[string]bool

	// nodes is the full node directory triggers/tests seed, used to
	// resolve membership into Node values for Members().
	nodes map[string]psapi.Node

	triggerHandler TriggerHandler

	httpServer *httptest.Server
}

// New creates and starts a Server, returning it ready to serve at
// s.URL().
func New() *Server {
	s := &Server{
		groups:   make(map[string]*psapi.Group),
		apps:     make(map[string]*psapi.Application),
		recipes:  make(map[string]*psapi.Recipe),
		triggers: make(map[string]*psapi.Trigger),
		members:  make(map[string]map[string]bool),
		nodes:    make(map[string]psapi.Node),
	}
	mux := http.NewServeMux()
	s.registerGroups(mux)
	s.registerApps(mux)
	s.registerRecipes(mux)
	s.registerTriggers(mux)
	s.httpServer = httptest.NewServer(mux)
	return s
}

// URL returns the base URL the fake server is listening on.
func (s *Server) URL() string { return s.httpServer.URL }

// Close shuts down the underlying httptest.Server.
func (s *Server) Close() { s.httpServer.Close() }

// SeedNode registers a node in the fake directory so Members() can return
// it, and makes it addressable by CloudID for membership mutation.
func (s *Server) SeedNode(n psapi.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.CloudID] = n
}

// SetNodeStatus flips a seeded node's status, e.g. to simulate a
// container dying mid-test (spec.md §8 scenario 4).
func (s *Server) SetNodeStatus(cloudID string, status psapi.NodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[cloudID]; ok {
		n.Status = status
		s.nodes[cloudID] = n
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func newUUID() string { return uuid.NewString() }
