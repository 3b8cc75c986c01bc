package psapi

import "encoding/json"

// RawQuery wraps a query already rendered to its JSON map shape, typically
// one decoded back from the API server rather than constructed locally.
type RawQuery map[string]interface{}

func (r RawQuery) toMap() map[string]interface{} { return map[string]interface{}(r) }

type groupWire struct {
	Identifier string                 `json:"identifier"`
	Query      map[string]interface{} `json:"query,omitempty"`
	Include    []string               `json:"include,omitempty"`
	Exclude    []string               `json:"exclude,omitempty"`
	Services   []Service              `json:"services,omitempty"`
}

// MarshalJSON renders the Group's Query field using its typed expression
// tree rather than Go's default struct marshaling, which cannot handle an
// interface-typed field on its own.
func (g Group) MarshalJSON() ([]byte, error) {
	w := groupWire{
		Identifier: g.Identifier,
		Include:    g.Include,
		Exclude:    g.Exclude,
		Services:   g.Services,
	}
	if g.Query != nil {
		w.Query = g.Query.toMap()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a Group from the API server, wrapping any query
// clause as a RawQuery since the concrete variant used to build it is not
// recoverable from its serialised form.
func (g *Group) UnmarshalJSON(data []byte) error {
	var w groupWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	g.Identifier = w.Identifier
	g.Include = w.Include
	g.Exclude = w.Exclude
	g.Services = w.Services
	if w.Query != nil {
		g.Query = RawQuery(w.Query)
	}
	return nil
}
