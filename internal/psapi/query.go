package psapi

import "encoding/json"

// Query is a MongoDB-style predicate evaluated server-side (spec.md §4.1).
// Rather than threading around bare map[string]interface{} values, the
// client models it as a small tagged-variant expression tree per the
// Design Notes in spec.md §9: no behaviour is gained by evaluating these
// locally, but a typed tree catches malformed queries at compile time and
// keeps the JSON shape in one place.
type Query interface {
	// toMap renders the query into the verbatim JSON shape the API server
	// expects, e.g. {"status": "UP"} or {"$and": [...]}.
	toMap() map[string]interface{}
}

// marshalQuery encodes any Query by rendering its map form. A nil Query
// marshals to `null`.
func marshalQuery(q Query) ([]byte, error) {
	if q == nil {
		return []byte("null"), nil
	}
	return json.Marshal(q.toMap())
}

// Eq matches documents where Field equals Value exactly.
type Eq struct {
	Field string
	Value interface{}
}

func (e Eq) toMap() map[string]interface{} { return map[string]interface{}{e.Field: e.Value} }

// In matches documents where Field's value is one of Values ($in).
type In struct {
	Field  string
	Values []interface{}
}

func (i In) toMap() map[string]interface{} {
	return map[string]interface{}{i.Field: map[string]interface{}{"$in": i.Values}}
}

// Nin matches documents where Field's value is none of Values ($nin).
type Nin struct {
	Field  string
	Values []interface{}
}

func (n Nin) toMap() map[string]interface{} {
	return map[string]interface{}{n.Field: map[string]interface{}{"$nin": n.Values}}
}

// Regex matches documents where Field matches Pattern ($regex).
type Regex struct {
	Field   string
	Pattern string
}

func (r Regex) toMap() map[string]interface{} {
	return map[string]interface{}{r.Field: map[string]interface{}{"$regex": r.Pattern}}
}

// And combines multiple queries with $and.
type And []Query

func (a And) toMap() map[string]interface{} {
	clauses := make([]map[string]interface{}, 0, len(a))
	for _, q := range a {
		clauses = append(clauses, q.toMap())
	}
	return map[string]interface{}{"$and": clauses}
}

// Or combines multiple queries with $or.
type Or []Query

func (o Or) toMap() map[string]interface{} {
	clauses := make([]map[string]interface{}, 0, len(o))
	for _, q := range o {
		clauses = append(clauses, q.toMap())
	}
	return map[string]interface{}{"$or": clauses}
}

// Empty is the query that matches everything; it serialises to `{}`, which
// is how Consul/LB derived groups (membership manipulated explicitly, not
// queried) upsert themselves per spec.md §4.5.
type Empty struct{}

func (Empty) toMap() map[string]interface{} { return map[string]interface{}{} }
