package psapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{name: "eq", q: Eq{Field: "status", Value: "UP"}, want: `{"status":"UP"}`},
		{name: "in", q: In{Field: "status", Values: []interface{}{"UP", "DOWN"}}, want: `{"status":{"$in":["UP","DOWN"]}}`},
		{name: "nin", q: Nin{Field: "status", Values: []interface{}{"DOWN"}}, want: `{"status":{"$nin":["DOWN"]}}`},
		{name: "regex", q: Regex{Field: "name", Pattern: "^web-"}, want: `{"name":{"$regex":"^web-"}}`},
		{name: "empty", q: Empty{}, want: `{}`},
		{
			name: "and",
			q:    And{Eq{Field: "status", Value: "UP"}, Eq{Field: "engine.type", Value: "docker"}},
			want: `{"$and":[{"status":"UP"},{"engine.type":"docker"}]}`,
		},
		{
			name: "or",
			q:    Or{Eq{Field: "status", Value: "UP"}, Eq{Field: "status", Value: "DOWN"}},
			want: `{"$or":[{"status":"UP"},{"status":"DOWN"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := marshalQuery(tt.q)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(encoded))
		})
	}
}

func TestQueryMarshalJSONNil(t *testing.T) {
	encoded, err := marshalQuery(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(encoded))
}

func TestGroupOmitsEmptyQuery(t *testing.T) {
	g := Group{Identifier: "pool-a"}
	encoded, err := json.Marshal(g)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), `"query"`)
}
