package consulreconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/psapi/psapitest"
)

func TestCatalogEntryKeyDistinguishesPort(t *testing.T) {
	a := catalogEntry{Name: "web", Address: "10.0.0.1", Port: 0}
	b := catalogEntry{Name: "web", Address: "10.0.0.1", Port: 8080}
	assert.NotEqual(t, a.key(), b.key())
	assert.Equal(t, a.key(), catalogEntry{Name: "web", Address: "10.0.0.1", Port: 0}.key())
}

func TestHasTag(t *testing.T) {
	assert.True(t, hasTag([]string{"other", ServiceTag}, ServiceTag))
	assert.False(t, hasTag([]string{"other"}, ServiceTag))
	assert.False(t, hasTag(nil, ServiceTag))
}

func TestServicesManagerDesiredSet(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	client := psapi.New(psapi.Config{ServerURL: server.URL()})

	web1 := psapi.Node{CloudID: "web1", Status: psapi.NodeStatusUp, Address: "10.0.0.1"}
	web2Down := psapi.Node{CloudID: "web2", Status: psapi.NodeStatusDown, Address: "10.0.0.2"}
	outside := psapi.Node{CloudID: "web3", Status: psapi.NodeStatusUp, Address: "10.0.0.3"}
	server.SeedNode(web1)
	server.SeedNode(web2Down)
	server.SeedNode(outside)

	names := DeriveGroupNames("pool-a")
	require.NoError(t, client.Groups.AddMembers(context.Background(), names.NodesGroup, []string{"web1", "web2"}))

	_, err := client.Groups.Create(context.Background(), psapi.Group{
		Identifier: "web",
		Query:      psapi.Empty{},
		Services:   []psapi.Service{{Name: "http", Port: 8080}},
	})
	require.NoError(t, err)
	require.NoError(t, client.Groups.AddMembers(context.Background(), "web", []string{"web1", "web2", "web3"}))

	mgr := &ServicesManager{client: client, shortcuts: psapi.NewShortcuts(client), names: names}

	desired, err := mgr.desiredSet(context.Background())
	require.NoError(t, err)

	byKey := make(map[string]catalogEntry, len(desired))
	for _, e := range desired {
		byKey[e.key()] = e
	}

	assert.Contains(t, byKey, catalogEntry{Name: "web", Address: "10.0.0.1", Port: 0}.key(),
		"the UP, pool-hosted member contributes its bare group entry")
	assert.Contains(t, byKey, catalogEntry{Name: "web-http", Address: "10.0.0.1", Port: 8080}.key(),
		"and one entry per declared service")
	assert.NotContains(t, byKey, catalogEntry{Name: "web", Address: "10.0.0.2", Port: 0}.key(),
		"a DOWN member contributes nothing")
	assert.NotContains(t, byKey, catalogEntry{Name: "web", Address: "10.0.0.3", Port: 0}.key(),
		"a member hosted outside the nodes pool contributes nothing")
}
