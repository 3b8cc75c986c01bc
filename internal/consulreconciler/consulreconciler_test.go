package consulreconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/psapi/psapitest"
	"github.com/composureai/perfectstorm/internal/trigger"
)

func autoCompleteRecipes(server *psapitest.Server) {
	server.SetTriggerHandler(func(t psapi.Trigger) psapi.Trigger {
		t.Status = psapi.TriggerDone
		t.Result = map[string]interface{}{"ok": true}
		return t
	})
}

func TestManagerSetupUpsertsGroupsAndRecipes(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	client := psapi.New(psapi.Config{ServerURL: server.URL()})
	driver := trigger.New(client.Triggers, 0)

	mgr := New(client, driver, "pool-a", nil)
	require.NoError(t, mgr.Setup(context.Background()))

	groups, err := client.Groups.All(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, g := range groups {
		ids = append(ids, g.Identifier)
	}
	assert.ElementsMatch(t, []string{"pool-a-consul-server", "pool-a-consul-server-nodes", "pool-a-consul-clients"}, ids)

	recipes, err := client.Recipes.All(context.Background())
	require.NoError(t, err)
	var names []string
	for _, r := range recipes {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{RecipeConsulServer, RecipeConsulClient, RecipeConsulServerJoinWAN}, names)

	// Setup must be idempotent across restarts (upsert, not create-only).
	require.NoError(t, mgr.Setup(context.Background()))
}

func TestServerManagerElectsExactlyOneServer(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	autoCompleteRecipes(server)
	client := psapi.New(psapi.Config{ServerURL: server.URL()})
	driver := trigger.New(client.Triggers, 0)

	mgr := New(client, driver, "pool-a", nil)
	require.NoError(t, mgr.Setup(context.Background()))

	node := psapi.Node{CloudID: "n1", Status: psapi.NodeStatusUp, Address: "10.0.0.1"}
	server.SeedNode(node)
	require.NoError(t, client.Groups.AddMembers(context.Background(), "pool-a", []string{"n1"}))

	elected, err := mgr.server.Reconcile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, elected)
	assert.Equal(t, "n1", elected.CloudID)

	// Simulate the completed recipe's effect: the docker trigger handler
	// host adds the newly started server container to server_group once
	// it comes up. With that done, a second Reconcile must take the cheap
	// "already UP" path and submit no further trigger at all.
	require.NoError(t, client.Groups.AddMembers(context.Background(), "pool-a-consul-server", []string{"n1"}))

	before := len(server.Triggers())
	again, err := mgr.server.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n1", again.CloudID)
	after := len(server.Triggers())
	assert.Equal(t, before, after, "re-electing an already-UP server must not submit another trigger")
}

func TestFederationManagerWarnsWithoutExactlyOneRemoteServer(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	autoCompleteRecipes(server)
	client := psapi.New(psapi.Config{ServerURL: server.URL()})
	driver := trigger.New(client.Triggers, 0)

	mgr := New(client, driver, "pool-a", []string{"pool-b"})
	require.NoError(t, mgr.Setup(context.Background()))
	// pool-b's server group has no members at all yet (0 UP servers): the
	// federation step must skip it without erroring or submitting a join
	// trigger, per spec's "exactly 1" precondition.
	localServer := psapi.Node{CloudID: "local", Status: psapi.NodeStatusUp, Address: "10.0.0.5"}

	err := mgr.federation.Reconcile(context.Background(), localServer, []string{"pool-b"})
	require.NoError(t, err, "a precondition miss is absorbed internally, never returned as an error")
	assert.Empty(t, server.Triggers(), "no WAN-join trigger should be submitted when the remote pool has 0 UP servers")
}
