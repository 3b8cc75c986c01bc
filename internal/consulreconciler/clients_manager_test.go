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

func TestClientsManagerSubmitsRecipeOnlyForMissingNodes(t *testing.T) {
	server := psapitest.New()
	defer server.Close()

	var submittedFor []string
	server.SetTriggerHandler(func(trig psapi.Trigger) psapi.Trigger {
		if params, ok := trig.Arguments["params"].(map[string]interface{}); ok {
			if addr, ok := params["CLIENT_ADDRESS"].(string); ok {
				submittedFor = append(submittedFor, addr)
			}
		}
		trig.Status = psapi.TriggerDone
		trig.Result = map[string]interface{}{"ok": true}
		return trig
	})
	client := psapi.New(psapi.Config{ServerURL: server.URL()})
	driver := trigger.New(client.Triggers, 0)

	serverNode := psapi.Node{CloudID: "srv", Status: psapi.NodeStatusUp, Address: "10.0.0.1"}
	haveClient := psapi.Node{CloudID: "have", Status: psapi.NodeStatusUp, Address: "10.0.0.2"}
	missing := psapi.Node{CloudID: "missing", Status: psapi.NodeStatusUp, Address: "10.0.0.3"}
	down := psapi.Node{CloudID: "down", Status: psapi.NodeStatusDown, Address: "10.0.0.4"}
	server.SeedNode(serverNode)
	server.SeedNode(haveClient)
	server.SeedNode(missing)
	server.SeedNode(down)

	names := DeriveGroupNames("pool-a")
	_, err := client.Groups.UpdateOrCreate(context.Background(), psapi.Group{Identifier: names.NodesGroup, Query: psapi.Empty{}})
	require.NoError(t, err)
	_, err = client.Groups.UpdateOrCreate(context.Background(), psapi.Group{Identifier: names.ClientsGroup, Query: psapi.Empty{}})
	require.NoError(t, err)
	require.NoError(t, client.Groups.AddMembers(context.Background(), names.NodesGroup, []string{"have", "missing", "down"}))
	// "have" stands for a node that already hosts a client container: the
	// clients-group member is the node record itself, and since it has no
	// engine ID GetNodeFor resolves it to itself.
	require.NoError(t, client.Groups.AddMembers(context.Background(), names.ClientsGroup, []string{"have"}))

	mgr := &ClientsManager{
		client:    client,
		shortcuts: psapi.NewShortcuts(client),
		driver:    driver,
		names:     names,
	}

	require.NoError(t, mgr.Reconcile(context.Background(), serverNode))

	assert.Equal(t, []string{"10.0.0.3"}, submittedFor, "only the missing UP node's address should trigger a consul-client recipe")
}
