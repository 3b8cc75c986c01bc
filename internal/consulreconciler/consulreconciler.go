// Package consulreconciler implements the Consul Reconciler (spec.md
// §4.5): four sub-managers run in a fixed order against a shared node
// pool and three derived groups, grounded on the teacher's
// internal/reconciler.Manager composition style but replacing its
// queue/worker-pool dispatch with the simple sequential sweep the spec
// calls for.
package consulreconciler

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hashicorp/go-multierror"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/trigger"
	"github.com/composureai/perfectstorm/pkg/logging"
)

const (
	// RecipeConsulServer is the canonical recipe that starts a Consul
	// server container (spec.md §4.5).
	RecipeConsulServer = "consul-server"
	// RecipeConsulClient starts a Consul client container joined to a
	// given server.
	RecipeConsulClient = "consul-client"
	// RecipeConsulServerJoinWAN joins the local server to a remote pool's
	// server over WAN federation.
	RecipeConsulServerJoinWAN = "consul-server-join-wan"

	// ServiceTag marks Consul catalog entries owned by Perfect Storm
	// (spec.md §4.5.3); entries without it are left untouched.
	ServiceTag = "ps-consul"
)

// GroupNames derives the three groups a Manager shares across its
// sub-managers from the pool identifier (spec.md §4.5).
type GroupNames struct {
	NodesGroup    string
	ServerGroup   string
	ServerNodes   string
	ClientsGroup  string
}

// DeriveGroupNames builds the canonical `<pool>-consul-*` group names.
func DeriveGroupNames(pool string) GroupNames {
	return GroupNames{
		NodesGroup:   pool,
		ServerGroup:  fmt.Sprintf("%s-consul-server", pool),
		ServerNodes:  fmt.Sprintf("%s-consul-server-nodes", pool),
		ClientsGroup: fmt.Sprintf("%s-consul-clients", pool),
	}
}

// Manager composes the four Consul sub-managers and runs them in the
// fixed order spec.md §4.5 requires on every reconcile tick.
type Manager struct {
	Pool     string
	Federate []string

	client  *psapi.Client
	driver  *trigger.Driver
	names   GroupNames

	server     *ServerManager
	clients    *ClientsManager
	services   *ServicesManager
	federation *FederationManager
}

// New builds a Manager for the named nodes pool, optionally federating
// with the listed remote pools.
func New(client *psapi.Client, driver *trigger.Driver, pool string, federate []string) *Manager {
	names := DeriveGroupNames(pool)
	shortcuts := psapi.NewShortcuts(client)

	return &Manager{
		Pool:     pool,
		Federate: federate,
		client:   client,
		driver:   driver,
		names:    names,

		server:     &ServerManager{client: client, shortcuts: shortcuts, driver: driver, names: names},
		clients:    &ClientsManager{client: client, shortcuts: shortcuts, driver: driver, names: names},
		services:   &ServicesManager{client: client, shortcuts: shortcuts, names: names},
		federation: &FederationManager{client: client, shortcuts: shortcuts, driver: driver, names: names},
	}
}

// Setup upserts the three derived groups with empty queries and the
// three canonical recipes, per spec.md §4.5. Each recipe is upserted with
// only its name and type "docker": an existing recipe of the same name has
// its content, params and targeting hints replaced by empty values.
func (m *Manager) Setup(ctx context.Context) error {
	for _, name := range []string{m.names.ServerGroup, m.names.ServerNodes, m.names.ClientsGroup} {
		_, err := m.client.Groups.UpdateOrCreate(ctx, psapi.Group{Identifier: name, Query: psapi.Empty{}})
		if err != nil {
			return fmt.Errorf("upserting group %s: %w", name, err)
		}
	}

	for _, name := range []string{RecipeConsulServer, RecipeConsulClient, RecipeConsulServerJoinWAN} {
		_, err := m.client.Recipes.UpdateOrCreate(ctx, psapi.Recipe{Name: name, Type: "docker"})
		if err != nil {
			return fmt.Errorf("upserting recipe %s: %w", name, err)
		}
	}

	return nil
}

// Reconcile runs ServerManager, ClientsManager, ServicesManager, then
// FederationManager in that fixed order (spec.md §4.5). If ServerManager
// yields no server node, the other three are skipped this tick. Otherwise
// a failure in ClientsManager, ServicesManager or FederationManager is
// logged and the next still runs. Every failure is collected into the
// returned multierror.
func (m *Manager) Reconcile(ctx context.Context) error {
	var errs *multierror.Error

	serverNode, err := m.server.Reconcile(ctx)
	if err != nil {
		logging.Warn("ConsulReconciler", "ServerManager: %v", err)
		errs = multierror.Append(errs, fmt.Errorf("ServerManager: %w", err))
	}

	if serverNode != nil {
		if err := m.clients.Reconcile(ctx, *serverNode); err != nil {
			logging.Warn("ConsulReconciler", "ClientsManager: %v", err)
			errs = multierror.Append(errs, fmt.Errorf("ClientsManager: %w", err))
		}

		if err := m.services.Reconcile(ctx, *serverNode); err != nil {
			logging.Warn("ConsulReconciler", "ServicesManager: %v", err)
			errs = multierror.Append(errs, fmt.Errorf("ServicesManager: %w", err))
		}

		if err := m.federation.Reconcile(ctx, *serverNode, m.Federate); err != nil {
			logging.Warn("ConsulReconciler", "FederationManager: %v", err)
			errs = multierror.Append(errs, fmt.Errorf("FederationManager: %w", err))
		}
	}

	return errs.ErrorOrNil()
}

func randomUp(nodes []psapi.Node) *psapi.Node {
	var up []psapi.Node
	for _, n := range nodes {
		if n.Status == psapi.NodeStatusUp {
			up = append(up, n)
		}
	}
	if len(up) == 0 {
		return nil
	}
	return &up[rand.Intn(len(up))]
}

func firstUp(nodes []psapi.Node) *psapi.Node {
	for _, n := range nodes {
		if n.Status == psapi.NodeStatusUp {
			return &n
		}
	}
	return nil
}

func upCount(nodes []psapi.Node) int {
	n := 0
	for _, node := range nodes {
		if node.Status == psapi.NodeStatusUp {
			n++
		}
	}
	return n
}
