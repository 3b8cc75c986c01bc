// Package lbreconciler implements the LoadBalancer Reconciler (spec.md
// §4.6): for every application's exposed service, a SingleServerManager
// keeps exactly one HAProxy container UP, and a GroupBackendManager
// reconciles that HAProxy's backend slots against the service's desired
// endpoints. It is driven by the Monitor Executor's ApplicationsMonitor.
package lbreconciler

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/composureai/perfectstorm/internal/executor"
	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/trigger"
	"github.com/composureai/perfectstorm/pkg/logging"
)

// RecipeLoadBalancer is the canonical recipe that starts an HAProxy
// container for one exposed service (spec.md §4.6.1).
const RecipeLoadBalancer = "load-balancer"

// RuntimeSocketPort is the HAProxy runtime socket port every
// load-balancer container binds, per the templated config spec.md §4.6.1
// describes ("the runtime socket listens on 0.0.0.0:9000").
const RuntimeSocketPort = 9000

// exposedService identifies one application expose entry: a single
// component/service pair that gets its own dedicated load-balancer.
type exposedService struct {
	Application string
	Component   string
	Service     string
}

func (e exposedService) groupName() string {
	return fmt.Sprintf("lb-%s-%s-%s", e.Application, e.Component, e.Service)
}

// Manager tracks one SingleServerManager/GroupBackendManager pair per
// exposed service seen across all applications, creating new pairs as
// the ApplicationsMonitor reports newly observed applications.
type Manager struct {
	client        *psapi.Client
	driver        *trigger.Driver
	nodesPoolName string

	managed map[string]*serviceManagers
}

type serviceManagers struct {
	single  *SingleServerManager
	backend *GroupBackendManager
}

// New builds a Manager over the given nodes pool group.
func New(client *psapi.Client, driver *trigger.Driver, nodesPoolName string) *Manager {
	return &Manager{
		client:        client,
		driver:        driver,
		nodesPoolName: nodesPoolName,
		managed:       make(map[string]*serviceManagers),
	}
}

// ReconcileDiff implements executor.DiffReconciler: for every added or
// updated application, ensure a load-balancer pair exists per exposed
// service and run both managers for it (spec.md §4.6).
func (m *Manager) ReconcileDiff(ctx context.Context, diff executor.Diff) error {
	var errs *multierror.Error

	for _, app := range append(append([]psapi.Application{}, diff.Added...), diff.Updated...) {
		for _, expose := range app.Expose {
			svc := exposedService{Application: app.Name, Component: expose.Component, Service: expose.Service}
			label := svc.groupName()

			componentGroup, err := componentGroupFor(ctx, m.client, app, expose.Component)
			if err != nil {
				logging.Warn("LoadBalancerReconciler", "resolving component group for %s: %v", label, err)
				errs = multierror.Append(errs, err)
				continue
			}
			servicePort, err := servicePortFor(componentGroup, expose.Service)
			if err != nil {
				logging.Warn("LoadBalancerReconciler", "resolving service port for %s: %v", label, err)
				errs = multierror.Append(errs, err)
				continue
			}

			managers := m.ensureManagers(label, servicePort)

			node, err := managers.single.Reconcile(ctx)
			if err != nil {
				logging.Warn("LoadBalancerReconciler", "SingleServerManager(%s): %v", label, err)
				errs = multierror.Append(errs, err)
				continue
			}
			if node == nil {
				// No HAProxy UP yet this tick; nothing to back.
				continue
			}

			if err := managers.backend.Reconcile(ctx, *node, componentGroup); err != nil {
				logging.Warn("LoadBalancerReconciler", "GroupBackendManager(%s): %v", label, err)
				errs = multierror.Append(errs, err)
			}
		}
	}

	return errs.ErrorOrNil()
}

func (m *Manager) ensureManagers(group string, servicePort int) *serviceManagers {
	if existing, ok := m.managed[group]; ok {
		return existing
	}

	managers := &serviceManagers{
		single: &SingleServerManager{
			client:        m.client,
			driver:        m.driver,
			group:         group,
			nodesPoolName: m.nodesPoolName,
			servicePort:   servicePort,
		},
		backend: &GroupBackendManager{
			client:        m.client,
			group:         group,
			nodesPoolName: m.nodesPoolName,
		},
	}
	m.managed[group] = managers
	return managers
}

// componentGroupFor resolves the Group backing an application's
// component, whose `identifier` matches the component name by convention
// (spec.md §3, Application: "components (names)").
func componentGroupFor(ctx context.Context, client *psapi.Client, app psapi.Application, component string) (psapi.Group, error) {
	for _, name := range app.Components {
		if name == component {
			group, err := client.Groups.Get(ctx, component)
			if err != nil {
				return psapi.Group{}, err
			}
			return *group, nil
		}
	}
	return psapi.Group{}, fmt.Errorf("application %s has no component %s", app.Name, component)
}

// servicePortFor finds the declared port of one of the component group's
// services (spec.md §3, Group: "an ordered list of declared services").
func servicePortFor(group psapi.Group, service string) (int, error) {
	for _, svc := range group.Services {
		if svc.Name == service {
			return svc.Port, nil
		}
	}
	return 0, fmt.Errorf("group %s declares no service %s", group.Identifier, service)
}
