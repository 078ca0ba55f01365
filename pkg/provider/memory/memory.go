// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package memory implements the full provider surface in process. It backs
// the test suites and the rehearsal mode of the CLI. Semantics mirror the
// real provider: versioned atomic secret writes, conflict on duplicate role
// assignments, merge-patch updates of gateway sub-resources.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"

	"github.com/telekom/appgw-provisioner/pkg/provider"
)

const stateSucceeded = "Succeeded"

// Provider is an in-memory implementation of every provider service.
// The zero value is not usable; call New.
type Provider struct {
	mu          sync.Mutex
	resources   map[string]provider.ManagedResource
	gateways    map[string]*provider.Gateway
	secrets     map[string][]provider.SecretBundle
	identities  map[string]provider.Identity
	assignments map[string]provider.RoleAssignment
	faults      map[string]error
	mutations   int
}

var (
	_ provider.ResourceFinder  = (*Provider)(nil)
	_ provider.SecretStore     = (*Provider)(nil)
	_ provider.IdentityService = (*Provider)(nil)
	_ provider.Authorizer      = (*Provider)(nil)
	_ provider.GatewayService  = (*Provider)(nil)
)

func New() *Provider {
	return &Provider{
		resources:   map[string]provider.ManagedResource{},
		gateways:    map[string]*provider.Gateway{},
		secrets:     map[string][]provider.SecretBundle{},
		identities:  map[string]provider.Identity{},
		assignments: map[string]provider.RoleAssignment{},
		faults:      map[string]error{},
	}
}

// API returns the provider bundled as the service set a convergence run takes.
func (p *Provider) API() provider.API {
	return provider.API{
		Resources:  p,
		Secrets:    p,
		Identities: p,
		Authz:      p,
		Gateways:   p,
	}
}

// Mutations returns the number of state-changing provider calls observed so
// far. Reads and no-op ensures do not count.
func (p *Provider) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutations
}

// FailWith makes the named operation return err until cleared with a nil err.
// Operation names match the interface method names.
func (p *Provider) FailWith(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.faults, op)
		return
	}
	p.faults[op] = err
}

func (p *Provider) fault(op string) error {
	return p.faults[op]
}

func resourceID(scope provider.Scope, kind provider.ResourceKind, name string) string {
	ns := map[provider.ResourceKind]string{
		provider.KindGateway: "Microsoft.Network/applicationGateways",
		provider.KindVault:   "Microsoft.KeyVault/vaults",
	}[kind]
	return fmt.Sprintf("%s/providers/%s/%s", scope, ns, name)
}

func newVersion() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AddGateway seeds a gateway resource with the default plaintext topology a
// freshly deployed gateway has: an HTTP listener on port 80 wired to a
// default backend through one routing rule.
func (p *Provider) AddGateway(scope provider.Scope, name string) provider.ManagedResource {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := provider.ManagedResource{
		ID:                resourceID(scope, provider.KindGateway, name),
		Kind:              provider.KindGateway,
		Name:              name,
		Scope:             scope,
		ProvisioningState: stateSucceeded,
	}
	p.resources[res.ID] = res
	p.gateways[res.ID] = &provider.Gateway{
		Resource:      res,
		FrontendPorts: []provider.FrontendPort{{Name: "port-80", Port: 80}},
		Listeners: []provider.Listener{{
			Name:             "http-listener",
			FrontendPortName: "port-80",
			Protocol:         provider.ProtocolHTTP,
		}},
		RoutingRules: []provider.RoutingRule{{
			Name:         "default-rule",
			ListenerName: "http-listener",
			BackendName:  "default-backend",
		}},
		Backends: []provider.BackendSettings{{
			Name:     "default-backend",
			Protocol: provider.ProtocolHTTP,
			Port:     80,
		}},
	}
	return res
}

// AddVault seeds an existing vault resource.
func (p *Provider) AddVault(scope provider.Scope, name string) provider.ManagedResource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addVaultLocked(scope, name)
}

func (p *Provider) addVaultLocked(scope provider.Scope, name string) provider.ManagedResource {
	res := provider.ManagedResource{
		ID:                resourceID(scope, provider.KindVault, name),
		Kind:              provider.KindVault,
		Name:              name,
		Scope:             scope,
		ProvisioningState: stateSucceeded,
	}
	p.resources[res.ID] = res
	return res
}

func (p *Provider) Find(ctx context.Context, scope provider.Scope, kind provider.ResourceKind, filter provider.Filter) ([]provider.ManagedResource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("Find"); err != nil {
		return nil, err
	}

	var out []provider.ManagedResource
	for _, res := range p.resources {
		if res.Scope != scope || res.Kind != kind {
			continue
		}
		if filter.Name != "" && res.Name != filter.Name {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

func (p *Provider) EnsureVault(ctx context.Context, scope provider.Scope, name string) (provider.ManagedResource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("EnsureVault"); err != nil {
		return provider.ManagedResource{}, err
	}

	id := resourceID(scope, provider.KindVault, name)
	if existing, ok := p.resources[id]; ok {
		return existing, nil
	}
	p.mutations++
	return p.addVaultLocked(scope, name), nil
}

func (p *Provider) PutSecret(ctx context.Context, vault, name string, payload provider.SecretPayload) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("PutSecret"); err != nil {
		return "", err
	}

	key := vault + "/" + name
	bundle := provider.SecretBundle{
		Version:     newVersion(),
		Value:       append([]byte(nil), payload.Value...),
		ContentType: payload.ContentType,
		CommonName:  payload.CommonName,
		NotBefore:   payload.NotBefore,
		NotAfter:    payload.NotAfter,
	}
	p.secrets[key] = append(p.secrets[key], bundle)
	p.mutations++
	return bundle.Version, nil
}

func (p *Provider) GetLatest(ctx context.Context, vault, name string) (provider.SecretBundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("GetLatest"); err != nil {
		return provider.SecretBundle{}, err
	}

	versions := p.secrets[vault+"/"+name]
	if len(versions) == 0 {
		return provider.SecretBundle{}, &provider.NotFoundError{Kind: "Secret", Name: vault + "/" + name}
	}
	return versions[len(versions)-1], nil
}

// SecretVersions returns the number of stored versions for a secret.
func (p *Provider) SecretVersions(vault, name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.secrets[vault+"/"+name])
}

func (p *Provider) EnsureSystemIdentity(ctx context.Context, resource provider.ManagedResource) (provider.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("EnsureSystemIdentity"); err != nil {
		return provider.Identity{}, err
	}

	if existing, ok := p.identities[resource.ID]; ok {
		return existing, nil
	}
	identity := provider.Identity{
		PrincipalID: uuid.NewString(),
		TenantID:    "00000000-0000-0000-0000-000000000001",
	}
	p.identities[resource.ID] = identity
	p.mutations++
	return identity, nil
}

func assignmentKey(principalID string, role provider.Role, resourceID string) string {
	return fmt.Sprintf("%s|%s|%s", principalID, role, resourceID)
}

func (p *Provider) FindAssignment(ctx context.Context, principalID string, role provider.Role, resourceID string) (provider.RoleAssignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("FindAssignment"); err != nil {
		return provider.RoleAssignment{}, err
	}

	if a, ok := p.assignments[assignmentKey(principalID, role, resourceID)]; ok {
		return a, nil
	}
	return provider.RoleAssignment{}, &provider.NotFoundError{Kind: "RoleAssignment", Name: string(role)}
}

func (p *Provider) GrantRole(ctx context.Context, principalID string, role provider.Role, resourceID string) (provider.RoleAssignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("GrantRole"); err != nil {
		return provider.RoleAssignment{}, err
	}

	key := assignmentKey(principalID, role, resourceID)
	if _, ok := p.assignments[key]; ok {
		return provider.RoleAssignment{}, &provider.ConflictError{Resource: "role assignment " + string(role)}
	}
	assignment := provider.RoleAssignment{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Role:        role,
		ResourceID:  resourceID,
	}
	p.assignments[key] = assignment
	p.mutations++
	return assignment, nil
}

// AssignmentCount returns the number of role assignments held.
func (p *Provider) AssignmentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.assignments)
}

func (p *Provider) gateway(resource provider.ManagedResource) (*provider.Gateway, error) {
	gw, ok := p.gateways[resource.ID]
	if !ok {
		return nil, &provider.NotFoundError{Kind: provider.KindGateway, Name: resource.Name, Scope: resource.Scope}
	}
	return gw, nil
}

func (p *Provider) GetGateway(ctx context.Context, resource provider.ManagedResource) (*provider.Gateway, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("GetGateway"); err != nil {
		return nil, err
	}

	gw, err := p.gateway(resource)
	if err != nil {
		return nil, err
	}
	return copyGateway(gw), nil
}

func copyGateway(gw *provider.Gateway) *provider.Gateway {
	out := &provider.Gateway{Resource: gw.Resource}
	out.FrontendPorts = append([]provider.FrontendPort(nil), gw.FrontendPorts...)
	out.Listeners = append([]provider.Listener(nil), gw.Listeners...)
	out.RoutingRules = append([]provider.RoutingRule(nil), gw.RoutingRules...)
	out.Backends = append([]provider.BackendSettings(nil), gw.Backends...)
	return out
}

func (p *Provider) AddFrontendPort(ctx context.Context, resource provider.ManagedResource, port provider.FrontendPort) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("AddFrontendPort"); err != nil {
		return err
	}

	gw, err := p.gateway(resource)
	if err != nil {
		return err
	}
	for _, fp := range gw.FrontendPorts {
		if fp.Name == port.Name {
			if fp.Port == port.Port {
				return nil
			}
			return &provider.ConflictError{Resource: "frontend port " + port.Name}
		}
		if fp.Port == port.Port {
			return &provider.ConflictError{Resource: fmt.Sprintf("frontend port %d", port.Port)}
		}
	}
	gw.FrontendPorts = append(gw.FrontendPorts, port)
	p.mutations++
	return nil
}

func (p *Provider) RemoveFrontendPort(ctx context.Context, resource provider.ManagedResource, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("RemoveFrontendPort"); err != nil {
		return err
	}

	gw, err := p.gateway(resource)
	if err != nil {
		return err
	}
	for i, fp := range gw.FrontendPorts {
		if fp.Name == name {
			gw.FrontendPorts = append(gw.FrontendPorts[:i], gw.FrontendPorts[i+1:]...)
			p.mutations++
			return nil
		}
	}
	return nil
}

// mergeInto applies a JSON merge patch built from patch onto dst, mirroring
// the PATCH semantics of the real resource API.
func mergeInto[T any](dst *T, patch T) error {
	current, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	delta, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	merged, err := jsonpatch.MergePatch(current, delta)
	if err != nil {
		return fmt.Errorf("merging patch: %w", err)
	}
	return json.Unmarshal(merged, dst)
}

func (p *Provider) UpsertListener(ctx context.Context, resource provider.ManagedResource, listener provider.Listener) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("UpsertListener"); err != nil {
		return err
	}

	gw, err := p.gateway(resource)
	if err != nil {
		return err
	}
	if _, ok := gw.PortByName(listener.FrontendPortName); !ok {
		return &provider.NotFoundError{Kind: "FrontendPort", Name: listener.FrontendPortName, Scope: resource.Scope}
	}
	for i := range gw.Listeners {
		if gw.Listeners[i].Name == listener.Name {
			if gw.Listeners[i] == listener {
				return nil
			}
			if err := mergeInto(&gw.Listeners[i], listener); err != nil {
				return err
			}
			p.mutations++
			return nil
		}
	}
	gw.Listeners = append(gw.Listeners, listener)
	p.mutations++
	return nil
}

func (p *Provider) RemoveListener(ctx context.Context, resource provider.ManagedResource, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("RemoveListener"); err != nil {
		return err
	}

	gw, err := p.gateway(resource)
	if err != nil {
		return err
	}
	for i, l := range gw.Listeners {
		if l.Name == name {
			gw.Listeners = append(gw.Listeners[:i], gw.Listeners[i+1:]...)
			p.mutations++
			return nil
		}
	}
	return nil
}

func (p *Provider) UpsertRoutingRule(ctx context.Context, resource provider.ManagedResource, rule provider.RoutingRule) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("UpsertRoutingRule"); err != nil {
		return err
	}

	gw, err := p.gateway(resource)
	if err != nil {
		return err
	}
	for i := range gw.RoutingRules {
		if gw.RoutingRules[i].Name == rule.Name {
			if gw.RoutingRules[i] == rule {
				return nil
			}
			if err := mergeInto(&gw.RoutingRules[i], rule); err != nil {
				return err
			}
			p.mutations++
			return nil
		}
	}
	gw.RoutingRules = append(gw.RoutingRules, rule)
	p.mutations++
	return nil
}

func (p *Provider) UpdateBackendSettings(ctx context.Context, resource provider.ManagedResource, settings provider.BackendSettings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fault("UpdateBackendSettings"); err != nil {
		return err
	}

	gw, err := p.gateway(resource)
	if err != nil {
		return err
	}
	for i := range gw.Backends {
		if gw.Backends[i].Name == settings.Name {
			if gw.Backends[i] == settings {
				return nil
			}
			if err := mergeInto(&gw.Backends[i], settings); err != nil {
				return err
			}
			p.mutations++
			return nil
		}
	}
	return &provider.NotFoundError{Kind: "BackendSettings", Name: settings.Name, Scope: resource.Scope}
}
