// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package provider

import "context"

// Filter narrows a Find enumeration. The zero value matches everything of
// the requested kind.
type Filter struct {
	Name string
}

// ResourceFinder enumerates managed resources of a kind within a scope.
// Reads are eventually consistent.
type ResourceFinder interface {
	Find(ctx context.Context, scope Scope, kind ResourceKind, filter Filter) ([]ManagedResource, error)
}

// SecretStore is a versioned secret vault. PutSecret relies on the store's
// atomic versioned-write semantics; a failed upload never leaves a
// half-written version behind.
type SecretStore interface {
	// EnsureVault returns the named vault, creating it when absent.
	EnsureVault(ctx context.Context, scope Scope, name string) (ManagedResource, error)
	// PutSecret uploads payload as a new version of the named secret and
	// returns the new version identifier. History is never overwritten.
	PutSecret(ctx context.Context, vault, name string, payload SecretPayload) (string, error)
	// GetLatest resolves the newest version of the named secret. Absence is
	// reported as a NotFoundError.
	GetLatest(ctx context.Context, vault, name string) (SecretBundle, error)
}

// IdentityService manages system-assigned identities on compute resources.
type IdentityService interface {
	// EnsureSystemIdentity enables a system identity on the resource when
	// none exists and returns the principal either way.
	EnsureSystemIdentity(ctx context.Context, resource ManagedResource) (Identity, error)
}

// Authorizer manages role assignments. GrantRole reports an existing
// assignment as a ConflictError, which idempotent callers treat as success.
type Authorizer interface {
	// FindAssignment returns the assignment for the triple, or a
	// NotFoundError when none exists.
	FindAssignment(ctx context.Context, principalID string, role Role, resourceID string) (RoleAssignment, error)
	GrantRole(ctx context.Context, principalID string, role Role, resourceID string) (RoleAssignment, error)
}

// GatewayService reads and mutates a gateway's listener configuration. Each
// mutation is a single provider round-trip; completion of a call implies the
// sub-step is durably applied.
type GatewayService interface {
	GetGateway(ctx context.Context, resource ManagedResource) (*Gateway, error)
	AddFrontendPort(ctx context.Context, resource ManagedResource, port FrontendPort) error
	RemoveFrontendPort(ctx context.Context, resource ManagedResource, name string) error
	UpsertListener(ctx context.Context, resource ManagedResource, listener Listener) error
	RemoveListener(ctx context.Context, resource ManagedResource, name string) error
	UpsertRoutingRule(ctx context.Context, resource ManagedResource, rule RoutingRule) error
	UpdateBackendSettings(ctx context.Context, resource ManagedResource, settings BackendSettings) error
}

// API bundles the provider services a full convergence run needs. Components
// accept only the interfaces they use; the bundle exists for wiring.
type API struct {
	Resources  ResourceFinder
	Secrets    SecretStore
	Identities IdentityService
	Authz      Authorizer
	Gateways   GatewayService
}
