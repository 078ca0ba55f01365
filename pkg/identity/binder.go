// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package identity ensures a compute resource has a usable system identity
// and that the identity holds the minimum authorization to read a specific
// secret store, tolerating the provider's authorization propagation delay.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/telekom/appgw-provisioner/pkg/metrics"
	"github.com/telekom/appgw-provisioner/pkg/provider"
)

// DefaultPropagationWait is the fixed grace period after a new role
// assignment. The provider gives no event signaling propagation completion,
// so this is a bounded wait, not a poll.
const DefaultPropagationWait = 60 * time.Second

// Binder converges identity and authorization state.
type Binder struct {
	identities provider.IdentityService
	authz      provider.Authorizer
	clk        clock.Clock
	wait       time.Duration
	log        logr.Logger
}

type Option func(*Binder)

// WithClock injects the time source used for the propagation wait.
func WithClock(c clock.Clock) Option {
	return func(b *Binder) { b.clk = c }
}

func WithPropagationWait(d time.Duration) Option {
	return func(b *Binder) { b.wait = d }
}

func WithLogger(log logr.Logger) Option {
	return func(b *Binder) { b.log = log }
}

func NewBinder(identities provider.IdentityService, authz provider.Authorizer, opts ...Option) *Binder {
	b := &Binder{
		identities: identities,
		authz:      authz,
		clk:        clock.RealClock{},
		wait:       DefaultPropagationWait,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EnsureAccess enables a system identity on compute (no-op when already
// enabled) and grants role on the secret store to it (no-op when the
// assignment already exists). Only a genuinely new assignment is followed by
// the fixed propagation wait; re-runs converge without waiting.
//
// The provider may report an existing assignment as a creation conflict; that
// is success here, never an error.
func (b *Binder) EnsureAccess(ctx context.Context, compute, secretStore provider.ManagedResource, role provider.Role) (provider.Identity, error) {
	id, err := b.identities.EnsureSystemIdentity(ctx, compute)
	if err != nil {
		return provider.Identity{}, fmt.Errorf("enabling system identity on %s %q: %w", compute.Kind, compute.Name, err)
	}
	b.log.V(1).Info("system identity present", "resource", compute.Name, "principalID", id.PrincipalID)

	existing, err := b.authz.FindAssignment(ctx, id.PrincipalID, role, secretStore.ID)
	if err == nil {
		b.log.V(1).Info("role assignment already exists, skipping grant and wait",
			"role", role, "assignmentID", existing.ID)
		return id, nil
	}
	if !provider.IsNotFound(err) {
		return provider.Identity{}, fmt.Errorf("checking role assignment: %w", err)
	}

	assignment, err := b.authz.GrantRole(ctx, id.PrincipalID, role, secretStore.ID)
	if err != nil {
		if provider.IsConflict(err) {
			// Lost a race with a concurrent grant; the binding exists, which
			// is the state we wanted.
			b.log.Info("role assignment reported as existing on create", "role", role)
			return id, nil
		}
		return provider.Identity{}, fmt.Errorf("granting %q on %s: %w", role, secretStore.Name, err)
	}

	b.log.Info("created role assignment, waiting for authorization propagation",
		"role", role, "assignmentID", assignment.ID, "wait", b.wait.String())
	metrics.PropagationWaits.Inc()
	select {
	case <-ctx.Done():
		return provider.Identity{}, ctx.Err()
	case <-b.clk.After(b.wait):
	}
	return id, nil
}
