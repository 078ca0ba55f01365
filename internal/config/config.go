// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package config holds the validated configuration of a convergence run. All
// inputs are gathered into one struct passed by value; there are no ambient
// lookups past the CLI boundary.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/telekom/appgw-provisioner/pkg/provider"
)

const (
	DefaultSecretName      = "gateway-tls"
	DefaultFrontendPort    = 443
	DefaultRenewBefore     = 30 * 24 * time.Hour
	DefaultPropagationWait = 60 * time.Second
)

// Config is the complete input of one convergence run. GatewayName and
// VaultName are optional: when empty, the locator auto-detects within the
// scope and fails on ambiguity instead of guessing.
type Config struct {
	Subscription  string
	ResourceGroup string

	GatewayName string
	VaultName   string

	// Domain is the externally used domain name; it becomes the certificate
	// common name and the backend host header.
	Domain string

	SecretName   string
	FrontendPort int32
	ForceRotate  bool

	// RenewBefore is how long before certificate expiry regeneration is
	// offered to the operator.
	RenewBefore time.Duration

	// PropagationWait is the fixed grace period after a newly created role
	// assignment.
	PropagationWait time.Duration

	Role provider.Role
}

// Scope returns the administrative boundary the run converges within.
func (c Config) Scope() provider.Scope {
	return provider.Scope{Subscription: c.Subscription, ResourceGroup: c.ResourceGroup}
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.SecretName == "" {
		c.SecretName = DefaultSecretName
	}
	if c.FrontendPort == 0 {
		c.FrontendPort = DefaultFrontendPort
	}
	if c.RenewBefore == 0 {
		c.RenewBefore = DefaultRenewBefore
	}
	if c.PropagationWait == 0 {
		c.PropagationWait = DefaultPropagationWait
	}
	if c.Role == "" {
		c.Role = provider.RoleSecretsReader
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Subscription == "" {
		return errors.New("subscription must be set")
	}
	if c.ResourceGroup == "" {
		return errors.New("resource group must be set")
	}
	if c.Domain == "" {
		return errors.New("domain must be set")
	}
	if c.SecretName == "" {
		return errors.New("secret name must be set")
	}
	if c.FrontendPort < 1 {
		return fmt.Errorf("frontend port %d out of range", c.FrontendPort)
	}
	if c.RenewBefore <= 0 {
		return errors.New("renew-before must be positive")
	}
	if c.PropagationWait < 0 {
		return errors.New("propagation wait must not be negative")
	}
	return nil
}
