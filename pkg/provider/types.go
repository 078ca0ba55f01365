// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"fmt"
	"time"
)

// Scope is the administrative boundary within which resources are located.
// It is immutable once resolved.
type Scope struct {
	Subscription  string
	ResourceGroup string
}

func (s Scope) String() string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", s.Subscription, s.ResourceGroup)
}

// ResourceKind identifies a class of managed cloud resources.
type ResourceKind string

const (
	KindGateway ResourceKind = "ApplicationGateway"
	KindVault   ResourceKind = "KeyVault"
)

// ManagedResource is a handle to a cloud object. Handles are produced by
// resource lookups; only the provider itself mutates the underlying object.
type ManagedResource struct {
	ID                string
	Kind              ResourceKind
	Name              string
	Scope             Scope
	ProvisioningState string
}

// SecretReference is a versionless pointer to the latest version of a secret.
// It is stable across certificate rotations so dependents never need updating
// when the certificate rotates.
type SecretReference struct {
	VaultName  string
	SecretName string
}

// URI renders the reference without a version segment. Attaching this URI to
// a consumer means the consumer always resolves the newest secret version.
func (r SecretReference) URI() string {
	return fmt.Sprintf("https://%s.vault.azure.net/secrets/%s", r.VaultName, r.SecretName)
}

func (r SecretReference) IsZero() bool {
	return r.VaultName == "" && r.SecretName == ""
}

// SecretPayload is the material handed to the secret store on upload. The
// store persists it as a new version with atomic versioned-write semantics.
type SecretPayload struct {
	// Value is the PKCS#12 bundle containing key and certificate.
	Value []byte
	// ExportPassword protects the bundle; generated fresh per upload and
	// never stored by the caller.
	ExportPassword string
	ContentType    string
	CommonName     string
	NotBefore      time.Time
	NotAfter       time.Time
}

// SecretBundle is a stored secret version as read back from the store.
type SecretBundle struct {
	Version     string
	Value       []byte
	ContentType string
	CommonName  string
	NotBefore   time.Time
	NotAfter    time.Time
}

// Identity is a credential principal attached to a compute resource.
type Identity struct {
	PrincipalID string
	TenantID    string
}

// Role names a permission scope grantable to an identity.
type Role string

// RoleSecretsReader is the minimum permission required to read a secret.
const RoleSecretsReader Role = "Key Vault Secrets User"

// RoleAssignment grants Role from a principal to a resource. At most one
// assignment exists per (principal, resource, role) triple; the provider
// reports duplicates as a conflict.
type RoleAssignment struct {
	ID          string
	PrincipalID string
	Role        Role
	ResourceID  string
}

// Protocol of a listener or backend connection.
type Protocol string

const (
	ProtocolHTTP  Protocol = "Http"
	ProtocolHTTPS Protocol = "Https"
)

// FrontendPort is a gateway frontend port binding. Ports are exclusive: one
// listener per port, never overlaid.
type FrontendPort struct {
	Name string `json:"name"`
	Port int32  `json:"port"`
}

// Listener is a gateway's bound combination of frontend port, protocol and
// certificate reference accepting inbound connections.
type Listener struct {
	Name             string   `json:"name"`
	FrontendPortName string   `json:"frontendPortName"`
	Protocol         Protocol `json:"protocol"`
	HostName         string   `json:"hostName,omitempty"`
	// CertificateRef is the versionless secret URI for HTTPS listeners.
	CertificateRef string `json:"certificateRef,omitempty"`
}

// RoutingRule maps a listener to a backend.
type RoutingRule struct {
	Name         string `json:"name"`
	ListenerName string `json:"listenerName"`
	BackendName  string `json:"backendName"`
}

// BackendSettings describe the transport toward the backend pool. Protocol
// must agree with the listener scheme, and HostName must equal the externally
// used domain or host-bound redirect flows break downstream.
type BackendSettings struct {
	Name     string   `json:"name"`
	Protocol Protocol `json:"protocol"`
	Port     int32    `json:"port"`
	HostName string   `json:"hostName,omitempty"`
}

// Gateway is the observed gateway configuration surface the reconciler
// manipulates.
type Gateway struct {
	Resource      ManagedResource   `json:"resource"`
	FrontendPorts []FrontendPort    `json:"frontendPorts"`
	Listeners     []Listener        `json:"listeners"`
	RoutingRules  []RoutingRule     `json:"routingRules"`
	Backends      []BackendSettings `json:"backends"`
}

// ListenerOnPort returns the listener bound to the named frontend port, if any.
func (g *Gateway) ListenerOnPort(port int32) (Listener, bool) {
	for _, fp := range g.FrontendPorts {
		if fp.Port != port {
			continue
		}
		for _, l := range g.Listeners {
			if l.FrontendPortName == fp.Name {
				return l, true
			}
		}
	}
	return Listener{}, false
}

// PortByName returns the named frontend port, if present.
func (g *Gateway) PortByName(name string) (FrontendPort, bool) {
	for _, fp := range g.FrontendPorts {
		if fp.Name == name {
			return fp, true
		}
	}
	return FrontendPort{}, false
}
