// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"encoding/json"
	"fmt"

	"github.com/telekom/appgw-provisioner/pkg/provider"
)

// state is the serializable form of the provider used by the CLI rehearsal
// mode to persist world state between invocations.
type state struct {
	Resources   map[string]provider.ManagedResource  `json:"resources"`
	Gateways    map[string]*provider.Gateway         `json:"gateways"`
	Secrets     map[string][]provider.SecretBundle   `json:"secrets"`
	Identities  map[string]provider.Identity         `json:"identities"`
	Assignments map[string]provider.RoleAssignment   `json:"assignments"`
}

// Snapshot serializes the complete provider state.
func (p *Provider) Snapshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return json.MarshalIndent(state{
		Resources:   p.resources,
		Gateways:    p.gateways,
		Secrets:     p.secrets,
		Identities:  p.identities,
		Assignments: p.assignments,
	}, "", "  ")
}

// Load replaces the provider state with a previously taken snapshot. The
// mutation counter is not restored; it always counts from the current process.
func (p *Provider) Load(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding provider state: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Resources != nil {
		p.resources = s.Resources
	}
	if s.Gateways != nil {
		p.gateways = s.Gateways
	}
	if s.Secrets != nil {
		p.secrets = s.Secrets
	}
	if s.Identities != nil {
		p.identities = s.Identities
	}
	if s.Assignments != nil {
		p.assignments = s.Assignments
	}
	return nil
}
