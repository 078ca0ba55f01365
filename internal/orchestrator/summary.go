// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/telekom/appgw-provisioner/pkg/provider"
)

// Summary is the result of one convergence run: the resolved resources, the
// last completed phase, and per-phase conditions. A failed run names the
// failing phase so re-invocation resumes correctly.
type Summary struct {
	Gateway   provider.ManagedResource `json:"gateway"`
	Vault     provider.ManagedResource `json:"vault"`
	SecretRef provider.SecretReference `json:"secretRef"`
	Identity  provider.Identity        `json:"identity"`
	Listener  provider.Listener        `json:"listener"`

	LastCompleted Phase `json:"lastCompleted"`
	FailedPhase   Phase `json:"failedPhase,omitempty"`

	Conditions []metav1.Condition `json:"conditions"`
}

func (s *Summary) GetConditions() []metav1.Condition {
	return s.Conditions
}

func (s *Summary) SetConditions(c []metav1.Condition) {
	s.Conditions = c
}
