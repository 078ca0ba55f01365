// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package e2e

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/telekom/appgw-provisioner/internal/config"
	"github.com/telekom/appgw-provisioner/internal/orchestrator"
	"github.com/telekom/appgw-provisioner/pkg/provider"
	"github.com/telekom/appgw-provisioner/pkg/provider/memory"
)

var _ = Describe("Convergence", Ordered, func() {
	const (
		domain     = "shop.example.com"
		secretName = "gateway-tls"
		vaultName  = "appgw-kv"
	)

	var (
		ctx   context.Context
		scope provider.Scope
		world *memory.Provider
		cfg   config.Config
	)

	BeforeAll(func() {
		ctx = context.Background()
		scope = provider.Scope{Subscription: "sub-e2e", ResourceGroup: "rg-e2e"}
		world = memory.New()
		cfg = config.Config{
			Subscription:    scope.Subscription,
			ResourceGroup:   scope.ResourceGroup,
			Domain:          domain,
			PropagationWait: time.Millisecond,
		}

		By("Seeding a freshly deployed gateway with a plaintext topology")
		world.AddGateway(scope, "appgw")
	})

	converge := func() (*orchestrator.Summary, error) {
		return orchestrator.New(world.API(), cfg).Run(ctx)
	}

	It("should converge an empty scope to HTTPS end to end", func() {
		summary, err := converge()
		Expect(err).NotTo(HaveOccurred())

		By("Auto-detecting the single gateway")
		Expect(summary.Gateway.Name).To(Equal("appgw"))

		By("Creating a vault derived from the gateway name")
		Expect(summary.Vault.Name).To(Equal(vaultName))

		By("Uploading exactly one certificate version")
		Expect(world.SecretVersions(vaultName, secretName)).To(Equal(1))

		By("Binding the gateway identity to the vault once")
		Expect(summary.Identity.PrincipalID).NotTo(BeEmpty())
		Expect(world.AssignmentCount()).To(Equal(1))

		By("Serving HTTPS on the default frontend port")
		gw, err := world.GetGateway(ctx, summary.Gateway)
		Expect(err).NotTo(HaveOccurred())
		listener, ok := gw.ListenerOnPort(443)
		Expect(ok).To(BeTrue())
		Expect(listener.Protocol).To(Equal(provider.ProtocolHTTPS))
		Expect(listener.HostName).To(Equal(domain))
		Expect(listener.CertificateRef).To(Equal(summary.SecretRef.URI()))

		By("Routing traffic to the HTTPS listener")
		Expect(gw.RoutingRules).To(HaveLen(1))
		Expect(gw.RoutingRules[0].ListenerName).To(Equal(listener.Name))
	})

	It("should perform no mutations on re-execution", func() {
		before := world.Mutations()
		summary, err := converge()
		Expect(err).NotTo(HaveOccurred())
		Expect(world.Mutations()).To(Equal(before))
		Expect(summary.LastCompleted).To(Equal(orchestrator.PhaseEnsureListener))
	})

	It("should rotate the certificate in place when forced", func() {
		refBefore := provider.SecretReference{VaultName: vaultName, SecretName: secretName}
		assignmentsBefore := world.AssignmentCount()

		cfg.ForceRotate = true
		summary, err := converge()
		cfg.ForceRotate = false
		Expect(err).NotTo(HaveOccurred())

		By("Appending a second secret version under the same name")
		Expect(world.SecretVersions(vaultName, secretName)).To(Equal(2))

		By("Keeping the versionless reference and the listener stable")
		Expect(summary.SecretRef).To(Equal(refBefore))
		Expect(summary.Listener.CertificateRef).To(Equal(refBefore.URI()))

		By("Granting no additional role assignment")
		Expect(world.AssignmentCount()).To(Equal(assignmentsBefore))
	})

	It("should name the failing phase and resume after the fault clears", func() {
		world.FailWith("GetGateway", errors.New("gateway service unavailable"))
		summary, err := converge()
		Expect(err).To(HaveOccurred())
		Expect(summary.FailedPhase).To(Equal(orchestrator.PhaseEnsureListener))
		Expect(err.Error()).To(ContainSubstring(string(orchestrator.PhaseEnsureListener)))

		world.FailWith("GetGateway", nil)
		before := world.Mutations()
		summary, err = converge()
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.LastCompleted).To(Equal(orchestrator.PhaseEnsureListener))
		Expect(world.Mutations()).To(Equal(before))
	})
})
