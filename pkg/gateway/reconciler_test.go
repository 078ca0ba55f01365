// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/telekom/appgw-provisioner/pkg/provider"
	"github.com/telekom/appgw-provisioner/pkg/provider/memory"
)

var (
	testScope = provider.Scope{Subscription: "sub-1", ResourceGroup: "rg-1"}
	testRef   = provider.SecretReference{VaultName: "kv-1", SecretName: "gateway-tls"}
)

const testHost = "shop.example.com"

func TestEnsureHTTPSListenerConvergesPlaintextGateway(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	res := world.AddGateway(testScope, "appgw")
	r := NewReconciler(world, logr.Discard())

	listener, err := r.EnsureHTTPSListener(ctx, res, 443, testRef, testHost)
	if err != nil {
		t.Fatalf("EnsureHTTPSListener() error = %v", err)
	}

	want := provider.Listener{
		Name:             "https-listener",
		FrontendPortName: "port-443",
		Protocol:         provider.ProtocolHTTPS,
		HostName:         testHost,
		CertificateRef:   "https://kv-1.vault.azure.net/secrets/gateway-tls",
	}
	if diff := cmp.Diff(want, listener); diff != "" {
		t.Errorf("listener mismatch (-want +got):\n%s", diff)
	}

	gw, err := world.GetGateway(ctx, res)
	if err != nil {
		t.Fatalf("GetGateway() error = %v", err)
	}
	got, ok := gw.ListenerOnPort(443)
	if !ok {
		t.Fatal("no listener bound to port 443 after convergence")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stored listener mismatch (-want +got):\n%s", diff)
	}

	if len(gw.RoutingRules) != 1 {
		t.Fatalf("RoutingRules = %d, want 1", len(gw.RoutingRules))
	}
	if gw.RoutingRules[0].ListenerName != "https-listener" {
		t.Errorf("rule listener = %q, want repointed at the HTTPS listener", gw.RoutingRules[0].ListenerName)
	}

	backend := gw.Backends[0]
	if backend.Protocol != provider.ProtocolHTTPS || backend.Port != 443 {
		t.Errorf("backend transport = %s:%d, want HTTPS:443", backend.Protocol, backend.Port)
	}
	if backend.HostName != testHost {
		t.Errorf("backend host = %q, want the externally used domain %q", backend.HostName, testHost)
	}
}

func TestEnsureHTTPSListenerIdempotent(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	res := world.AddGateway(testScope, "appgw")
	r := NewReconciler(world, logr.Discard())

	first, err := r.EnsureHTTPSListener(ctx, res, 443, testRef, testHost)
	if err != nil {
		t.Fatalf("EnsureHTTPSListener() error = %v", err)
	}
	converged := world.Mutations()

	second, err := r.EnsureHTTPSListener(ctx, res, 443, testRef, testHost)
	if err != nil {
		t.Fatalf("EnsureHTTPSListener() second run error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run returned different listener (-first +second):\n%s", diff)
	}
	if got := world.Mutations(); got != converged {
		t.Errorf("Mutations() = %d after second run, want unchanged %d", got, converged)
	}
}

func TestEnsureHTTPSListenerReplacesConflictingListener(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	res := world.AddGateway(testScope, "appgw")

	// A plaintext listener already occupies the target port.
	if err := world.AddFrontendPort(ctx, res, provider.FrontendPort{Name: "port-443", Port: 443}); err != nil {
		t.Fatalf("AddFrontendPort() error = %v", err)
	}
	if err := world.UpsertListener(ctx, res, provider.Listener{
		Name:             "legacy",
		FrontendPortName: "port-443",
		Protocol:         provider.ProtocolHTTP,
	}); err != nil {
		t.Fatalf("UpsertListener() error = %v", err)
	}

	r := NewReconciler(world, logr.Discard())
	listener, err := r.EnsureHTTPSListener(ctx, res, 443, testRef, testHost)
	if err != nil {
		t.Fatalf("EnsureHTTPSListener() error = %v", err)
	}
	if listener.Name != "https-listener" {
		t.Errorf("listener = %q, want the HTTPS listener", listener.Name)
	}

	gw, err := world.GetGateway(ctx, res)
	if err != nil {
		t.Fatalf("GetGateway() error = %v", err)
	}
	for _, l := range gw.Listeners {
		if l.Name == "legacy" {
			t.Error("conflicting listener survived convergence")
		}
	}
	ports := 0
	for _, fp := range gw.FrontendPorts {
		if fp.Port == 443 {
			ports++
		}
	}
	if ports != 1 {
		t.Errorf("port 443 bindings = %d, want exactly 1", ports)
	}
}

func TestEnsureHTTPSListenerUpdatesDriftedHost(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	res := world.AddGateway(testScope, "appgw")
	r := NewReconciler(world, logr.Discard())

	if _, err := r.EnsureHTTPSListener(ctx, res, 443, testRef, "old.example.com"); err != nil {
		t.Fatalf("EnsureHTTPSListener() error = %v", err)
	}
	listener, err := r.EnsureHTTPSListener(ctx, res, 443, testRef, testHost)
	if err != nil {
		t.Fatalf("EnsureHTTPSListener() with new host error = %v", err)
	}
	if listener.HostName != testHost {
		t.Errorf("listener host = %q, want %q", listener.HostName, testHost)
	}

	gw, err := world.GetGateway(ctx, res)
	if err != nil {
		t.Fatalf("GetGateway() error = %v", err)
	}
	got, ok := gw.ListenerOnPort(443)
	if !ok {
		t.Fatal("no listener bound to port 443")
	}
	if got.HostName != testHost {
		t.Errorf("stored listener host = %q, want %q", got.HostName, testHost)
	}
}

// orderRecorder notes the sequence of mutating gateway calls.
type orderRecorder struct {
	provider.GatewayService
	calls []string
}

func (o *orderRecorder) AddFrontendPort(ctx context.Context, res provider.ManagedResource, port provider.FrontendPort) error {
	o.calls = append(o.calls, "AddFrontendPort")
	return o.GatewayService.AddFrontendPort(ctx, res, port)
}

func (o *orderRecorder) RemoveFrontendPort(ctx context.Context, res provider.ManagedResource, name string) error {
	o.calls = append(o.calls, "RemoveFrontendPort")
	return o.GatewayService.RemoveFrontendPort(ctx, res, name)
}

func (o *orderRecorder) UpsertListener(ctx context.Context, res provider.ManagedResource, l provider.Listener) error {
	o.calls = append(o.calls, "UpsertListener")
	return o.GatewayService.UpsertListener(ctx, res, l)
}

func (o *orderRecorder) RemoveListener(ctx context.Context, res provider.ManagedResource, name string) error {
	o.calls = append(o.calls, "RemoveListener")
	return o.GatewayService.RemoveListener(ctx, res, name)
}

func (o *orderRecorder) UpsertRoutingRule(ctx context.Context, res provider.ManagedResource, rule provider.RoutingRule) error {
	o.calls = append(o.calls, "UpsertRoutingRule")
	return o.GatewayService.UpsertRoutingRule(ctx, res, rule)
}

func (o *orderRecorder) UpdateBackendSettings(ctx context.Context, res provider.ManagedResource, s provider.BackendSettings) error {
	o.calls = append(o.calls, "UpdateBackendSettings")
	return o.GatewayService.UpdateBackendSettings(ctx, res, s)
}

func TestRoutingRuleRepointedLast(t *testing.T) {
	ctx := context.Background()
	world := memory.New()
	res := world.AddGateway(testScope, "appgw")

	rec := &orderRecorder{GatewayService: world}
	r := NewReconciler(rec, logr.Discard())
	if _, err := r.EnsureHTTPSListener(ctx, res, 443, testRef, testHost); err != nil {
		t.Fatalf("EnsureHTTPSListener() error = %v", err)
	}

	if len(rec.calls) == 0 {
		t.Fatal("no gateway calls recorded")
	}
	if last := rec.calls[len(rec.calls)-1]; last != "UpsertRoutingRule" {
		t.Errorf("last mutation = %q, want the rule repoint as the final step (order: %v)", last, rec.calls)
	}
}
