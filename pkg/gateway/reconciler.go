// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package gateway drives an application gateway from its current listener
// configuration to the desired HTTPS configuration. The certificate is always
// attached by versionless reference; pinning a version would defeat
// zero-downtime rotation.
package gateway

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/telekom/appgw-provisioner/pkg/metrics"
	"github.com/telekom/appgw-provisioner/pkg/provider"
)

const httpsListenerName = "https-listener"

// Reconciler converges gateway listener state.
type Reconciler struct {
	svc provider.GatewayService
	log logr.Logger
}

func NewReconciler(svc provider.GatewayService, log logr.Logger) *Reconciler {
	return &Reconciler{svc: svc, log: log}
}

func portName(port int32) string {
	return fmt.Sprintf("port-%d", port)
}

// EnsureHTTPSListener converges the gateway to serve HTTPS on frontendPort
// with the certificate at ref and host as the externally used domain.
//
// An HTTPS listener already bound to ref on the target port is returned
// unchanged; a converged gateway sees only reads. A conflicting listener on
// the target port is removed together with its frontend port binding before
// the HTTPS listener is created, because ports are exclusive. The routing
// rule is repointed last, so traffic only shifts once the listener is fully
// formed.
func (r *Reconciler) EnsureHTTPSListener(ctx context.Context, resource provider.ManagedResource, frontendPort int32, ref provider.SecretReference, host string) (provider.Listener, error) {
	gw, err := r.svc.GetGateway(ctx, resource)
	if err != nil {
		return provider.Listener{}, fmt.Errorf("reading gateway %q: %w", resource.Name, err)
	}

	if current, ok := gw.ListenerOnPort(frontendPort); ok {
		if current.Protocol == provider.ProtocolHTTPS &&
			current.CertificateRef == ref.URI() &&
			current.HostName == host {
			r.log.V(1).Info("HTTPS listener already converged", "listener", current.Name, "port", frontendPort)
			if err := r.ensureRouting(ctx, resource, gw, current.Name, host); err != nil {
				return provider.Listener{}, err
			}
			return current, nil
		}

		// A conflicting listener occupies the target port. Free the port
		// before creating the HTTPS listener; old bindings block new ones.
		r.log.Info("removing conflicting listener on target port",
			"listener", current.Name, "protocol", current.Protocol, "port", frontendPort)
		if err := r.svc.RemoveListener(ctx, resource, current.Name); err != nil {
			return provider.Listener{}, fmt.Errorf("removing listener %q: %w", current.Name, err)
		}
		metrics.ListenerMutations.WithLabelValues(metrics.ActionRemoveListener).Inc()
		if err := r.svc.RemoveFrontendPort(ctx, resource, current.FrontendPortName); err != nil {
			return provider.Listener{}, fmt.Errorf("removing frontend port %q: %w", current.FrontendPortName, err)
		}
		metrics.ListenerMutations.WithLabelValues(metrics.ActionRemovePort).Inc()

		gw, err = r.svc.GetGateway(ctx, resource)
		if err != nil {
			return provider.Listener{}, fmt.Errorf("re-reading gateway %q: %w", resource.Name, err)
		}
	}

	fpName := portName(frontendPort)
	if _, ok := gw.PortByName(fpName); !ok {
		if err := r.svc.AddFrontendPort(ctx, resource, provider.FrontendPort{Name: fpName, Port: frontendPort}); err != nil {
			return provider.Listener{}, fmt.Errorf("adding frontend port %d: %w", frontendPort, err)
		}
		metrics.ListenerMutations.WithLabelValues(metrics.ActionAddPort).Inc()
	}

	desired := provider.Listener{
		Name:             httpsListenerName,
		FrontendPortName: fpName,
		Protocol:         provider.ProtocolHTTPS,
		HostName:         host,
		CertificateRef:   ref.URI(),
	}
	if err := r.svc.UpsertListener(ctx, resource, desired); err != nil {
		return provider.Listener{}, fmt.Errorf("creating HTTPS listener: %w", err)
	}
	metrics.ListenerMutations.WithLabelValues(metrics.ActionUpsertListener).Inc()
	r.log.Info("HTTPS listener created", "listener", desired.Name, "port", frontendPort, "certificateRef", desired.CertificateRef)

	if err := r.ensureRouting(ctx, resource, gw, desired.Name, host); err != nil {
		return provider.Listener{}, err
	}
	return desired, nil
}

// ensureRouting aligns the backend settings with the HTTPS scheme and
// repoints the routing rule at the listener. The rule repoint is the final
// mutation of the whole flow. The host header must equal the externally used
// domain or host-bound redirect flows fail downstream.
func (r *Reconciler) ensureRouting(ctx context.Context, resource provider.ManagedResource, gw *provider.Gateway, listenerName, host string) error {
	rule, ok := ruleForListener(gw, listenerName)
	if !ok {
		return &provider.NotFoundError{Kind: "RoutingRule", Scope: resource.Scope}
	}

	if backend, ok := backendByName(gw, rule.BackendName); ok {
		desired := backend
		desired.Protocol = provider.ProtocolHTTPS
		desired.Port = 443
		desired.HostName = host
		if backend != desired {
			if err := r.svc.UpdateBackendSettings(ctx, resource, desired); err != nil {
				return fmt.Errorf("updating backend settings %q: %w", desired.Name, err)
			}
			metrics.ListenerMutations.WithLabelValues(metrics.ActionUpdateBackend).Inc()
			r.log.Info("aligned backend transport with listener scheme",
				"backend", desired.Name, "hostName", host)
		}
	}

	if rule.ListenerName != listenerName {
		updated := rule
		updated.ListenerName = listenerName
		if err := r.svc.UpsertRoutingRule(ctx, resource, updated); err != nil {
			return fmt.Errorf("repointing routing rule %q: %w", rule.Name, err)
		}
		metrics.ListenerMutations.WithLabelValues(metrics.ActionRepointRule).Inc()
		r.log.Info("repointed routing rule", "rule", rule.Name, "listener", listenerName)
	}
	return nil
}

// ruleForListener picks the rule to converge: the one already pointing at
// the listener when present, otherwise the gateway's single rule, otherwise
// the first rule whose listener no longer exists.
func ruleForListener(gw *provider.Gateway, listenerName string) (provider.RoutingRule, bool) {
	for _, rule := range gw.RoutingRules {
		if rule.ListenerName == listenerName {
			return rule, true
		}
	}
	if len(gw.RoutingRules) == 1 {
		return gw.RoutingRules[0], true
	}
	for _, rule := range gw.RoutingRules {
		if _, ok := listenerByName(gw, rule.ListenerName); !ok {
			return rule, true
		}
	}
	return provider.RoutingRule{}, false
}

func listenerByName(gw *provider.Gateway, name string) (provider.Listener, bool) {
	for _, l := range gw.Listeners {
		if l.Name == name {
			return l, true
		}
	}
	return provider.Listener{}, false
}

func backendByName(gw *provider.Gateway, name string) (provider.BackendSettings, bool) {
	for _, b := range gw.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return provider.BackendSettings{}, false
}
