// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator sequences the convergence phases: validate, locate
// gateway, ensure vault, ensure certificate, ensure identity and access,
// ensure listener. Each phase re-checks its own precondition at call time;
// the orchestrator adds only ordering and early termination. On a fatal
// failure the run aborts immediately and leaves each phase in its last valid
// state; re-running the whole flow resumes convergence, nothing is rolled
// back.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"k8s.io/utils/clock"

	"github.com/telekom/appgw-provisioner/internal/config"
	"github.com/telekom/appgw-provisioner/pkg/certs"
	"github.com/telekom/appgw-provisioner/pkg/conditions"
	"github.com/telekom/appgw-provisioner/pkg/gateway"
	"github.com/telekom/appgw-provisioner/pkg/identity"
	"github.com/telekom/appgw-provisioner/pkg/locate"
	"github.com/telekom/appgw-provisioner/pkg/metrics"
	"github.com/telekom/appgw-provisioner/pkg/provider"
	"github.com/telekom/appgw-provisioner/pkg/tracing"
)

// Phase names one step of the fixed convergence order.
type Phase string

const (
	PhaseValidate          Phase = "Validate"
	PhaseLocateGateway     Phase = "LocateGateway"
	PhaseEnsureVault       Phase = "EnsureVault"
	PhaseEnsureCertificate Phase = "EnsureCertificate"
	PhaseEnsureAccess      Phase = "EnsureAccess"
	PhaseEnsureListener    Phase = "EnsureListener"
)

const (
	ReasonSucceeded conditions.ConditionReason = "Succeeded"
	ReasonFailed    conditions.ConditionReason = "Failed"
)

// Orchestrator drives a full convergence run.
type Orchestrator struct {
	api     provider.API
	cfg     config.Config
	certs   *certs.Manager
	binder  *identity.Binder
	gateway *gateway.Reconciler
	tracer  trace.Tracer
	log     logr.Logger
	clk     clock.Clock
	confirm certs.ConfirmFunc
}

type Option func(*Orchestrator)

func WithLogger(log logr.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithClock injects the time source threaded into the certificate manager
// and the identity binder, so tests simulate expiry and propagation delay
// without real waiting.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clk = c }
}

// WithConfirm injects the operator confirmation used for near-expiry
// certificate regeneration prompts.
func WithConfirm(f certs.ConfirmFunc) Option {
	return func(o *Orchestrator) { o.confirm = f }
}

func New(api provider.API, cfg config.Config, opts ...Option) *Orchestrator {
	cfg.ApplyDefaults()
	o := &Orchestrator{
		api:    api,
		cfg:    cfg,
		tracer: noop.NewTracerProvider().Tracer(tracing.TracerName),
		log:    logr.Discard(),
		clk:    clock.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.certs = certs.NewManager(api.Secrets,
		certs.WithClock(o.clk),
		certs.WithRenewBefore(cfg.RenewBefore),
		certs.WithConfirm(o.confirm),
		certs.WithLogger(o.log.WithName("certs")),
	)
	o.binder = identity.NewBinder(api.Identities, api.Authz,
		identity.WithClock(o.clk),
		identity.WithPropagationWait(cfg.PropagationWait),
		identity.WithLogger(o.log.WithName("identity")),
	)
	o.gateway = gateway.NewReconciler(api.Gateways, o.log.WithName("gateway"))
	return o
}

// Run executes the phases in order and returns the run summary. The summary
// is returned on failure too, with FailedPhase and LastCompleted populated so
// a re-invocation resumes correctly.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	phases := []struct {
		name Phase
		fn   func(context.Context, *Summary) error
	}{
		{PhaseValidate, o.validate},
		{PhaseLocateGateway, o.locateGateway},
		{PhaseEnsureVault, o.ensureVault},
		{PhaseEnsureCertificate, o.ensureCertificate},
		{PhaseEnsureAccess, o.ensureAccess},
		{PhaseEnsureListener, o.ensureListener},
	}

	for _, phase := range phases {
		if err := o.runPhase(ctx, summary, phase.name, phase.fn); err != nil {
			summary.FailedPhase = phase.name
			last := string(summary.LastCompleted)
			if last == "" {
				last = "none"
			}
			return summary, fmt.Errorf("phase %s failed (last completed phase: %s): %w", phase.name, last, err)
		}
		summary.LastCompleted = phase.name
	}

	o.log.Info("convergence complete",
		"gateway", summary.Gateway.Name,
		"vault", summary.Vault.Name,
		"secretRef", summary.SecretRef.URI(),
		"listener", summary.Listener.Name,
	)
	return summary, nil
}

func (o *Orchestrator) runPhase(ctx context.Context, summary *Summary, name Phase, fn func(context.Context, *Summary) error) error {
	ctx, span := o.tracer.Start(ctx, "phase/"+string(name),
		trace.WithAttributes(
			tracing.AttrPhase.String(string(name)),
			tracing.AttrScope.String(o.cfg.Scope().String()),
		))
	defer span.End()

	o.log.V(1).Info("running phase", "phase", name)
	start := time.Now()
	err := fn(ctx, summary)
	metrics.PhaseDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PhaseTotal.WithLabelValues(string(name), metrics.ResultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		conditions.MarkFalse(summary, conditions.ConditionType(name), ReasonFailed, "%s", err.Error())
		return err
	}
	metrics.PhaseTotal.WithLabelValues(string(name), metrics.ResultSuccess).Inc()
	conditions.MarkTrue(summary, conditions.ConditionType(name), ReasonSucceeded, "phase completed")
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, summary *Summary) error {
	return o.cfg.Validate()
}

func (o *Orchestrator) locateGateway(ctx context.Context, summary *Summary) error {
	gw, err := locate.Locate(ctx, o.api.Resources, o.cfg.Scope(), provider.KindGateway, o.cfg.GatewayName)
	if err != nil {
		return err
	}
	summary.Gateway = gw
	trace.SpanFromContext(ctx).SetAttributes(
		tracing.AttrResourceKind.String(string(gw.Kind)),
		tracing.AttrResourceName.String(gw.Name),
	)
	o.log.V(1).Info("gateway located", "name", gw.Name, "state", gw.ProvisioningState)
	return nil
}

// ensureVault resolves the secret store: an explicit name is a get-or-create,
// auto-detect uses an existing single vault and only creates when the scope
// holds none. Two vaults with no explicit name is an ambiguity error, never a
// guess.
func (o *Orchestrator) ensureVault(ctx context.Context, summary *Summary) error {
	name := o.cfg.VaultName
	if name == "" {
		existing, err := locate.Locate(ctx, o.api.Resources, o.cfg.Scope(), provider.KindVault, "")
		switch {
		case err == nil:
			summary.Vault = existing
			o.log.V(1).Info("vault auto-detected", "name", existing.Name)
			return nil
		case provider.IsNotFound(err):
			name = summary.Gateway.Name + "-kv"
		default:
			return err
		}
	}

	vault, err := o.api.Secrets.EnsureVault(ctx, o.cfg.Scope(), name)
	if err != nil {
		return fmt.Errorf("ensuring vault %q: %w", name, err)
	}
	summary.Vault = vault
	trace.SpanFromContext(ctx).SetAttributes(tracing.AttrVault.String(vault.Name))
	return nil
}

func (o *Orchestrator) ensureCertificate(ctx context.Context, summary *Summary) error {
	trace.SpanFromContext(ctx).SetAttributes(tracing.AttrForceRotate.Bool(o.cfg.ForceRotate))
	ref, err := o.certs.EnsureCertificate(ctx, summary.Vault.Name, o.cfg.SecretName, o.cfg.Domain, o.cfg.ForceRotate)
	if err != nil {
		return err
	}
	summary.SecretRef = ref
	return nil
}

func (o *Orchestrator) ensureAccess(ctx context.Context, summary *Summary) error {
	id, err := o.binder.EnsureAccess(ctx, summary.Gateway, summary.Vault, o.cfg.Role)
	if err != nil {
		return err
	}
	summary.Identity = id
	return nil
}

func (o *Orchestrator) ensureListener(ctx context.Context, summary *Summary) error {
	listener, err := o.gateway.EnsureHTTPSListener(ctx, summary.Gateway, o.cfg.FrontendPort, summary.SecretRef, o.cfg.Domain)
	if err != nil {
		return err
	}
	summary.Listener = listener
	trace.SpanFromContext(ctx).SetAttributes(tracing.AttrListener.String(listener.Name))
	return nil
}
