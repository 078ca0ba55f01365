// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package retry decorates provider reads with bounded exponential backoff on
// transient faults and client-side rate limiting. Mutating operations are
// never retried here; convergence handles those by re-running the whole flow.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/telekom/appgw-provisioner/pkg/metrics"
	"github.com/telekom/appgw-provisioner/pkg/provider"
)

// NewBoundedBackoff returns the backoff parameter set used for transient
// provider read faults: a handful of attempts over a few seconds, never
// forever.
func NewBoundedBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: 250 * time.Millisecond,
		Factor:   2.0,
		Steps:    5,
		Jitter:   0.1,
	}
}

// Finder wraps a ResourceFinder with rate limiting and transient-fault
// retries.
type Finder struct {
	inner   provider.ResourceFinder
	limiter *rate.Limiter
	backoff wait.Backoff
	log     logr.Logger
}

var _ provider.ResourceFinder = (*Finder)(nil)

// NewFinder decorates inner. A nil limiter disables rate limiting.
func NewFinder(inner provider.ResourceFinder, limiter *rate.Limiter, log logr.Logger) *Finder {
	return &Finder{
		inner:   inner,
		limiter: limiter,
		backoff: NewBoundedBackoff(),
		log:     log,
	}
}

func (f *Finder) Find(ctx context.Context, scope provider.Scope, kind provider.ResourceKind, filter provider.Filter) ([]provider.ManagedResource, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for provider rate limiter: %w", err)
		}
	}

	var (
		out     []provider.ManagedResource
		lastErr error
	)
	err := wait.ExponentialBackoffWithContext(ctx, f.backoff, func(ctx context.Context) (bool, error) {
		resources, err := f.inner.Find(ctx, scope, kind, filter)
		if err == nil {
			out = resources
			metrics.ProviderCalls.WithLabelValues("Find", metrics.ResultSuccess).Inc()
			return true, nil
		}
		if provider.IsTransient(err) {
			lastErr = err
			metrics.ProviderRetries.Inc()
			f.log.V(1).Info("transient provider fault, retrying", "kind", kind, "error", err.Error())
			return false, nil
		}
		metrics.ProviderCalls.WithLabelValues("Find", metrics.ResultError).Inc()
		return false, err
	})
	if err != nil {
		if lastErr != nil && wait.Interrupted(err) {
			metrics.ProviderCalls.WithLabelValues("Find", metrics.ResultError).Inc()
			return nil, fmt.Errorf("retries exhausted: %w", lastErr)
		}
		return nil, err
	}
	return out, nil
}
