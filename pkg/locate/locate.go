// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package locate discovers existing cloud resources of a given kind within a
// scope. It is read-only and never guesses among multiple candidates: with no
// explicit name, anything other than exactly one match is an error.
package locate

import (
	"context"
	"fmt"

	"github.com/telekom/appgw-provisioner/pkg/provider"
)

// Locate resolves a single resource of kind within scope.
//
// With an explicit name it resolves exactly that resource and returns a
// NotFoundError when absent. Without one it enumerates: zero candidates is a
// NotFoundError, exactly one is returned (auto-detect), more than one is an
// AmbiguousError carrying the candidate names.
func Locate(ctx context.Context, finder provider.ResourceFinder, scope provider.Scope, kind provider.ResourceKind, explicitName string) (provider.ManagedResource, error) {
	if explicitName != "" {
		matches, err := finder.Find(ctx, scope, kind, provider.Filter{Name: explicitName})
		if err != nil {
			return provider.ManagedResource{}, fmt.Errorf("finding %s %q: %w", kind, explicitName, err)
		}
		if len(matches) == 0 {
			return provider.ManagedResource{}, &provider.NotFoundError{Kind: kind, Name: explicitName, Scope: scope}
		}
		return matches[0], nil
	}

	matches, err := finder.Find(ctx, scope, kind, provider.Filter{})
	if err != nil {
		return provider.ManagedResource{}, fmt.Errorf("enumerating %s resources: %w", kind, err)
	}
	switch len(matches) {
	case 0:
		return provider.ManagedResource{}, &provider.NotFoundError{Kind: kind, Scope: scope}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return provider.ManagedResource{}, &provider.AmbiguousError{Kind: kind, Scope: scope, Candidates: names}
	}
}
