// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports that a required resource is absent within its scope.
type NotFoundError struct {
	Kind  ResourceKind
	Name  string
	Scope Scope
}

func (e *NotFoundError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("no %s found in %s", e.Kind, e.Scope)
	}
	return fmt.Sprintf("%s %q not found in %s", e.Kind, e.Name, e.Scope)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// AmbiguousError reports that multiple candidates exist where exactly one was
// expected. The caller must retry with an explicit name.
type AmbiguousError struct {
	Kind       ResourceKind
	Scope      Scope
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("multiple %s resources in %s, specify one of: %s",
		e.Kind, e.Scope, strings.Join(e.Candidates, ", "))
}

// IsAmbiguous reports whether err wraps an AmbiguousError.
func IsAmbiguous(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}

// ConflictError reports a creation conflict for a resource that already
// exists. Callers converging idempotent resources treat it as success.
type ConflictError struct {
	Resource string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Resource)
}

// IsConflict reports whether err wraps a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// TransientError wraps a network or rate-limit fault on a read operation.
// Such faults may be retried a bounded number of times with backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err wraps a TransientError.
func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}
