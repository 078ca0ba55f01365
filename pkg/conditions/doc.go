// Package conditions provides typed helpers for getting, setting, and
// querying metav1.Condition slices on objects that track convergence phase
// state, including convenience constructors for True/False/Unknown
// conditions.
package conditions
