// Package metrics defines and registers Prometheus metrics for the provisioner,
// covering convergence phase counts/durations, provider call and retry totals,
// certificate rotations and gateway listener mutations. All collectors live on
// a dedicated registry served by the ops endpoint.
package metrics
