// Package platform defines the capability interfaces the orchestrator core
// consumes: cloud identity operations, cluster API operations, and package
// deployment. Adapters under internal/platform implement them against real
// providers; the reconciler, not the adapter, encodes idempotency policy.
package platform
