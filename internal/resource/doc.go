// Package resource defines the declarative descriptor model for externally
// managed infrastructure objects.
//
// A [Descriptor] names one cloud or cluster resource (an IAM role, a policy
// attachment, a Helm release, a set of CRDs, a resource tag, ...) together
// with its desired state and the identifiers of the descriptors that must be
// reconciled before it. Descriptors are pure data; the only behavior is
// validation.
package resource
