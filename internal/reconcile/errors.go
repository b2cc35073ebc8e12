package reconcile

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/addonctl/addonctl/internal/util/retry"
)

// DependencyBlockedError marks a resource that was never attempted because a
// dependency did not reach a successful terminal state.
type DependencyBlockedError struct {
	ID      string
	Blocked string
}

func (e *DependencyBlockedError) Error() string {
	return "blocked by failed dependency " + e.Blocked
}

// ProbeError wraps a probe failure that exhausted its retry budget. Probe
// failures are transient by construction; a permanent API error during
// probing still surfaces here once retries stop.
type ProbeError struct {
	ID  string
	Err error
}

func (e *ProbeError) Error() string {
	return "probing " + e.ID + ": " + e.Err.Error()
}

func (e *ProbeError) Unwrap() error { return e.Err }

// ReconcileError wraps a mutation failure. Permanent records whether further
// retries were judged pointless.
type ReconcileError struct {
	ID        string
	Permanent bool
	Err       error
}

func (e *ReconcileError) Error() string {
	return "reconciling " + e.ID + ": " + e.Err.Error()
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// permanentAPICodes are cloud API error codes that retrying cannot fix:
// permission problems, malformed requests, and exhausted quotas.
var permanentAPICodes = map[string]bool{
	"AccessDenied":            true,
	"AccessDeniedException":   true,
	"UnauthorizedOperation":   true,
	"UnauthorizedAccess":      true,
	"InvalidClientTokenId":    true,
	"MalformedPolicyDocument": true,
	"ValidationError":         true,
	"InvalidInput":            true,
	"InvalidParameterValue":   true,
	"LimitExceeded":           true,
	"QuotaExceeded":           true,
}

// alreadyExistsAPICodes are cloud API error codes meaning the create raced a
// prior run. External systems do not guarantee atomic check-then-create, so
// these read as success-with-skip, never failure.
var alreadyExistsAPICodes = map[string]bool{
	"EntityAlreadyExists":            true,
	"AlreadyExistsException":         true,
	"ResourceAlreadyExistsException": true,
	"InvalidPermission.Duplicate":    true,
}

// IsAlreadyExists reports whether the error means the resource was already
// present when a create was attempted.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsAlreadyExists(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return alreadyExistsAPICodes[apiErr.ErrorCode()]
	}
	return false
}

// notFoundAPICodes are cloud API error codes meaning the resource was gone
// when a delete was attempted.
var notFoundAPICodes = map[string]bool{
	"NoSuchEntity":               true,
	"NoSuchEntityException":      true,
	"NotFound":                   true,
	"ResourceNotFoundException":  true,
	"InvalidPermission.NotFound": true,
}

// IsNotFound reports whether the error means the resource was already gone.
// During removal this reads as success.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsNotFound(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return notFoundAPICodes[apiErr.ErrorCode()]
	}
	return false
}

// IsPermanent reports whether the error is not worth retrying. Unknown
// errors default to transient: retrying a permanent error wastes a retry
// budget, while giving up on a transient one loses a convergence the next
// attempt would have won.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if retry.IsFatal(err) {
		return true
	}
	if apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err) ||
		apierrors.IsInvalid(err) || apierrors.IsBadRequest(err) ||
		apierrors.IsMethodNotSupported(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return permanentAPICodes[apiErr.ErrorCode()]
	}
	return false
}

// IsTransient reports whether the error should be retried with backoff.
// Context cancellation is neither transient nor permanent; the retry loop
// observes it directly.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return true
}

// classify wraps permanent errors for the retry loop so they are not
// retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return retry.Fatal(err)
	}
	return err
}
