package tenant

import "errors"

var (
	// ErrInvalidIdentifier is returned when a candidate violates the slug format.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	// ErrTenantNotFound is returned when no record exists for an identifier.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantNotReady is returned when a record exists but has not settled to Ready.
	ErrTenantNotReady = errors.New("tenant is not ready")

	// ErrNoTenantInContext is returned when no tenant is bound to the context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrProvisioningFailed is returned when the allocation step failed. The
	// tenant is allowed a fresh attempt on the next reservation.
	ErrProvisioningFailed = errors.New("tenant provisioning failed")

	// ErrProvisioningTimeout is returned when a caller exceeded the bounded
	// wait for an in-flight provisioning. The condition is retryable.
	ErrProvisioningTimeout = errors.New("timed out waiting for tenant provisioning")

	// ErrInvalidStateTransition indicates a caller broke the store protocol,
	// e.g. marking a record Ready that is not Provisioning. This is a
	// programming-invariant breach, never a user-facing condition.
	ErrInvalidStateTransition = errors.New("invalid tenant state transition")
)
