package wizard

import "errors"

// Validation errors for the interactive wizard.
var (
	errClusterNameRequired = errors.New("cluster name is required")
	errClusterNameInvalid  = errors.New("cluster name must be 1-40 lowercase alphanumeric characters or hyphens, starting and ending with alphanumeric")
	errAccountIDInvalid    = errors.New("account id must be a 12-digit number")
)
