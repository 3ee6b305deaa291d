package dance

import (
	"errors"
	"fmt"
)

// ErrStateMismatch means the callback presented a CSRF state different from
// the one issued at login. Fatal to the current dance; never retried
// silently, never reaches token exchange.
var ErrStateMismatch = errors.New("dance: oauth state mismatch")

// ErrNoTransientStore means a dance step that must stash or consume per-dance
// state ran without the transient collaborator in the context.
var ErrNoTransientStore = errors.New("dance: no transient store in context")

// ProtocolError is a malformed or rejected exchange with the provider.
// Recoverable by restarting the dance from login.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("dance: protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ProviderUnreachableError is a network-layer failure talking to the
// provider. Recoverable by retry.
type ProviderUnreachableError struct {
	Op  string
	Err error
}

func (e *ProviderUnreachableError) Error() string {
	return fmt.Sprintf("dance: provider unreachable during %s: %v", e.Op, e.Err)
}

func (e *ProviderUnreachableError) Unwrap() error { return e.Err }

// ProviderDenied carries the provider's explicit error response from the
// callback query (error, error_description, error_uri). Not retryable
// without user re-consent; surfaced through the error event, not returned
// from Callback.
type ProviderDenied struct {
	Code        string
	Description string
	URI         string
}

func (e *ProviderDenied) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("dance: provider denied: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("dance: provider denied: %s", e.Code)
}
