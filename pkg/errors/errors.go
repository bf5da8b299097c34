package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Configuration-build errors
	ErrInvalidShareLink     = errors.New("invalid share link")
	ErrUpstreamParseFailure = errors.New("share link converter returned malformed payload")
	ErrPortUnavailable      = errors.New("port unavailable")
	ErrMissingPreference    = errors.New("required preference not set")
	ErrConfigSerialization  = errors.New("failed to serialize configuration")

	// Lifecycle errors
	ErrTunnelConflict     = errors.New("another tunnel is active")
	ErrInterfaceSetup     = errors.New("network interface setup failed")
	ErrCoreLaunch         = errors.New("proxy core launch failed")
	ErrAlreadyConnected   = errors.New("tunnel is already connected or connecting")
	ErrNotConnected       = errors.New("tunnel is not connected")
	ErrStopTimeout        = errors.New("timed out waiting for tunnel to stop")
	ErrSessionInvalid     = errors.New("tunnel session is invalid and must be re-provisioned")
	ErrCoreBinaryNotFound = errors.New("proxy core binary not found")
)

// BuildError wraps a configuration-build failure with the offending link.
// The link is truncated in the message so credentials are not echoed in full.
type BuildError struct {
	Link string
	Err  error
}

func (e *BuildError) Error() string {
	link := e.Link
	if len(link) > 24 {
		link = link[:24] + "..."
	}
	return fmt.Sprintf("config build (%s): %v", link, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ConflictError reports which other session blocked startup. It is
// user-actionable: the caller should prompt to switch configurations
// rather than retry.
type ConflictError struct {
	Profile string
	Status  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("tunnel %q is %s: %v", e.Profile, e.Status, ErrTunnelConflict)
}

func (e *ConflictError) Unwrap() error {
	return ErrTunnelConflict
}

// PreferenceError identifies which preference key was missing or malformed.
type PreferenceError struct {
	Key string
	Err error
}

func (e *PreferenceError) Error() string {
	return fmt.Sprintf("preference %q: %v", e.Key, e.Err)
}

func (e *PreferenceError) Unwrap() error {
	return e.Err
}

// LaunchError wraps a failure from one of the external launch primitives.
type LaunchError struct {
	Component string // "core", "translator", "interface"
	Err       error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Is and As mirror the standard library so callers don't need a second
// errors import alongside this package.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
