package internal

import (
	"errors"
)

var (
	// ErrMissingDimension is returned when a resource request does not carry
	// enough information to derive the remaining dimensions.
	ErrMissingDimension = errors.New("missing resource dimension")

	// ErrUnsatisfiableResource is returned when explicitly requested values
	// contradict the hardware topology.
	ErrUnsatisfiableResource = errors.New("unsatisfiable resource request")

	// ErrInvalidRequest is returned when a resource request carries malformed
	// values, such as a non-positive task count.
	ErrInvalidRequest = errors.New("invalid resource request")

	ErrUnknownLauncher = errors.New("unknown launcher variant")
	ErrProfileNotFound = errors.New("topology profile not found")
)
