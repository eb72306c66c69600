package bridge

import "errors"

// Common errors returned by the bridge.
var (
	// Lifecycle errors
	ErrNotInitialized     = errors.New("audio bridge is not initialized")
	ErrAlreadyInitialized = errors.New("audio bridge is already initialized")

	// Request errors
	ErrInvalidVolume = errors.New("volume scale must be a finite number")
)
