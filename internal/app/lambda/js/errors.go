package js

import "errors"

var (
	// ErrFunctionMissing is returned when a requested export or method does not exist.
	ErrFunctionMissing = errors.New("algorithm function missing")
	// ErrModuleNotFound reports a name no loaded module answers to.
	ErrModuleNotFound = errors.New("algorithm module not found")
	// ErrInstanceClosed is returned for calls into a released VM.
	ErrInstanceClosed = errors.New("algorithm instance closed")
)
