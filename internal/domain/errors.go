package domain

import "errors"

// Error classes returned by the registry and the engine connectors.
// Callers classify with errors.Is; messages carry the detail.
var (
	ErrValidation  = errors.New("validation error")
	ErrConnection  = errors.New("connection error")
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
	ErrQuery       = errors.New("query error")
)
