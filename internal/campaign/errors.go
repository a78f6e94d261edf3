package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound      = errors.New("campaign not found")
	ErrNoResult      = errors.New("campaign result not available")
	ErrMissingSender = errors.New("sender email is required")
)
