package service

import "errors"

// Sentinel errors returned by the service layer. Callers match them with
// errors.Is; the error text is the user-visible message.
var (
	// Invalid input (HTTP 400).
	ErrMissingFields   = errors.New("Username and password required")
	ErrInvalidInput    = errors.New("Username must be at least 3 characters and password at least 6 characters")
	ErrConflict        = errors.New("Username already exists")
	ErrNoFile          = errors.New("No file uploaded")
	ErrPayloadTooLarge = errors.New("File too large (max 10MB)")

	// Authentication failures (HTTP 401).
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrUnauthenticated    = errors.New("Authentication required")

	// Unknown file id or missing blob (HTTP 404).
	ErrNotFound = errors.New("File not found")
)
