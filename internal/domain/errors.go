package domain

import "errors"

// Error taxonomy shared by the store, the connection manager and the API
// layer. The API layer maps each kind to an HTTP status; workers log and
// act on them internally.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrServiceNotFound      = errors.New("email service not found")
	ErrServicesNotAvailable = errors.New("no email services available")

	ErrBoxNotFound       = errors.New("mailbox not found")
	ErrBoxAlreadyExists  = errors.New("mailbox already exists")
	ErrBoxNotOwnedByUser = errors.New("mailbox not owned by user")
	ErrBoxesNotFound     = errors.New("no mailboxes found")

	ErrFiltersNotFound = errors.New("no filters found")

	ErrCredentialsInvalid = errors.New("credentials invalid")
	ErrServerTimeout      = errors.New("server timeout")
	ErrNotConnected       = errors.New("not connected")
)
