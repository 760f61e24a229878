package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotSet means the secret has never been stored or was cleared.
	ErrNotSet = errors.New("secret not set")
	// ErrReenter means the server holds the secret but can no longer read
	// it; it has to be saved again.
	ErrReenter = errors.New("secret must be entered again")
	ErrInvalid = errors.New("invalid request")
)
