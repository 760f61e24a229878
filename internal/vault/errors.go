package vault

import "errors"

var (
	// ErrConfiguration means no usable master key was found at startup.
	ErrConfiguration = errors.New("vault configuration error")
	// ErrAbsent means nothing is stored for the field. It is a normal state.
	ErrAbsent = errors.New("secret not set")
	// ErrUnreadable means a value is stored but does not decrypt under the
	// current keys. The user has to enter the secret again.
	ErrUnreadable = errors.New("secret unreadable")
	// ErrStore wraps failures of the persistent store.
	ErrStore = errors.New("secret store failure")
	// ErrInvalidField is returned for names outside models.SecretFields.
	ErrInvalidField = errors.New("invalid secret field")
	// ErrInvalidUser is returned for an empty user id.
	ErrInvalidUser = errors.New("invalid user id")
)
