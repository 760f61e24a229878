package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")
	ErrorCorrupt  = errors.New("corrupt record")

	// service specific errors
	ErrorValidation = errors.New("validation error")

	// auth errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// oauth connect flow
	ErrNoPendingAuth = errors.New("no pending authorization")
)
