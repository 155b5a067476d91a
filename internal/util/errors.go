package util

import "errors"

var (
	ErrUnauthenticated           = errors.New("user is not signed in")
	ErrInvalidCredentials        = errors.New("invalid email or password")
	ErrEmailRegistered           = errors.New("email already registered")
	ErrUserNotFound              = errors.New("user not found")
	ErrPermissionDenied          = errors.New("permission denied")
	ErrInvalidLevel              = errors.New("invalid level id")
	ErrProgressExists            = errors.New("progress already initialized")
	ErrProgressNotFound          = errors.New("progress not found")
	ErrConcurrentUpdate          = errors.New("progress changed concurrently, retries exhausted")
	ErrDocumentMissingAfterWrite = errors.New("document missing after write")
	ErrRemoteStore               = errors.New("remote store failure")
)
