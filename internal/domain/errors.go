package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks empty or malformed input. Never retried.
	ErrValidation = errors.New("validation error")

	ErrRateLimited                    = errors.New("rate limited")
	ErrContentPolicy                  = errors.New("content policy rejected")
	ErrTransientProvider              = errors.New("transient provider error")
	ErrValidationFailedPostGeneration = errors.New("generated URL validation failed")
	ErrStorage                        = errors.New("storage error")
	ErrNoProviderAvailable            = errors.New("no image providers are currently enabled")
	ErrNotFound                       = errors.New("not found")
	ErrUnauthenticated                = errors.New("user must be authenticated")
)

// ValidationError returns an ErrValidation carrying a human readable message
func ValidationError(msg string) error {
	return &messageError{msg: msg, kind: ErrValidation}
}

type messageError struct {
	msg  string
	kind error
}

func (e *messageError) Error() string { return e.msg }

func (e *messageError) Unwrap() error { return e.kind }

// GenerationError is returned by a provider once it has used up its attempts
type GenerationError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed after %d attempts: %s", e.Provider, e.Attempts, causeMessage(e.Err))
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StorageError is returned by the relay once every attempt has failed
type StorageError struct {
	Attempts int
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to store image after %d attempts: %s", e.Attempts, causeMessage(e.Err))
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// AllProvidersFailedError reports the last failure seen across all providers
type AllProvidersFailedError struct {
	Err error
}

func (e *AllProvidersFailedError) Error() string {
	if e.Err == nil {
		return "all image providers failed"
	}
	return e.Err.Error()
}

func (e *AllProvidersFailedError) Unwrap() error { return e.Err }

// UserMessage flattens err to the message shown to end users.
// Only the innermost cause survives.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var msg *messageError
	if errors.As(err, &msg) {
		return msg.Error()
	}
	var all *AllProvidersFailedError
	if errors.As(err, &all) {
		return all.Error()
	}
	var gen *GenerationError
	if errors.As(err, &gen) {
		return gen.Error()
	}
	var store *StorageError
	if errors.As(err, &store) {
		return causeMessage(store.Err)
	}
	return err.Error()
}

func causeMessage(err error) string {
	if err == nil {
		return "unknown error occurred"
	}
	return err.Error()
}
