// Package apperr classifies request failures and maps them to HTTP statuses.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	BadRequest
	InvalidInput
	Unauthenticated
	TokenExpired
	InvalidToken
	UpstreamError
	StoreError
	PayloadTooLarge
)

func (k Kind) String() string {
	switch k {
	case BadRequest:
		return "bad_request"
	case InvalidInput:
		return "invalid_input"
	case Unauthenticated:
		return "unauthenticated"
	case TokenExpired:
		return "token_expired"
	case InvalidToken:
		return "invalid_token"
	case UpstreamError:
		return "upstream_error"
	case StoreError:
		return "store_error"
	case PayloadTooLarge:
		return "payload_too_large"
	default:
		return "internal"
	}
}

func (k Kind) Status() int {
	switch k {
	case BadRequest, InvalidInput:
		return http.StatusBadRequest
	case Unauthenticated, TokenExpired, InvalidToken:
		return http.StatusUnauthorized
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error is a client-facing failure. Message is safe to show; Err is the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports Internal for errors that were never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
