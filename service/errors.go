package service

import (
	"errors"
	"fmt"

	"github.com/kevinaaaquil/unilib/store"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuth
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	default:
		return "internal"
	}
}

// Stable error codes returned to clients.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeLoanNotFound      = "LOAN_NOT_FOUND"
	CodeBookNotFound      = "BOOK_NOT_FOUND"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeFineNotFound      = "FINE_NOT_FOUND"
	CodeExtensionNotFound = "EXTENSION_NOT_FOUND"
	CodeBookNotAvailable  = "BOOK_NOT_AVAILABLE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidStatus     = "INVALID_STATUS"
	CodeDuplicateRequest  = "DUPLICATE_REQUEST"
	CodeAlreadyReturned   = "ALREADY_RETURNED"
	CodeForbidden         = "FORBIDDEN"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error is a classified workflow failure. Fields carries per-field validation detail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg, Fields: fields}
}

func Invalid(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindPermission, Code: CodeForbidden, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindAuth, Code: CodeUnauthorized, Message: msg}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// AsError classifies err. Unclassified errors become internal errors.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return AsError(err).Kind
}

func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

// notFoundAs maps store.ErrNotFound to a typed not-found error and wraps the rest.
func notFoundAs(err error, code, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return NotFound(code, msg)
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return fmt.Errorf("%s: %w", msg, err)
}
