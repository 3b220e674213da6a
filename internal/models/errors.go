package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies bag errors
type ErrorKind string

// Error kinds
const (
	KindValidation ErrorKind = "VALIDATION"
	KindNotFound   ErrorKind = "NOT_FOUND"
	KindStorage    ErrorKind = "STORAGE"
	KindConflict   ErrorKind = "CONFLICT"
)

// User-facing messages
const (
	MsgPromoEmpty     = "Please enter a promo code."
	MsgPromoInvalid   = "Invalid promo code."
	MsgPromoEmptyBag  = "Add items to your bag before applying a promo code."
	MsgCartEmpty      = "Your bag is empty."
	MsgOrderPlacing   = "Your order is already being placed."
	MsgArtworkMissing = "Artwork not found."
	MsgOrderMissing   = "Order not found."
	MsgStorageFailed  = "Could not save your bag. Please try again."
)

// Error is a classified bag error carrying a user-facing message
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind and message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Retryable reports whether the operation may succeed when repeated
func (e *Error) Retryable() bool {
	return e.Kind == KindStorage
}

// Sentinel errors
var (
	ErrEmptyCart       = &Error{Kind: KindConflict, Message: MsgCartEmpty}
	ErrOrderInProgress = &Error{Kind: KindConflict, Message: MsgOrderPlacing}
	ErrArtworkNotFound = &Error{Kind: KindNotFound, Message: MsgArtworkMissing}
	ErrOrderNotFound   = &Error{Kind: KindNotFound, Message: MsgOrderMissing}
)

// NewValidationError creates a validation error
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewStorageError wraps a persistence failure
func NewStorageError(err error) *Error {
	return &Error{Kind: KindStorage, Message: MsgStorageFailed, Err: err}
}

// KindOf returns the kind of err, or an empty kind for unclassified errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
