package service

import (
	"errors"
	"fmt"

	"shop-service/internal/store"
)

// Kind classifies a domain error for the request boundary
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindBadRequest
)

// Error is a business rule failure carrying a caller-facing message
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound reports a referenced entity that does not exist
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// BadRequest reports a violated business rule
func BadRequest(format string, args ...interface{}) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a domain error of kind k
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// storeErr maps store sentinels onto domain errors. Anything else is
// returned unchanged and ends up as an internal error.
func storeErr(err error, notFound, conflict, referenced string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound) && notFound != "":
		return &Error{Kind: KindNotFound, Message: notFound}
	case errors.Is(err, store.ErrConflict) && conflict != "":
		return &Error{Kind: KindBadRequest, Message: conflict}
	case errors.Is(err, store.ErrReferenced) && referenced != "":
		return &Error{Kind: KindBadRequest, Message: referenced}
	}
	return err
}
