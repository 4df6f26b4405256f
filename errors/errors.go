// Package errors holds the error taxonomy returned by the core.
// Every failure reaching the API layer carries a Kind and a stable code.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	InvalidInput
	NotFound
	Forbidden
	Expired
	Conflict
	Unauthenticated
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Expired:
		return "expired"
	case Conflict:
		return "conflict"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error is a sentinel failure of the core. Compare with errors.Is, never by message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidParticipant = newError(InvalidInput, "invalid_participant", "invalid participant")
	ErrInvalidName        = newError(InvalidInput, "invalid_name", "name is empty")
	ErrEmptyContent       = newError(InvalidInput, "empty_content", "content is empty")
	ErrInvalidKind        = newError(InvalidInput, "invalid_kind", "unknown kind")
	ErrInvalidTarget      = newError(InvalidInput, "invalid_target", "exactly one of conversation, recipient or group is required")
	ErrInvalidCursor      = newError(InvalidInput, "invalid_cursor", "malformed cursor")
	ErrNotAGroup          = newError(InvalidInput, "not_a_group", "conversation is not a group")
	ErrLastMember         = newError(InvalidInput, "last_member", "a group keeps at least one member")
	ErrInvalidRequest     = newError(InvalidInput, "invalid_request", "malformed request")

	ErrConversationNotFound = newError(NotFound, "conversation_not_found", "conversation not found")
	ErrMessageNotFound      = newError(NotFound, "message_not_found", "message not found")
	ErrStoryNotFound        = newError(NotFound, "story_not_found", "story not found")

	ErrNotAMember = newError(Forbidden, "not_a_member", "user is not a participant")
	ErrForbidden  = newError(Forbidden, "forbidden", "forbidden")

	ErrExpired  = newError(Expired, "expired", "story has expired")
	ErrConflict = newError(Conflict, "conflict", "concurrent update conflict")

	ErrUnauthenticated = newError(Unauthenticated, "unauthenticated", "missing or invalid token")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// KindOf returns the Kind of the first *Error in err's chain, Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf returns the stable code of err, "internal" when err is not part of the taxonomy.
func CodeOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return Internal.String()
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case Expired:
		return http.StatusGone
	case Conflict:
		return http.StatusConflict
	case Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
