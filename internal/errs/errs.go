// Package errs defines the error taxonomy shared by the realtime gateway and the
// request/response layer. Every domain failure carries a Kind that decides how it is
// surfaced: domain kinds are shown to the caller, Internal is logged and hidden.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindNotFound
	KindInvalidInput
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Error is a classified error. Code is a stable machine-readable identifier that the
// localization layer uses as a translation key; Message is the English fallback.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by Code so that a re-wrapped sentinel still compares equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && t.Err == nil
}

func newSentinel(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrUnauthenticated  = newSentinel(KindUnauthorized, "unauthenticated", "authentication required")
	ErrNotFriends       = newSentinel(KindUnauthorized, "not_friends", "You are not allowed to chat with this user.")
	ErrNotInRoom        = newSentinel(KindUnauthorized, "not_in_room", "You must join the conversation before sending messages.")
	ErrNotParticipant   = newSentinel(KindUnauthorized, "not_participant", "You are not allowed to view these messages.")
	ErrNotRequestSender = newSentinel(KindUnauthorized, "not_request_sender", "only the sender can cancel a friend request")
	ErrForeignResource  = newSentinel(KindUnauthorized, "foreign_resource", "You aren't able to see other users' data.")

	ErrRequestNotFound      = newSentinel(KindNotFound, "request_not_found", "Friend request not found.")
	ErrUserNotFound         = newSentinel(KindNotFound, "user_not_found", "User with the provided email does not exist.")
	ErrConversationNotFound = newSentinel(KindNotFound, "conversation_not_found", "Conversation not found.")

	ErrSelfConversation  = newSentinel(KindInvalidInput, "self_conversation", "Cannot start a conversation with yourself.")
	ErrSelfRequest       = newSentinel(KindInvalidInput, "self_request", "Cannot add yourself.")
	ErrEmptyContent      = newSentinel(KindInvalidInput, "empty_content", "Message content is required.")
	ErrInvalidDecision   = newSentinel(KindInvalidInput, "invalid_decision", "Invalid status value.")
	ErrMissingIdentifier = newSentinel(KindInvalidInput, "missing_identifier", "A required identifier is missing.")
	ErrMalformedEvent    = newSentinel(KindInvalidInput, "malformed_event", "Malformed event.")

	ErrDuplicateRequest = newSentinel(KindConflict, "duplicate_request", "Friend request already sent from you or the other way around.")
	ErrAlreadyFriends   = newSentinel(KindConflict, "already_friends", "You're already friends with the requested user.")
	ErrAlreadyResolved  = newSentinel(KindConflict, "already_resolved", "Friend request already responded to.")
)

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "Internal server error.", Err: err}
}

// Transient wraps storage contention that survived the one allowed internal retry.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Code: "transient", Message: "The server is busy, please retry.", Err: err}
}

// Wrap attaches a cause to a sentinel while keeping its classification.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

// KindOf returns the classification of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, "internal" for unclassified errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// PublicMessage returns the text safe to show the caller. Internal errors never leak
// their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal server error."
}

// HTTPStatus maps a Kind to its status class.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
