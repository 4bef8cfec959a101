package telegram

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a transport failure. The set is fixed: every error the
// transport can produce maps to exactly one kind, with KindUnknown as the
// fallback for anything unclassifiable.
type Kind string

const (
	KindBlocked        Kind = "blocked"
	KindInvalidUser    Kind = "invalid_user"
	KindNotFound       Kind = "not_found"
	KindDeleted        Kind = "deleted"
	KindPrivacy        Kind = "privacy"
	KindNotParticipant Kind = "not_participant"
	KindAdminRequired  Kind = "admin_required"
	KindPrivateChat    Kind = "private_chat"
	KindInvalidInvite  Kind = "invalid_invite"
	KindJoinFailed     Kind = "join_failed"
	KindRateLimit      Kind = "rate_limit"
	KindPeerFlood      Kind = "peer_flood"
	KindTechnical      Kind = "technical"
	KindUnknown        Kind = "unknown"
)

// Error is a classified transport failure. RetryAfter is only set for
// KindRateLimit and carries the wait the platform demanded.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram: %s: %s (retry after %s)", e.Kind, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %s: %s", e.Kind, e.Message)
}

// NewError builds a classified transport error
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification of err, falling back to KindUnknown
// for errors that did not originate in the transport
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// RetryAfterOf returns the mandated wait of a rate-limit error, zero otherwise
func RetryAfterOf(err error) time.Duration {
	var te *Error
	if errors.As(err, &te) && te.Kind == KindRateLimit {
		return te.RetryAfter
	}
	return 0
}

// IsKind reports whether err is a transport error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
