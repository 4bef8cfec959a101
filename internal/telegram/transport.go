package telegram

import (
	"context"
)

// Chat is a resolved transport-level chat handle
type Chat struct {
	ID           int64
	Type         string
	Title        string
	Username     string
	MembersCount int
}

// Member is one entry of a group membership enumeration
type Member struct {
	ID       int64
	Username string
	IsBot    bool
}

// Payload is what a single send delivers: the template text plus an optional
// media attachment referenced by the platform's file id
type Payload struct {
	Text      string
	MediaType string
	MediaRef  string
}

// Session is the per-owner sending capability. Implementations classify every
// failure into a *Error; callers rely on KindOf never being surprised.
type Session interface {
	// Resolve turns a username or public link path into a chat handle.
	Resolve(ctx context.Context, identifier string) (*Chat, error)

	// JoinChat joins a private chat by invite link and returns its handle.
	JoinChat(ctx context.Context, inviteLink string) (*Chat, error)

	// IsParticipant reports whether the sending account is a member of the
	// given group or channel.
	IsParticipant(ctx context.Context, chatID int64) (bool, error)

	// Send delivers one payload and returns the platform-assigned message id.
	Send(ctx context.Context, chatID int64, payload Payload) (int64, error)

	// Members enumerates the group's members. The enumeration is finite and
	// non-restartable: on error it must be re-issued from scratch.
	Members(ctx context.Context, chatID int64) ([]Member, error)

	// Ping probes account health. A KindPeerFlood error means the account is
	// under the platform's anti-flood restriction.
	Ping(ctx context.Context) error

	Close() error
}

// Notifier is the best-effort reporting sink used for owner alerts and
// summary digests. Delivery failure is logged by callers, never propagated.
type Notifier interface {
	DeliverText(ctx context.Context, identifier string, text string) error
}
