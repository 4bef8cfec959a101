package telegram

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBlocked, KindOf(NewError(KindBlocked, "blocked")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain error")))

	wrapped := fmt.Errorf("send: %w", NewError(KindPeerFlood, "flood"))
	assert.Equal(t, KindPeerFlood, KindOf(wrapped))
}

func TestRetryAfterOf(t *testing.T) {
	err := NewError(KindRateLimit, "too many requests")
	err.RetryAfter = 42 * time.Second
	assert.Equal(t, 42*time.Second, RetryAfterOf(err))

	// RetryAfter is only meaningful on rate-limit errors
	other := NewError(KindBlocked, "blocked")
	other.RetryAfter = time.Second
	assert.Zero(t, RetryAfterOf(other))
	assert.Zero(t, RetryAfterOf(errors.New("plain")))
}

func TestClassifyBotAPIResponses(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		description string
		retryAfter  int
		want        Kind
	}{
		{"rate limit by code", 429, "Too Many Requests: retry after 30", 30, KindRateLimit},
		{"peer flood", 400, "PEER_FLOOD: too many messages", 0, KindPeerFlood},
		{"blocked", 403, "Forbidden: bot was blocked by the user", 0, KindBlocked},
		{"deactivated", 403, "Forbidden: user is deactivated", 0, KindDeleted},
		{"user not found", 400, "Bad Request: user not found", 0, KindInvalidUser},
		{"chat not found", 400, "Bad Request: chat not found", 0, KindNotFound},
		{"invite expired", 400, "Bad Request: INVITE_HASH_EXPIRED", 0, KindInvalidInvite},
		{"admin required", 400, "Bad Request: CHAT_ADMIN_REQUIRED", 0, KindAdminRequired},
		{"not a member", 400, "Bad Request: user is not a member of the chat", 0, KindNotParticipant},
		{"channel private", 400, "Bad Request: CHANNEL_PRIVATE", 0, KindPrivateChat},
		{"privacy", 403, "Forbidden: bot can't initiate conversation with a user", 0, KindPrivacy},
		{"server error", 502, "Bad Gateway", 0, KindTechnical},
		{"unclassified", 400, "Bad Request: something new", 0, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &apiResponse{ErrorCode: tt.code, Description: tt.description}
			if tt.retryAfter > 0 {
				resp.Parameters = &struct {
					RetryAfter int `json:"retry_after"`
				}{RetryAfter: tt.retryAfter}
			}
			err := classify(resp)
			assert.Equal(t, tt.want, err.Kind)
			if tt.retryAfter > 0 {
				assert.Equal(t, time.Duration(tt.retryAfter)*time.Second, err.RetryAfter)
			}
		})
	}
}
