package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/telegram"
)

type fakeSession struct {
	resolveChat *telegram.Chat
	resolveErr  error
	joinChat    *telegram.Chat
	joinErr     error
	participant bool
	partErr     error
	sendErrs    []error
	sendCalls   int
	payloads    []telegram.Payload
	messageID   int64
	pingErr     error
}

func (f *fakeSession) Resolve(ctx context.Context, identifier string) (*telegram.Chat, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolveChat, nil
}

func (f *fakeSession) JoinChat(ctx context.Context, inviteLink string) (*telegram.Chat, error) {
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return f.joinChat, nil
}

func (f *fakeSession) IsParticipant(ctx context.Context, chatID int64) (bool, error) {
	return f.participant, f.partErr
}

func (f *fakeSession) Send(ctx context.Context, chatID int64, payload telegram.Payload) (int64, error) {
	call := f.sendCalls
	f.sendCalls++
	f.payloads = append(f.payloads, payload)
	if call < len(f.sendErrs) && f.sendErrs[call] != nil {
		return 0, f.sendErrs[call]
	}
	return f.messageID, nil
}

func (f *fakeSession) Members(ctx context.Context, chatID int64) ([]telegram.Member, error) {
	return nil, nil
}

func (f *fakeSession) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeSession) Close() error                   { return nil }

func newTestSender(t *testing.T, session *fakeSession) *SenderService {
	t.Helper()
	pool := telegram.NewSessionPool(func(ownerID int64) (telegram.Session, error) {
		return session, nil
	}, time.Minute)
	t.Cleanup(pool.Close)

	svc := NewSenderService(pool)
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func rateLimitErr(after time.Duration) error {
	err := telegram.NewError(telegram.KindRateLimit, "too many requests")
	err.RetryAfter = after
	return err
}

func TestAttemptSendNumericIdentifier(t *testing.T) {
	session := &fakeSession{messageID: 99, participant: true}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{Identifier: "123456", IdentifierType: models.IdentifierTypeChatID},
		&models.Template{Text: "hello"})

	assert.True(t, result.Success)
	require.NotNil(t, result.TelegramMessageID)
	assert.Equal(t, int64(99), *result.TelegramMessageID)
	assert.Equal(t, 1, session.sendCalls)
}

func TestAttemptSendResolvesUsername(t *testing.T) {
	session := &fakeSession{resolveChat: &telegram.Chat{ID: 777}, messageID: 5}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{Identifier: "@alice", IdentifierType: models.IdentifierTypeUsername},
		&models.Template{Text: "hello"})

	assert.True(t, result.Success)
}

func TestAttemptSendClassifiesBlocked(t *testing.T) {
	session := &fakeSession{
		resolveChat: &telegram.Chat{ID: 777},
		sendErrs:    []error{telegram.NewError(telegram.KindBlocked, "bot was blocked")},
	}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{Identifier: "@alice", IdentifierType: models.IdentifierTypeUsername},
		&models.Template{Text: "hello"})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorTypeBlocked, result.ErrorType)
}

func TestAttemptSendRetriesRateLimitThenSucceeds(t *testing.T) {
	session := &fakeSession{
		resolveChat: &telegram.Chat{ID: 777},
		sendErrs:    []error{rateLimitErr(time.Second), rateLimitErr(time.Second)},
		messageID:   11,
	}
	svc := newTestSender(t, session)

	var waits []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{Identifier: "@alice", IdentifierType: models.IdentifierTypeUsername},
		&models.Template{Text: "hello"})

	assert.True(t, result.Success)
	assert.Equal(t, 3, session.sendCalls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, waits)
}

func TestAttemptSendRateLimitAttemptsBounded(t *testing.T) {
	errs := make([]error, maxRateLimitAttempts+3)
	for i := range errs {
		errs[i] = rateLimitErr(time.Second)
	}
	session := &fakeSession{resolveChat: &telegram.Chat{ID: 777}, sendErrs: errs}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{Identifier: "@alice", IdentifierType: models.IdentifierTypeUsername},
		&models.Template{Text: "hello"})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorTypeRateLimit, result.ErrorType)
	assert.Equal(t, maxRateLimitAttempts, session.sendCalls)
}

func TestAttemptSendRateLimitWaitBounded(t *testing.T) {
	// A single demanded wait above the accumulated ceiling stops retrying.
	session := &fakeSession{
		resolveChat: &telegram.Chat{ID: 777},
		sendErrs:    []error{rateLimitErr(maxRateLimitWait + time.Minute)},
	}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{Identifier: "@alice", IdentifierType: models.IdentifierTypeUsername},
		&models.Template{Text: "hello"})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorTypeRateLimit, result.ErrorType)
	assert.Equal(t, 1, session.sendCalls)
}

func TestAttemptSendInviteLink(t *testing.T) {
	session := &fakeSession{joinChat: &telegram.Chat{ID: -500}, participant: true, messageID: 2}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{
			Identifier:     "https://t.me/joinchat/AbC123",
			IdentifierType: models.IdentifierTypeInviteLink,
		},
		&models.Template{Text: "hello"})

	assert.True(t, result.Success)
}

func TestAttemptSendInvalidInvite(t *testing.T) {
	session := &fakeSession{joinErr: telegram.NewError(telegram.KindInvalidInvite, "invite hash expired")}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{
			Identifier:     "https://t.me/joinchat/expired",
			IdentifierType: models.IdentifierTypeInviteLink,
		},
		&models.Template{Text: "hello"})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorTypeInvalidInvite, result.ErrorType)
	assert.Zero(t, session.sendCalls)
}

func TestAttemptSendGroupMembershipCheck(t *testing.T) {
	session := &fakeSession{participant: false}
	svc := newTestSender(t, session)

	result := svc.AttemptSend(context.Background(), 1,
		&models.Recipient{Identifier: "-100200300", IdentifierType: models.IdentifierTypeChatID},
		&models.Template{Text: "hello"})

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorTypeNotParticipant, result.ErrorType)
	assert.Zero(t, session.sendCalls)
}

func TestAttemptSendMediaPayload(t *testing.T) {
	session := &fakeSession{resolveChat: &telegram.Chat{ID: 777}, messageID: 3}
	svc := newTestSender(t, session)
	recipient := &models.Recipient{Identifier: "@alice", IdentifierType: models.IdentifierTypeUsername}

	result := svc.AttemptSend(context.Background(), 1, recipient,
		&models.Template{Text: "hello", MediaType: "photo", MediaFileID: "AgAC123"})
	require.True(t, result.Success)

	// A media type without a stored file reference degrades to plain text
	result = svc.AttemptSend(context.Background(), 1, recipient,
		&models.Template{Text: "hello", MediaType: "photo"})
	require.True(t, result.Success)

	require.Len(t, session.payloads, 2)
	assert.Equal(t, telegram.Payload{Text: "hello", MediaType: "photo", MediaRef: "AgAC123"}, session.payloads[0])
	assert.Equal(t, telegram.Payload{Text: "hello"}, session.payloads[1])
}

func TestProbeAccountHealth(t *testing.T) {
	session := &fakeSession{pingErr: telegram.NewError(telegram.KindPeerFlood, "peer flood")}
	svc := newTestSender(t, session)

	err := svc.ProbeAccountHealth(context.Background(), 1)
	assert.True(t, telegram.IsKind(err, telegram.KindPeerFlood))
}

func TestClassifySendErrorUnknownFallback(t *testing.T) {
	result := classifySendError("@alice", assert.AnError)
	assert.Equal(t, models.ErrorTypeUnknown, result.ErrorType)
}
