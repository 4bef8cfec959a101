package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/telegram"
)

// Bounds for the rate-limit retry loop. The transport may keep demanding
// waits; the attempt is abandoned once either ceiling is crossed.
const (
	maxRateLimitAttempts = 5
	maxRateLimitWait     = 10 * time.Minute
	defaultRateLimitWait = 30 * time.Second
)

// SendResult is the structured outcome of one delivery attempt. The executor
// never returns an error: every failure is classified into ErrorType.
type SendResult struct {
	Success           bool
	ErrorType         string
	ErrorDetails      string
	TelegramMessageID *int64
}

func failure(errorType, details string) SendResult {
	return SendResult{ErrorType: errorType, ErrorDetails: details}
}

// SenderService performs addressed delivery attempts through the per-owner
// session pool and classifies every outcome into the fixed error taxonomy
type SenderService struct {
	pool  *telegram.SessionPool
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSenderService(pool *telegram.SessionPool) *SenderService {
	return &SenderService{pool: pool, sleep: sleepContext}
}

// AttemptSend resolves the recipient, dispatches the template (text or media
// with caption) and returns a classified result. Rate-limit signals are
// honored by sleeping and re-attempting within the configured bounds.
func (s *SenderService) AttemptSend(ctx context.Context, ownerID int64, recipient *models.Recipient, template *models.Template) SendResult {
	session, release, err := s.pool.Acquire(ownerID)
	if err != nil {
		logrus.Errorf("No session for owner %d: %v", ownerID, err)
		return failure(models.ErrorTypeTechnical, err.Error())
	}
	defer release()

	chatID, res := s.resolveChat(ctx, session, recipient)
	if res != nil {
		return *res
	}

	// Group targets: verify membership before sending, as the platform
	// rejects writes from non-members with a less specific error.
	if chatID < 0 {
		member, err := session.IsParticipant(ctx, chatID)
		if err != nil {
			logrus.Warnf("Membership check for %d failed: %v", chatID, err)
		} else if !member {
			return failure(models.ErrorTypeNotParticipant, "sender is not a member of this group")
		}
	}

	payload := telegram.Payload{Text: template.Text}
	if template.HasMedia() {
		payload.MediaType = template.MediaType
		payload.MediaRef = template.MediaFileID
	}

	attempts := 0
	var waited time.Duration
	for {
		messageID, err := session.Send(ctx, chatID, payload)
		if err == nil {
			logrus.Infof("Message delivered to %s, message_id=%d", recipient.Identifier, messageID)
			return SendResult{Success: true, TelegramMessageID: &messageID}
		}

		if telegram.IsKind(err, telegram.KindRateLimit) {
			wait := telegram.RetryAfterOf(err)
			if wait <= 0 {
				wait = defaultRateLimitWait
			}
			attempts++
			waited += wait
			if attempts >= maxRateLimitAttempts || waited > maxRateLimitWait {
				logrus.Warnf("Rate limit retries exhausted for %s after %d attempts", recipient.Identifier, attempts)
				return failure(models.ErrorTypeRateLimit, err.Error())
			}
			logrus.Warnf("Rate limited sending to %s, waiting %s", recipient.Identifier, wait)
			if err := s.sleep(ctx, wait); err != nil {
				return failure(models.ErrorTypeTechnical, err.Error())
			}
			continue
		}

		return classifySendError(recipient.Identifier, err)
	}
}

// ProbeAccountHealth checks whether the owner's account is currently able to
// send. A peer_flood classified error means the platform's anti-flood
// restriction is active.
func (s *SenderService) ProbeAccountHealth(ctx context.Context, ownerID int64) error {
	session, release, err := s.pool.Acquire(ownerID)
	if err != nil {
		return err
	}
	defer release()
	return session.Ping(ctx)
}

// resolveChat turns the stored identifier into a transport chat id. Numeric
// identifiers pass through; invite links are joined first; usernames and
// public links go through the lookup capability.
func (s *SenderService) resolveChat(ctx context.Context, session telegram.Session, recipient *models.Recipient) (int64, *SendResult) {
	identifier := strings.TrimSpace(recipient.Identifier)

	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return id, nil
	}

	if recipient.IdentifierType == models.IdentifierTypeInviteLink {
		chat, err := session.JoinChat(ctx, identifier)
		if err != nil {
			if telegram.IsKind(err, telegram.KindInvalidInvite) {
				res := failure(models.ErrorTypeInvalidInvite, err.Error())
				return 0, &res
			}
			res := failure(models.ErrorTypeJoinFailed, err.Error())
			return 0, &res
		}
		logrus.Infof("Joined private chat %d via invite link", chat.ID)
		return chat.ID, nil
	}

	lookup := strings.TrimPrefix(identifier, "@")
	if m := linkPathRe.FindStringSubmatch(lookup); m != nil {
		lookup = m[1]
	}

	chat, err := session.Resolve(ctx, lookup)
	if err != nil {
		res := classifySendError(recipient.Identifier, err)
		return 0, &res
	}
	return chat.ID, nil
}

// classifySendError maps a transport failure onto the history error taxonomy.
// Everything lands on exactly one kind; non-transport errors fall back to
// unknown.
func classifySendError(identifier string, err error) SendResult {
	kind := telegram.KindOf(err)

	var errorType string
	switch kind {
	case telegram.KindBlocked:
		errorType = models.ErrorTypeBlocked
	case telegram.KindInvalidUser:
		errorType = models.ErrorTypeInvalidUser
	case telegram.KindNotFound:
		errorType = models.ErrorTypeNotFound
	case telegram.KindDeleted:
		errorType = models.ErrorTypeDeleted
	case telegram.KindPrivacy:
		errorType = models.ErrorTypePrivacy
	case telegram.KindNotParticipant:
		errorType = models.ErrorTypeNotParticipant
	case telegram.KindAdminRequired:
		errorType = models.ErrorTypeAdminRequired
	case telegram.KindPrivateChat:
		errorType = models.ErrorTypePrivateChat
	case telegram.KindInvalidInvite:
		errorType = models.ErrorTypeInvalidInvite
	case telegram.KindJoinFailed:
		errorType = models.ErrorTypeJoinFailed
	case telegram.KindRateLimit:
		errorType = models.ErrorTypeRateLimit
	case telegram.KindPeerFlood:
		errorType = models.ErrorTypePeerFlood
	case telegram.KindTechnical:
		errorType = models.ErrorTypeTechnical
	default:
		errorType = models.ErrorTypeUnknown
	}

	if errorType == models.ErrorTypePeerFlood {
		logrus.Errorf("PEER_FLOOD sending to %s: %v", identifier, err)
	} else {
		logrus.Warnf("Send to %s failed (%s): %v", identifier, errorType, err)
	}
	return failure(errorType, err.Error())
}

// sleepContext waits for the duration unless the context ends first
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
