package services

import (
	"errors"
	"regexp"
	"strings"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

// MaxRecipientsPerCampaign is the hard ceiling on a single recipient batch
const MaxRecipientsPerCampaign = 1000

var (
	ErrEmptyRecipientList = errors.New("recipient list is empty")
	ErrTooManyRecipients  = errors.New("too many recipients (maximum 1000)")
)

var (
	tokenSplitRe    = regexp.MustCompile(`[,\s]+`)
	linkPathRe      = regexp.MustCompile(`(?:t\.me/|telegram\.me/)(?:c/)?([a-zA-Z0-9_]+)`)
	inviteHashRe    = regexp.MustCompile(`(?:t\.me/|telegram\.me/)(?:joinchat/|\+)([a-zA-Z0-9_-]+)`)
	nonIdentifier   = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	numericChatIDRe = regexp.MustCompile(`^-?[0-9]+$`)
)

// RecipientInput is one normalized entry of a parsed recipient batch
type RecipientInput struct {
	Original   string
	Normalized string
	Type       string
}

// NormalizeIdentifier canonicalizes a recipient token into the key used for
// duplicate matching: @ and link prefixes stripped, invite hashes extracted,
// everything outside [A-Za-z0-9_] removed, lower-cased.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	identifier = strings.TrimPrefix(identifier, "@")

	if strings.Contains(identifier, "t.me/") || strings.Contains(identifier, "telegram.me/") {
		if m := inviteHashRe.FindStringSubmatch(identifier); m != nil {
			identifier = m[1]
		} else if m := linkPathRe.FindStringSubmatch(identifier); m != nil {
			identifier = m[1]
		}
	}

	identifier = nonIdentifier.ReplaceAllString(identifier, "")
	return strings.ToLower(identifier)
}

// classifyIdentifier determines the identifier type of a raw token
func classifyIdentifier(token string) string {
	switch {
	case numericChatIDRe.MatchString(token):
		return models.IdentifierTypeChatID
	case strings.HasPrefix(token, "@"):
		return models.IdentifierTypeUsername
	case strings.Contains(token, "t.me") || strings.Contains(token, "telegram.me"):
		if strings.Contains(token, "joinchat") || strings.Contains(token, "/+") {
			return models.IdentifierTypeInviteLink
		}
		return models.IdentifierTypeLink
	default:
		return models.IdentifierTypeUsername
	}
}

// ParseRecipients splits raw delimited text (commas, whitespace, newlines)
// into a deduplicated batch. Deduplication is by normalized identifier, first
// occurrence wins; unnormalizable tokens are dropped silently.
func ParseRecipients(text string) []RecipientInput {
	parts := tokenSplitRe.Split(text, -1)
	recipients := make([]RecipientInput, 0, len(parts))
	seen := make(map[string]struct{})

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		normalized := NormalizeIdentifier(part)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		recipients = append(recipients, RecipientInput{
			Original:   part,
			Normalized: normalized,
			Type:       classifyIdentifier(part),
		})
	}
	return recipients
}

// ValidateRecipients enforces the batch limits after normalization
func ValidateRecipients(recipients []RecipientInput) error {
	if len(recipients) == 0 {
		return ErrEmptyRecipientList
	}
	if len(recipients) > MaxRecipientsPerCampaign {
		return ErrTooManyRecipients
	}
	return nil
}
