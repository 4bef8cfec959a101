package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

// Narrow store contracts for the execution engine. The gorm repositories
// satisfy them; tests substitute in-memory fakes.
type campaignStore interface {
	GetByID(id uint) (*models.Campaign, error)
	MarkProcessing(id uint, startedAt time.Time) error
	MarkTerminal(id uint, status string, completedAt time.Time, total, sent, failed, duplicates int) error
	UpdateCounters(id uint, total, sent, failed, duplicates int) error
	FailOrphaned(completedAt time.Time) (int64, error)
}

type recipientStore interface {
	GetByCampaign(campaignID uint) ([]*models.Recipient, error)
	GetDuplicatesByCampaign(campaignID uint) ([]*models.Recipient, error)
	MarkDuplicate(id uint, previousCampaignID uint) error
}

type historyAppender interface {
	Append(entry *models.SendingHistory) error
}

type templateStore interface {
	GetByID(id uint) (*models.Template, error)
}

type duplicateChecker interface {
	CheckDuplicate(templateID uint, normalizedIdentifier string) (DuplicateInfo, error)
}

type campaignSender interface {
	AttemptSend(ctx context.Context, ownerID int64, recipient *models.Recipient, template *models.Template) SendResult
	ProbeAccountHealth(ctx context.Context, ownerID int64) error
}

type ownerReporter interface {
	SendPersonalReport(ctx context.Context, campaignID uint)
	NotifyOwner(ctx context.Context, ownerID int64, text string)
}

// MailingService owns the campaign lifecycle: it drives the per-recipient
// dispatch loop, applies pacing, decides abort-versus-continue and persists
// the aggregate counters.
type MailingService struct {
	campaigns  campaignStore
	recipients recipientStore
	history    historyAppender
	templates  templateStore
	duplicates duplicateChecker
	sender     campaignSender
	reporter   ownerReporter

	// Sends are only allowed between windowStart and windowEnd (inclusive),
	// expressed as minutes from local midnight.
	windowStart int
	windowEnd   int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewMailingService(
	campaigns campaignStore,
	recipients recipientStore,
	history historyAppender,
	templates templateStore,
	duplicates duplicateChecker,
	sender campaignSender,
	reporter ownerReporter,
) *MailingService {
	return &MailingService{
		campaigns:   campaigns,
		recipients:  recipients,
		history:     history,
		templates:   templates,
		duplicates:  duplicates,
		sender:      sender,
		reporter:    reporter,
		windowStart: minutesFromEnv("SEND_WINDOW_START", 9*60),
		windowEnd:   minutesFromEnv("SEND_WINDOW_END", 22*60),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// minutesFromEnv parses an "HH:MM" env value into minutes from midnight
func minutesFromEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		logrus.Warnf("Invalid %s value %q, using default", key, value)
		return defaultValue
	}
	return h*60 + m
}

func (s *MailingService) withinAllowedWindow(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= s.windowStart && minutes <= s.windowEnd
}

// FailOrphaned hard-fails campaigns left in processing by a previous run.
// There is no durable resumption point beyond the last history row, so a
// restart cannot safely resume them.
func (s *MailingService) FailOrphaned() error {
	count, err := s.campaigns.FailOrphaned(s.now())
	if err != nil {
		return fmt.Errorf("fail orphaned campaigns: %w", err)
	}
	if count > 0 {
		logrus.Warnf("Marked %d orphaned processing campaigns as failed", count)
	}
	return nil
}

// ProcessCampaign runs one campaign to a terminal state. Individual send
// failures are recorded and skipped; only a peer_flood signal aborts the run.
func (s *MailingService) ProcessCampaign(ctx context.Context, campaignID uint) error {
	campaign, err := s.campaigns.GetByID(campaignID)
	if err != nil {
		return fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	if campaign.Status != models.CampaignStatusPending {
		return fmt.Errorf("campaign %s is %s, not pending", campaign.Code, campaign.Status)
	}

	logrus.Infof("Starting campaign %s", campaign.Code)

	template, err := s.templates.GetByID(campaign.TemplateID)
	if err != nil {
		return fmt.Errorf("load template %d: %w", campaign.TemplateID, err)
	}

	recipients, err := s.recipients.GetByCampaign(campaign.ID)
	if err != nil {
		return fmt.Errorf("load recipients of campaign %d: %w", campaign.ID, err)
	}
	if campaign.MaxRecipients != nil && len(recipients) > *campaign.MaxRecipients {
		logrus.Infof("Capping campaign %s to %d recipients (was %d)",
			campaign.Code, *campaign.MaxRecipients, len(recipients))
		recipients = recipients[:*campaign.MaxRecipients]
	}
	total := len(recipients)

	// Entry guards: outside the allowed window or with a restricted account
	// the campaign fails without a single attempt.
	if !s.withinAllowedWindow(s.now()) {
		logrus.Warnf("Campaign %s launched outside the allowed window", campaign.Code)
		s.finalize(ctx, campaign, models.CampaignStatusFailed, total, 0, 0, 0, false)
		s.reporter.NotifyOwner(ctx, campaign.OwnerID, fmt.Sprintf(
			"Campaign %s was not started: sending is allowed between %s and %s only.",
			campaign.Code, formatMinutes(s.windowStart), formatMinutes(s.windowEnd)))
		return nil
	}

	if err := s.sender.ProbeAccountHealth(ctx, campaign.OwnerID); err != nil {
		if result := classifySendError("health probe", err); result.ErrorType == models.ErrorTypePeerFlood {
			logrus.Errorf("PEER_FLOOD on pre-flight probe, canceling campaign %s", campaign.Code)
			sentry.CaptureMessage(fmt.Sprintf("campaign %s canceled: account restricted on pre-flight probe", campaign.Code))
			s.finalize(ctx, campaign, models.CampaignStatusFailed, total, 0, 0, 0, false)
			s.reporter.NotifyOwner(ctx, campaign.OwnerID, fmt.Sprintf(
				"MAILING CANCELED\n\nCampaign: %s\nReason: the account is restricted by Telegram (PEER_FLOOD).\n\n"+
					"Wait 1-2 hours after the restriction is lifted and try again.", campaign.Code))
			return nil
		}
		logrus.Warnf("Account health probe for owner %d: %v", campaign.OwnerID, err)
	}

	if err := s.campaigns.MarkProcessing(campaign.ID, s.now()); err != nil {
		return fmt.Errorf("mark campaign %d processing: %w", campaign.ID, err)
	}

	var sent, failed, duplicates int
	lastWasReal := false

	for _, recipient := range recipients {
		info, err := s.duplicates.CheckDuplicate(campaign.TemplateID, recipient.NormalizedIdentifier)
		if err != nil {
			// Sending blind could redeliver a template that was already
			// delivered, which is never allowed. Record and move on.
			logrus.Errorf("Duplicate check for %s: %v", recipient.Identifier, err)
			failed++
			s.appendHistory(campaign.ID, recipient, failure(models.ErrorTypeTechnical,
				fmt.Sprintf("duplicate check failed: %v", err)))
			s.updateCounters(campaign.ID, total, sent, failed, duplicates)
			lastWasReal = false
			continue
		}
		if info.IsDuplicate {
			duplicates++
			if err := s.recipients.MarkDuplicate(recipient.ID, info.PreviousCampaignID); err != nil {
				logrus.Errorf("Mark recipient %d duplicate: %v", recipient.ID, err)
			}
			s.appendHistory(campaign.ID, recipient, SendResult{
				ErrorType:    models.ErrorTypeDuplicate,
				ErrorDetails: fmt.Sprintf("skipped, already sent in campaign #%d", info.PreviousCampaignID),
			})
			s.updateCounters(campaign.ID, total, sent, failed, duplicates)
			// Duplicate skips are free: no pacing around them.
			lastWasReal = false
			continue
		}

		if lastWasReal {
			delay := campaign.DelaySeconds
			if delay <= 0 {
				delay = 5
			}
			if err := s.sleep(ctx, time.Duration(delay)*time.Second); err != nil {
				logrus.Warnf("Campaign %s interrupted during pacing: %v", campaign.Code, err)
				s.finalize(ctx, campaign, models.CampaignStatusFailed, total, sent, failed, duplicates, true)
				return err
			}
		}

		result := s.sender.AttemptSend(ctx, campaign.OwnerID, recipient, template)
		s.appendHistory(campaign.ID, recipient, result)
		if result.Success {
			sent++
		} else {
			failed++
			if result.ErrorType == models.ErrorTypePeerFlood {
				logrus.Errorf("PEER_FLOOD detected, aborting campaign %s", campaign.Code)
				sentry.CaptureMessage(fmt.Sprintf("campaign %s aborted: PEER_FLOOD after %d sends", campaign.Code, sent))
				s.finalize(ctx, campaign, models.CampaignStatusFailed, total, sent, failed, duplicates, true)
				s.reporter.NotifyOwner(ctx, campaign.OwnerID, fmt.Sprintf(
					"MAILING ABORTED\n\nCampaign: %s\nReason: the account was restricted by Telegram (PEER_FLOOD).\n\n"+
						"Sent before the restriction: %d\nFailed: %d\n\n"+
						"Increase the delay between messages (at least 15-30 seconds), reduce the batch size, "+
						"and wait 1-2 hours before the next campaign.",
					campaign.Code, sent, failed))
				return nil
			}
		}
		s.updateCounters(campaign.ID, total, sent, failed, duplicates)
		lastWasReal = true
	}

	s.finalize(ctx, campaign, models.CampaignStatusCompleted, total, sent, failed, duplicates, true)
	logrus.Infof("Campaign %s completed: sent=%d failed=%d duplicates=%d", campaign.Code, sent, failed, duplicates)

	if duplicates > 0 {
		s.notifyDuplicates(ctx, campaign)
	}
	return nil
}

// notifyDuplicates lists the recipients flagged as duplicates in the owner
// notice that follows a completed run
func (s *MailingService) notifyDuplicates(ctx context.Context, campaign *models.Campaign) {
	rows, err := s.recipients.GetDuplicatesByCampaign(campaign.ID)
	if err != nil {
		logrus.Errorf("Load duplicates of campaign %d: %v", campaign.ID, err)
		return
	}
	if len(rows) == 0 {
		return
	}
	identifiers := make([]string, 0, len(rows))
	for _, row := range rows {
		identifiers = append(identifiers, row.Identifier)
	}
	s.reporter.NotifyOwner(ctx, campaign.OwnerID, formatDuplicatesNotice(identifiers))
}

// updateCounters persists the running counters so campaign progress is
// observable mid-run. Failures only cost freshness, the terminal update
// rewrites all counters.
func (s *MailingService) updateCounters(campaignID uint, total, sent, failed, duplicates int) {
	if err := s.campaigns.UpdateCounters(campaignID, total, sent, failed, duplicates); err != nil {
		logrus.Errorf("Update counters for campaign %d: %v", campaignID, err)
	}
}

// finalize persists the terminal status and counters as a single update and
// triggers the personal report. Report delivery is best-effort and never
// changes campaign status.
func (s *MailingService) finalize(ctx context.Context, campaign *models.Campaign, status string, total, sent, failed, duplicates int, report bool) {
	if err := s.campaigns.MarkTerminal(campaign.ID, status, s.now(), total, sent, failed, duplicates); err != nil {
		logrus.Errorf("Mark campaign %d %s: %v", campaign.ID, status, err)
	}
	if report {
		s.reporter.SendPersonalReport(ctx, campaign.ID)
	}
}

func (s *MailingService) appendHistory(campaignID uint, recipient *models.Recipient, result SendResult) {
	entry := &models.SendingHistory{
		CampaignID:           campaignID,
		RecipientIdentifier:  recipient.Identifier,
		NormalizedIdentifier: recipient.NormalizedIdentifier,
		Success:              result.Success,
		ErrorType:            result.ErrorType,
		ErrorDetails:         result.ErrorDetails,
		TelegramMessageID:    result.TelegramMessageID,
	}
	if err := s.history.Append(entry); err != nil {
		logrus.Errorf("Append history for %s: %v", recipient.Identifier, err)
	}
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func formatDuplicatesNotice(identifiers []string) string {
	shown := identifiers
	suffix := ""
	if len(shown) > 10 {
		suffix = fmt.Sprintf(", ... and %d more", len(shown)-10)
		shown = shown[:10]
	}
	return fmt.Sprintf(
		"Duplicates detected: %d\n\nSkipped (the message was already sent to them earlier):\n%s%s",
		len(identifiers), strings.Join(shown, ", "), suffix)
}
