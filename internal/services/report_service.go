package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/outreachlab/telegram-mailer-backend/internal/database/repository"
	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/telegram"
)

var ErrReceiverListNotFound = errors.New("receiver list not found")

// ReportService builds and delivers campaign reports: the personal report to
// the campaign owner after every run and the daily summary digest to the
// configured receiver lists. All delivery is best-effort.
type ReportService struct {
	campaigns *repository.CampaignRepository
	templates *repository.TemplateRepository
	history   *repository.SendingHistoryRepository
	receivers *repository.ReportReceiverRepository
	notifier  telegram.Notifier

	digestHour   int
	digestMinute int
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewReportService(
	campaigns *repository.CampaignRepository,
	templates *repository.TemplateRepository,
	history *repository.SendingHistoryRepository,
	receivers *repository.ReportReceiverRepository,
	notifier telegram.Notifier,
) *ReportService {
	digest := minutesFromEnv("SUMMARY_REPORT_TIME", 22*60+30)
	return &ReportService{
		campaigns:    campaigns,
		templates:    templates,
		history:      history,
		receivers:    receivers,
		notifier:     notifier,
		digestHour:   digest / 60,
		digestMinute: digest % 60,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// SendPersonalReport delivers the per-campaign result report to the owner.
// Failures are logged and swallowed: report delivery never affects the
// campaign outcome.
func (s *ReportService) SendPersonalReport(ctx context.Context, campaignID uint) {
	campaign, err := s.campaigns.GetByID(campaignID)
	if err != nil {
		logrus.Errorf("Personal report: load campaign %d: %v", campaignID, err)
		return
	}
	template, err := s.templates.GetByID(campaign.TemplateID)
	if err != nil {
		logrus.Errorf("Personal report: load template %d: %v", campaign.TemplateID, err)
		return
	}
	entries, err := s.history.GetByCampaign(campaignID)
	if err != nil {
		logrus.Errorf("Personal report: load history of campaign %d: %v", campaignID, err)
		return
	}

	text := FormatPersonalReport(campaign, template, entries)
	s.NotifyOwner(ctx, campaign.OwnerID, text)
}

// NotifyOwner delivers a free-form alert to the campaign owner, best-effort.
func (s *ReportService) NotifyOwner(ctx context.Context, ownerID int64, text string) {
	addr := strconv.FormatInt(ownerID, 10)
	if err := s.notifier.DeliverText(ctx, addr, text); err != nil {
		logrus.Warnf("Owner notification to %s failed: %v", addr, err)
	}
}

// FormatPersonalReport renders the owner-facing result of one campaign.
func FormatPersonalReport(campaign *models.Campaign, template *models.Template, entries []*models.SendingHistory) string {
	var b strings.Builder

	status := "COMPLETED"
	if campaign.Status == models.CampaignStatusFailed {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "Campaign report: %s\n", campaign.Code)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Template: %s\n\n", template.Name)
	fmt.Fprintf(&b, "Recipients: %d\n", campaign.TotalRecipients)
	fmt.Fprintf(&b, "Sent: %d\n", campaign.SentSuccessfully)
	fmt.Fprintf(&b, "Failed: %d\n", campaign.SentFailed)
	fmt.Fprintf(&b, "Duplicates skipped: %d\n", campaign.DuplicatesCount)

	failures := make(map[string][]string)
	for _, entry := range entries {
		if entry.Success || entry.ErrorType == "" || entry.ErrorType == models.ErrorTypeDuplicate {
			continue
		}
		failures[entry.ErrorType] = append(failures[entry.ErrorType], entry.RecipientIdentifier)
	}
	if len(failures) > 0 {
		b.WriteString("\nFailure breakdown:\n")
		for _, errorType := range sortedKeys(failures) {
			identifiers := failures[errorType]
			label, ok := models.ErrorTypeDescriptions[errorType]
			if !ok {
				label = errorType
			}
			shown := identifiers
			suffix := ""
			if len(shown) > 5 {
				suffix = fmt.Sprintf(" and %d more", len(shown)-5)
				shown = shown[:5]
			}
			fmt.Fprintf(&b, "- %s (%d): %s%s\n", label, len(identifiers), strings.Join(shown, ", "), suffix)
		}
	}
	return b.String()
}

// GenerateSummaryReport renders the digest for all campaigns of one calendar
// day plus the day's error statistics.
func (s *ReportService) GenerateSummaryReport(date time.Time) (string, error) {
	campaigns, err := s.campaigns.GetDaily(date)
	if err != nil {
		return "", fmt.Errorf("load daily campaigns: %w", err)
	}

	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	stats, err := s.history.ErrorStatistics(start, start.Add(24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("load error statistics: %w", err)
	}
	return FormatSummaryReport(date, campaigns, stats), nil
}

// FormatSummaryReport renders the daily digest text.
func FormatSummaryReport(date time.Time, campaigns []*models.Campaign, errorStats map[string]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary for %s\n\n", date.Format("2006-01-02"))

	if len(campaigns) == 0 {
		b.WriteString("No campaigns were run.\n")
		return b.String()
	}

	var totalSent, totalFailed, totalDuplicates int
	for _, c := range campaigns {
		totalSent += c.SentSuccessfully
		totalFailed += c.SentFailed
		totalDuplicates += c.DuplicatesCount
	}
	fmt.Fprintf(&b, "Campaigns: %d\n", len(campaigns))
	fmt.Fprintf(&b, "Sent: %d\n", totalSent)
	fmt.Fprintf(&b, "Failed: %d\n", totalFailed)
	fmt.Fprintf(&b, "Duplicates skipped: %d\n\n", totalDuplicates)

	for _, c := range campaigns {
		fmt.Fprintf(&b, "%s [%s]: %d/%d sent, %d failed, %d duplicates\n",
			c.Code, c.Status, c.SentSuccessfully, c.TotalRecipients, c.SentFailed, c.DuplicatesCount)
	}

	if len(errorStats) > 0 {
		b.WriteString("\nError breakdown:\n")
		for _, errorType := range sortedKeys(errorStats) {
			label, ok := models.ErrorTypeDescriptions[errorType]
			if !ok {
				label = errorType
			}
			fmt.Fprintf(&b, "- %s: %d\n", label, errorStats[errorType])
		}
	}
	return b.String()
}

// SendSummaryReports fans the daily digest out to every active receiver.
func (s *ReportService) SendSummaryReports(ctx context.Context, date time.Time) error {
	text, err := s.GenerateSummaryReport(date)
	if err != nil {
		return err
	}
	receivers, err := s.receivers.GetAllActiveReceivers()
	if err != nil {
		return fmt.Errorf("load digest receivers: %w", err)
	}
	for _, receiver := range receivers {
		addr := receiver.Identifier
		if receiver.TelegramID != nil {
			addr = strconv.FormatInt(*receiver.TelegramID, 10)
		}
		if err := s.notifier.DeliverText(ctx, addr, text); err != nil {
			logrus.Warnf("Summary digest to %s failed: %v", addr, err)
		}
	}
	logrus.Infof("Summary digest for %s delivered to %d receivers", date.Format("2006-01-02"), len(receivers))
	return nil
}

// Start launches the daily digest scheduler. It fires once a day at the
// configured local time.
func (s *ReportService) Start() {
	go s.digestLoop()
	logrus.Infof("Summary digest scheduler started (daily at %02d:%02d)", s.digestHour, s.digestMinute)
}

// Stop terminates the digest scheduler and waits for it to exit.
func (s *ReportService) Stop() {
	close(s.stopChan)
	<-s.doneChan
	logrus.Info("Summary digest scheduler stopped")
}

func (s *ReportService) digestLoop() {
	defer close(s.doneChan)
	for {
		timer := time.NewTimer(time.Until(s.nextDigestTime(time.Now())))
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case firedAt := <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := s.SendSummaryReports(ctx, firedAt); err != nil {
				logrus.Errorf("Summary digest run failed: %v", err)
			}
			cancel()
		}
	}
}

func (s *ReportService) nextDigestTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.digestHour, s.digestMinute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// Receiver list management

func (s *ReportService) CreateReceiverList(req *models.CreateReceiverListRequest) (*models.ReportReceiverList, error) {
	list := &models.ReportReceiverList{Name: strings.TrimSpace(req.Name), IsActive: true}
	if list.Name == "" {
		return nil, errors.New("list name is required")
	}
	if err := s.receivers.CreateList(list); err != nil {
		return nil, fmt.Errorf("create receiver list: %w", err)
	}
	return list, nil
}

func (s *ReportService) GetReceiverLists() ([]*models.ReportReceiverList, error) {
	return s.receivers.GetActiveLists()
}

func (s *ReportService) GetReceiverList(id uint) (*models.ReportReceiverList, error) {
	list, err := s.receivers.GetList(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiverListNotFound
		}
		return nil, err
	}
	return list, nil
}

// AddReceivers normalizes and appends identifiers to a list, skipping ones
// already present. It returns how many were actually added.
func (s *ReportService) AddReceivers(listID uint, req *models.AddReceiversRequest) (int, error) {
	if _, err := s.GetReceiverList(listID); err != nil {
		return 0, err
	}
	added := 0
	for _, raw := range req.Identifiers {
		identifier := strings.TrimSpace(raw)
		if identifier == "" {
			continue
		}
		receiver := &models.ReportReceiver{
			ListID:         listID,
			Identifier:     identifier,
			IdentifierType: classifyIdentifier(identifier),
			IsActive:       true,
		}
		if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
			receiver.TelegramID = &id
		}
		ok, err := s.receivers.AddReceiver(receiver)
		if err != nil {
			return added, fmt.Errorf("add receiver %q: %w", identifier, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (s *ReportService) DeleteReceiverList(id uint) error {
	if err := s.receivers.SoftDeleteList(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReceiverListNotFound
		}
		return err
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
