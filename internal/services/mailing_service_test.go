package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/telegram"
)

type terminalMark struct {
	status     string
	total      int
	sent       int
	failed     int
	duplicates int
}

type counterSnapshot struct {
	total      int
	sent       int
	failed     int
	duplicates int
}

type fakeCampaignStore struct {
	campaign   *models.Campaign
	processing bool
	terminal   *terminalMark
	progress   []counterSnapshot
	orphaned   int64
}

func (f *fakeCampaignStore) GetByID(id uint) (*models.Campaign, error) {
	return f.campaign, nil
}

func (f *fakeCampaignStore) MarkProcessing(id uint, startedAt time.Time) error {
	f.processing = true
	return nil
}

func (f *fakeCampaignStore) MarkTerminal(id uint, status string, completedAt time.Time, total, sent, failed, duplicates int) error {
	f.terminal = &terminalMark{status: status, total: total, sent: sent, failed: failed, duplicates: duplicates}
	return nil
}

func (f *fakeCampaignStore) UpdateCounters(id uint, total, sent, failed, duplicates int) error {
	f.progress = append(f.progress, counterSnapshot{total: total, sent: sent, failed: failed, duplicates: duplicates})
	return nil
}

func (f *fakeCampaignStore) FailOrphaned(completedAt time.Time) (int64, error) {
	return f.orphaned, nil
}

type fakeRecipientStore struct {
	recipients []*models.Recipient
	duplicates map[uint]uint
}

func (f *fakeRecipientStore) GetByCampaign(campaignID uint) ([]*models.Recipient, error) {
	return f.recipients, nil
}

func (f *fakeRecipientStore) GetDuplicatesByCampaign(campaignID uint) ([]*models.Recipient, error) {
	var dups []*models.Recipient
	for _, recipient := range f.recipients {
		if _, ok := f.duplicates[recipient.ID]; ok {
			dups = append(dups, recipient)
		}
	}
	return dups, nil
}

func (f *fakeRecipientStore) MarkDuplicate(id uint, previousCampaignID uint) error {
	if f.duplicates == nil {
		f.duplicates = make(map[uint]uint)
	}
	f.duplicates[id] = previousCampaignID
	return nil
}

type fakeHistoryStore struct {
	entries []*models.SendingHistory
}

func (f *fakeHistoryStore) Append(entry *models.SendingHistory) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeTemplateStore struct {
	template *models.Template
}

func (f *fakeTemplateStore) GetByID(id uint) (*models.Template, error) {
	return f.template, nil
}

type fakeDupChecker struct {
	known   map[string]uint
	failing map[string]error
}

func (f *fakeDupChecker) CheckDuplicate(templateID uint, normalizedIdentifier string) (DuplicateInfo, error) {
	if err, ok := f.failing[normalizedIdentifier]; ok {
		return DuplicateInfo{}, err
	}
	if prev, ok := f.known[normalizedIdentifier]; ok {
		return DuplicateInfo{IsDuplicate: true, PreviousCampaignID: prev}, nil
	}
	return DuplicateInfo{}, nil
}

type fakeCampaignSender struct {
	results   map[string]SendResult
	attempted []string
	probeErr  error
}

func (f *fakeCampaignSender) AttemptSend(ctx context.Context, ownerID int64, recipient *models.Recipient, template *models.Template) SendResult {
	f.attempted = append(f.attempted, recipient.Identifier)
	if result, ok := f.results[recipient.Identifier]; ok {
		return result
	}
	id := int64(len(f.attempted))
	return SendResult{Success: true, TelegramMessageID: &id}
}

func (f *fakeCampaignSender) ProbeAccountHealth(ctx context.Context, ownerID int64) error {
	return f.probeErr
}

type fakeReporter struct {
	personalReports []uint
	notifications   []string
}

func (f *fakeReporter) SendPersonalReport(ctx context.Context, campaignID uint) {
	f.personalReports = append(f.personalReports, campaignID)
}

func (f *fakeReporter) NotifyOwner(ctx context.Context, ownerID int64, text string) {
	f.notifications = append(f.notifications, text)
}

type mailingFixture struct {
	svc        *MailingService
	campaigns  *fakeCampaignStore
	recipients *fakeRecipientStore
	history    *fakeHistoryStore
	dups       *fakeDupChecker
	sender     *fakeCampaignSender
	reporter   *fakeReporter
	sleeps     *[]time.Duration
}

func newMailingFixture(campaign *models.Campaign, recipients []*models.Recipient, dups map[string]uint) *mailingFixture {
	campaigns := &fakeCampaignStore{campaign: campaign}
	recipientStore := &fakeRecipientStore{recipients: recipients}
	history := &fakeHistoryStore{}
	dupChecker := &fakeDupChecker{known: dups}
	sender := &fakeCampaignSender{results: map[string]SendResult{}}
	reporter := &fakeReporter{}
	sleeps := &[]time.Duration{}

	// 12:00 local time, inside the default window
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.Local)

	svc := &MailingService{
		campaigns:   campaigns,
		recipients:  recipientStore,
		history:     history,
		templates:   &fakeTemplateStore{template: &models.Template{ID: campaign.TemplateID, Name: "promo", Text: "hi"}},
		duplicates:  dupChecker,
		sender:      sender,
		reporter:    reporter,
		windowStart: 9 * 60,
		windowEnd:   22 * 60,
		now:         func() time.Time { return now },
		sleep: func(ctx context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
	return &mailingFixture{
		svc:        svc,
		campaigns:  campaigns,
		recipients: recipientStore,
		history:    history,
		dups:       dupChecker,
		sender:     sender,
		reporter:   reporter,
		sleeps:     sleeps,
	}
}

func pendingCampaign(delay int) *models.Campaign {
	return &models.Campaign{
		ID:           1,
		Code:         "MAIL-TEST0001",
		OwnerID:      100,
		TemplateID:   7,
		Status:       models.CampaignStatusPending,
		DelaySeconds: delay,
	}
}

func recipientRow(id uint, identifier string) *models.Recipient {
	return &models.Recipient{
		ID:                   id,
		CampaignID:           1,
		Identifier:           identifier,
		NormalizedIdentifier: NormalizeIdentifier(identifier),
		IdentifierType:       models.IdentifierTypeUsername,
	}
}

func TestProcessCampaignCompletes(t *testing.T) {
	f := newMailingFixture(pendingCampaign(2), []*models.Recipient{
		recipientRow(1, "111"),
		recipientRow(2, "@alice"),
	}, nil)

	err := f.svc.ProcessCampaign(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, f.campaigns.processing)
	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, models.CampaignStatusCompleted, f.campaigns.terminal.status)
	assert.Equal(t, 2, f.campaigns.terminal.total)
	assert.Equal(t, 2, f.campaigns.terminal.sent)
	assert.Zero(t, f.campaigns.terminal.failed)
	assert.Zero(t, f.campaigns.terminal.duplicates)

	assert.Len(t, f.history.entries, 2)
	assert.Equal(t, []uint{1}, f.reporter.personalReports)
	assert.Empty(t, f.reporter.notifications)
}

func TestProcessCampaignPacingBetweenRealSends(t *testing.T) {
	f := newMailingFixture(pendingCampaign(3), []*models.Recipient{
		recipientRow(1, "@a"),
		recipientRow(2, "@b"),
		recipientRow(3, "@c"),
	}, nil)

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	// No pause before the first send, one before each following real send
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, *f.sleeps)
}

func TestProcessCampaignDuplicateSkipsWithoutPacing(t *testing.T) {
	f := newMailingFixture(pendingCampaign(5), []*models.Recipient{
		recipientRow(1, "@a"),
		recipientRow(2, "@dup"),
		recipientRow(3, "@c"),
	}, map[string]uint{"dup": 42})

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	// The skip breaks the pacing chain: no sleep around the duplicate and
	// none before the send that follows it
	assert.Empty(t, *f.sleeps)
	assert.Equal(t, []string{"@a", "@c"}, f.sender.attempted)

	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, models.CampaignStatusCompleted, f.campaigns.terminal.status)
	assert.Equal(t, 2, f.campaigns.terminal.sent)
	assert.Equal(t, 1, f.campaigns.terminal.duplicates)

	assert.Equal(t, map[uint]uint{2: 42}, f.recipients.duplicates)

	require.Len(t, f.history.entries, 3)
	assert.Equal(t, models.ErrorTypeDuplicate, f.history.entries[1].ErrorType)
	assert.False(t, f.history.entries[1].Success)
	assert.Equal(t, "dup", f.history.entries[1].NormalizedIdentifier)

	// Duplicates notice goes out alongside the personal report
	require.Len(t, f.reporter.notifications, 1)
	assert.Contains(t, f.reporter.notifications[0], "@dup")
}

func TestProcessCampaignPeerFloodAborts(t *testing.T) {
	recipients := make([]*models.Recipient, 10)
	for i := range recipients {
		recipients[i] = recipientRow(uint(i+1), "@user"+string(rune('a'+i)))
	}
	f := newMailingFixture(pendingCampaign(1), recipients, nil)
	f.sender.results[recipients[2].Identifier] = SendResult{
		ErrorType:    models.ErrorTypePeerFlood,
		ErrorDetails: "peer flood",
	}

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	// Aborted on the third recipient: two sent, one failed, rest untouched
	assert.Len(t, f.sender.attempted, 3)
	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, models.CampaignStatusFailed, f.campaigns.terminal.status)
	assert.Equal(t, 10, f.campaigns.terminal.total)
	assert.Equal(t, 2, f.campaigns.terminal.sent)
	assert.Equal(t, 1, f.campaigns.terminal.failed)

	require.Len(t, f.reporter.notifications, 1)
	assert.Contains(t, f.reporter.notifications[0], "ABORTED")
	assert.Contains(t, f.reporter.notifications[0], "PEER_FLOOD")
	assert.Equal(t, []uint{1}, f.reporter.personalReports)
}

func TestProcessCampaignOutsideWindow(t *testing.T) {
	f := newMailingFixture(pendingCampaign(1), []*models.Recipient{
		recipientRow(1, "@a"),
	}, nil)
	f.svc.now = func() time.Time {
		return time.Date(2026, 8, 20, 23, 0, 0, 0, time.Local)
	}

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	assert.Empty(t, f.sender.attempted)
	assert.False(t, f.campaigns.processing)
	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, models.CampaignStatusFailed, f.campaigns.terminal.status)
	assert.Equal(t, 1, f.campaigns.terminal.total)
	assert.Zero(t, f.campaigns.terminal.sent)

	require.Len(t, f.reporter.notifications, 1)
	assert.Contains(t, f.reporter.notifications[0], "09:00")
	assert.Contains(t, f.reporter.notifications[0], "22:00")
}

func TestProcessCampaignPreflightPeerFlood(t *testing.T) {
	f := newMailingFixture(pendingCampaign(1), []*models.Recipient{
		recipientRow(1, "@a"),
	}, nil)
	f.sender.probeErr = telegram.NewError(telegram.KindPeerFlood, "peer flood")

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	assert.Empty(t, f.sender.attempted)
	assert.False(t, f.campaigns.processing)
	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, models.CampaignStatusFailed, f.campaigns.terminal.status)

	require.Len(t, f.reporter.notifications, 1)
	assert.Contains(t, f.reporter.notifications[0], "CANCELED")
}

func TestProcessCampaignRejectsNonPending(t *testing.T) {
	campaign := pendingCampaign(1)
	campaign.Status = models.CampaignStatusCompleted
	f := newMailingFixture(campaign, nil, nil)

	err := f.svc.ProcessCampaign(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not pending"))
}

func TestProcessCampaignMaxRecipientsCap(t *testing.T) {
	campaign := pendingCampaign(1)
	limit := 2
	campaign.MaxRecipients = &limit
	f := newMailingFixture(campaign, []*models.Recipient{
		recipientRow(1, "@a"),
		recipientRow(2, "@b"),
		recipientRow(3, "@c"),
	}, nil)

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	assert.Equal(t, []string{"@a", "@b"}, f.sender.attempted)
	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, 2, f.campaigns.terminal.total)
	assert.Equal(t, 2, f.campaigns.terminal.sent)
}

func TestProcessCampaignDuplicateCheckErrorSkipsSend(t *testing.T) {
	f := newMailingFixture(pendingCampaign(1), []*models.Recipient{
		recipientRow(1, "@a"),
		recipientRow(2, "@b"),
		recipientRow(3, "@c"),
	}, nil)
	f.dups.failing = map[string]error{"b": assert.AnError}

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	// A failed lookup must not fall through to a real send
	assert.Equal(t, []string{"@a", "@c"}, f.sender.attempted)

	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, models.CampaignStatusCompleted, f.campaigns.terminal.status)
	assert.Equal(t, 2, f.campaigns.terminal.sent)
	assert.Equal(t, 1, f.campaigns.terminal.failed)

	require.Len(t, f.history.entries, 3)
	assert.Equal(t, models.ErrorTypeTechnical, f.history.entries[1].ErrorType)
	assert.False(t, f.history.entries[1].Success)
}

func TestProcessCampaignPersistsRunningCounters(t *testing.T) {
	f := newMailingFixture(pendingCampaign(1), []*models.Recipient{
		recipientRow(1, "@a"),
		recipientRow(2, "@dup"),
		recipientRow(3, "@c"),
	}, map[string]uint{"dup": 42})

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	assert.Equal(t, []counterSnapshot{
		{total: 3, sent: 1, failed: 0, duplicates: 0},
		{total: 3, sent: 1, failed: 0, duplicates: 1},
		{total: 3, sent: 2, failed: 0, duplicates: 1},
	}, f.campaigns.progress)
	for _, snapshot := range f.campaigns.progress {
		assert.LessOrEqual(t, snapshot.sent+snapshot.failed+snapshot.duplicates, snapshot.total)
	}
}

func TestProcessCampaignNonFatalFailuresContinue(t *testing.T) {
	f := newMailingFixture(pendingCampaign(1), []*models.Recipient{
		recipientRow(1, "@a"),
		recipientRow(2, "@blocked"),
		recipientRow(3, "@c"),
	}, nil)
	f.sender.results["@blocked"] = SendResult{
		ErrorType:    models.ErrorTypeBlocked,
		ErrorDetails: "bot was blocked",
	}

	require.NoError(t, f.svc.ProcessCampaign(context.Background(), 1))

	assert.Len(t, f.sender.attempted, 3)
	require.NotNil(t, f.campaigns.terminal)
	assert.Equal(t, models.CampaignStatusCompleted, f.campaigns.terminal.status)
	assert.Equal(t, 2, f.campaigns.terminal.sent)
	assert.Equal(t, 1, f.campaigns.terminal.failed)
}
