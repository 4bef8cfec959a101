package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

func TestFormatPersonalReport(t *testing.T) {
	campaign := &models.Campaign{
		Code:             "MAIL-ABCD1234",
		Status:           models.CampaignStatusCompleted,
		TotalRecipients:  5,
		SentSuccessfully: 3,
		SentFailed:       1,
		DuplicatesCount:  1,
	}
	template := &models.Template{Name: "October promo"}
	entries := []*models.SendingHistory{
		{RecipientIdentifier: "@a", Success: true},
		{RecipientIdentifier: "@b", Success: true},
		{RecipientIdentifier: "@c", Success: true},
		{RecipientIdentifier: "@d", Success: false, ErrorType: models.ErrorTypeBlocked},
		{RecipientIdentifier: "@e", Success: false, ErrorType: models.ErrorTypeDuplicate},
	}

	report := FormatPersonalReport(campaign, template, entries)

	assert.Contains(t, report, "MAIL-ABCD1234")
	assert.Contains(t, report, "COMPLETED")
	assert.Contains(t, report, "October promo")
	assert.Contains(t, report, "Sent: 3")
	assert.Contains(t, report, "Failed: 1")
	assert.Contains(t, report, "Duplicates skipped: 1")
	assert.Contains(t, report, models.ErrorTypeDescriptions[models.ErrorTypeBlocked])
	assert.Contains(t, report, "@d")
	// Duplicates are counted separately, not listed as failures
	assert.NotContains(t, report, models.ErrorTypeDescriptions[models.ErrorTypeDuplicate])
}

func TestFormatPersonalReportFailedStatus(t *testing.T) {
	campaign := &models.Campaign{
		Code:   "MAIL-FFFF0000",
		Status: models.CampaignStatusFailed,
	}
	report := FormatPersonalReport(campaign, &models.Template{Name: "x"}, nil)
	assert.Contains(t, report, "FAILED")
}

func TestFormatPersonalReportTruncatesLongFailureLists(t *testing.T) {
	campaign := &models.Campaign{Code: "MAIL-00000001", Status: models.CampaignStatusCompleted}
	var entries []*models.SendingHistory
	for i := 0; i < 8; i++ {
		entries = append(entries, &models.SendingHistory{
			RecipientIdentifier: "@user" + string(rune('a'+i)),
			ErrorType:           models.ErrorTypeBlocked,
		})
	}

	report := FormatPersonalReport(campaign, &models.Template{Name: "x"}, entries)
	assert.Contains(t, report, "(8)")
	assert.Contains(t, report, "and 3 more")
}

func TestFormatSummaryReportEmpty(t *testing.T) {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	report := FormatSummaryReport(date, nil, nil)
	assert.Contains(t, report, "2026-08-20")
	assert.Contains(t, report, "No campaigns were run")
}

func TestFormatSummaryReportAggregates(t *testing.T) {
	date := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	campaigns := []*models.Campaign{
		{Code: "MAIL-00000001", Status: models.CampaignStatusCompleted, TotalRecipients: 10, SentSuccessfully: 8, SentFailed: 1, DuplicatesCount: 1},
		{Code: "MAIL-00000002", Status: models.CampaignStatusFailed, TotalRecipients: 4, SentSuccessfully: 1, SentFailed: 3},
	}
	stats := map[string]int{
		models.ErrorTypeBlocked:   2,
		models.ErrorTypePeerFlood: 1,
	}

	report := FormatSummaryReport(date, campaigns, stats)

	assert.Contains(t, report, "Campaigns: 2")
	assert.Contains(t, report, "Sent: 9")
	assert.Contains(t, report, "Failed: 4")
	assert.Contains(t, report, "MAIL-00000001")
	assert.Contains(t, report, "MAIL-00000002")
	assert.Contains(t, report, models.ErrorTypeDescriptions[models.ErrorTypeBlocked])
	assert.Contains(t, report, models.ErrorTypeDescriptions[models.ErrorTypePeerFlood])
}

func TestFormatDuplicatesNotice(t *testing.T) {
	short := formatDuplicatesNotice([]string{"@a", "@b"})
	assert.Contains(t, short, "Duplicates detected: 2")
	assert.Contains(t, short, "@a, @b")

	var many []string
	for i := 0; i < 14; i++ {
		many = append(many, "@user"+string(rune('a'+i)))
	}
	long := formatDuplicatesNotice(many)
	assert.Contains(t, long, "Duplicates detected: 14")
	assert.Contains(t, long, "and 4 more")
}
