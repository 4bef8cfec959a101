package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

func TestCampaignResponses(t *testing.T) {
	limit := 100
	campaigns := []*models.Campaign{
		{ID: 1, Code: "MAIL-AAAA1111", Status: models.CampaignStatusPending, DelaySeconds: 5},
		{ID: 2, Code: "MAIL-BBBB2222", Status: models.CampaignStatusCompleted, SentSuccessfully: 9, MaxRecipients: &limit},
	}

	responses := campaignResponses(campaigns)

	require.Len(t, responses, 2)
	assert.Equal(t, "MAIL-AAAA1111", responses[0].Code)
	assert.Equal(t, models.CampaignStatusPending, responses[0].Status)
	assert.Equal(t, uint(2), responses[1].ID)
	assert.Equal(t, 9, responses[1].SentSuccessfully)
	require.NotNil(t, responses[1].MaxRecipients)
	assert.Equal(t, 100, *responses[1].MaxRecipients)
}

func TestCampaignResponsesEmpty(t *testing.T) {
	assert.Empty(t, campaignResponses(nil))
}
