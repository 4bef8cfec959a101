package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/outreachlab/telegram-mailer-backend/internal/models"
)

func TestValidateTemplateFields(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		text      string
		mediaType string
		wantErr   error
	}{
		{"valid text only", "promo", "hello", "", nil},
		{"valid with media", "promo", "hello", models.MediaTypePhoto, nil},
		{"empty name", "  ", "hello", "", ErrTemplateNameRequired},
		{"name too long", strings.Repeat("x", 256), "hello", "", ErrTemplateNameTooLong},
		{"empty text", "promo", "   ", "", ErrTemplateTextRequired},
		{"text too long", "promo", strings.Repeat("a", 4097), "", ErrTemplateTextTooLong},
		{"bad media type", "promo", "hello", "sticker", ErrInvalidMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTemplateFields(tt.fieldName, tt.text, tt.mediaType)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTemplateFieldsCountsRunes(t *testing.T) {
	// 4096 multibyte characters are exactly at the ceiling
	text := strings.Repeat("ß", 4096)
	assert.NoError(t, validateTemplateFields("promo", text, ""))
	assert.ErrorIs(t, validateTemplateFields("promo", text+"ß", ""), ErrTemplateTextTooLong)
}

func TestGenerateCampaignCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := generateCampaignCode()
		assert.True(t, strings.HasPrefix(code, "MAIL-"))
		assert.Len(t, code, len("MAIL-")+8)
		assert.Equal(t, strings.ToUpper(code), code)
		seen[code] = true
	}
	assert.Len(t, seen, 50)
}
