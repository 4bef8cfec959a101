package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLastSendFinder struct {
	campaignID uint
	sentAt     time.Time
	err        error
	calls      int
}

func (f *fakeLastSendFinder) FindLastSuccessfulSend(templateID uint, normalizedIdentifier string) (uint, time.Time, error) {
	f.calls++
	return f.campaignID, f.sentAt, f.err
}

func TestCheckDuplicateHit(t *testing.T) {
	sentAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := NewDuplicateService(&fakeLastSendFinder{campaignID: 42, sentAt: sentAt})

	info, err := svc.CheckDuplicate(7, "bob")
	require.NoError(t, err)
	assert.True(t, info.IsDuplicate)
	assert.Equal(t, uint(42), info.PreviousCampaignID)
	assert.Equal(t, sentAt, info.PreviousSentAt)
}

func TestCheckDuplicateMiss(t *testing.T) {
	svc := NewDuplicateService(&fakeLastSendFinder{})

	info, err := svc.CheckDuplicate(7, "bob")
	require.NoError(t, err)
	assert.False(t, info.IsDuplicate)
	assert.Zero(t, info.PreviousCampaignID)
}

func TestCheckDuplicateIdempotent(t *testing.T) {
	finder := &fakeLastSendFinder{campaignID: 42}
	svc := NewDuplicateService(finder)

	first, err := svc.CheckDuplicate(7, "bob")
	require.NoError(t, err)
	second, err := svc.CheckDuplicate(7, "bob")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, finder.calls)
}

func TestCheckDuplicateLookupError(t *testing.T) {
	svc := NewDuplicateService(&fakeLastSendFinder{err: errors.New("db down")})

	_, err := svc.CheckDuplicate(7, "bob")
	assert.Error(t, err)
}
