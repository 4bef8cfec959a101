package services

import (
	"fmt"
	"time"
)

// lastSendFinder is the single history query the duplicate detector needs
type lastSendFinder interface {
	FindLastSuccessfulSend(templateID uint, normalizedIdentifier string) (uint, time.Time, error)
}

// DuplicateInfo is the result of a duplicate check
type DuplicateInfo struct {
	IsDuplicate        bool
	PreviousCampaignID uint
	PreviousSentAt     time.Time
}

// DuplicateService detects recipients that already received a template in any
// prior campaign. Detection spans the template's entire send history, not a
// single campaign. Consistency with concurrently running campaigns is
// eventual: a duplicate committed by a sibling after this check is not seen.
type DuplicateService struct {
	history lastSendFinder
}

func NewDuplicateService(history lastSendFinder) *DuplicateService {
	return &DuplicateService{history: history}
}

// CheckDuplicate returns whether the normalized identifier already received a
// successful send of the template, with the originating campaign on a hit
func (s *DuplicateService) CheckDuplicate(templateID uint, normalizedIdentifier string) (DuplicateInfo, error) {
	campaignID, sentAt, err := s.history.FindLastSuccessfulSend(templateID, normalizedIdentifier)
	if err != nil {
		return DuplicateInfo{}, fmt.Errorf("duplicate lookup for template %d: %w", templateID, err)
	}
	if campaignID == 0 {
		return DuplicateInfo{}, nil
	}
	return DuplicateInfo{
		IsDuplicate:        true,
		PreviousCampaignID: campaignID,
		PreviousSentAt:     sentAt,
	}, nil
}
