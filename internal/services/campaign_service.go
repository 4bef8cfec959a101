package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/outreachlab/telegram-mailer-backend/internal/database/repository"
	"github.com/outreachlab/telegram-mailer-backend/internal/models"
	"github.com/outreachlab/telegram-mailer-backend/internal/telegram"
)

var (
	ErrTemplateNotFound       = errors.New("template not found or inactive")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignNotOwned       = errors.New("campaign belongs to another user")
	ErrCampaignNotPending     = errors.New("campaign has already been launched")
	ErrResendDuplicatesDenied = errors.New("resending to duplicates is not supported: each recipient receives a given template at most once")
	ErrNoRecipientsSource     = errors.New("either a recipient list or a group identifier is required")
)

// dispatchPublisher hands a created campaign to the asynchronous execution
// pipeline. The rabbitmq service implements it.
type dispatchPublisher interface {
	PublishCampaignDispatch(campaignID uint) error
}

// CampaignService covers campaign assembly and launch. Execution itself is
// MailingService territory, reached through the dispatch queue.
type CampaignService struct {
	campaigns  *repository.CampaignRepository
	recipients *repository.RecipientRepository
	templates  *repository.TemplateRepository
	history    *repository.SendingHistoryRepository
	pool       *telegram.SessionPool
	publisher  dispatchPublisher
}

func NewCampaignService(
	campaigns *repository.CampaignRepository,
	recipients *repository.RecipientRepository,
	templates *repository.TemplateRepository,
	history *repository.SendingHistoryRepository,
	pool *telegram.SessionPool,
	publisher dispatchPublisher,
) *CampaignService {
	return &CampaignService{
		campaigns:  campaigns,
		recipients: recipients,
		templates:  templates,
		history:    history,
		pool:       pool,
		publisher:  publisher,
	}
}

// CreateCampaign assembles a pending campaign from the request: it resolves
// the template, builds the deduplicated recipient list and persists campaign
// plus recipients. Nothing is sent until Launch.
func (s *CampaignService) CreateCampaign(ctx context.Context, ownerID int64, req *models.CreateCampaignRequest) (*models.Campaign, error) {
	template, err := s.templates.GetByID(req.TemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	if !template.IsActive {
		return nil, ErrTemplateNotFound
	}

	var inputs []RecipientInput
	switch {
	case strings.TrimSpace(req.Recipients) != "":
		inputs = ParseRecipients(req.Recipients)
	case strings.TrimSpace(req.GroupIdentifier) != "":
		inputs, err = s.expandGroup(ctx, ownerID, req.GroupIdentifier)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoRecipientsSource
	}
	if err := ValidateRecipients(inputs); err != nil {
		return nil, err
	}

	delay := req.DelaySeconds
	if delay <= 0 {
		delay = 5
	}

	campaign := &models.Campaign{
		Code:            generateCampaignCode(),
		OwnerID:         ownerID,
		TemplateID:      template.ID,
		Status:          models.CampaignStatusPending,
		TotalRecipients: len(inputs),
		DelaySeconds:    delay,
		MaxRecipients:   req.MaxRecipients,
	}
	if err := s.campaigns.Create(campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	rows := make([]*models.Recipient, 0, len(inputs))
	for _, input := range inputs {
		rows = append(rows, &models.Recipient{
			CampaignID:           campaign.ID,
			Identifier:           input.Original,
			NormalizedIdentifier: input.Normalized,
			IdentifierType:       input.Type,
		})
	}
	if err := s.recipients.CreateBatch(rows); err != nil {
		return nil, fmt.Errorf("store recipients: %w", err)
	}

	logrus.Infof("Campaign %s created: template=%d recipients=%d delay=%ds",
		campaign.Code, campaign.TemplateID, campaign.TotalRecipients, campaign.DelaySeconds)
	return campaign, nil
}

// expandGroup resolves a group identifier and enumerates its human members
// as campaign recipients. Members without a username are addressed by id.
func (s *CampaignService) expandGroup(ctx context.Context, ownerID int64, identifier string) ([]RecipientInput, error) {
	session, release, err := s.pool.Acquire(ownerID)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer release()

	var chatID int64
	if id, convErr := strconv.ParseInt(strings.TrimSpace(identifier), 10, 64); convErr == nil {
		chatID = id
	} else {
		chat, resolveErr := session.Resolve(ctx, NormalizeIdentifier(identifier))
		if resolveErr != nil {
			return nil, fmt.Errorf("resolve group %q: %w", identifier, resolveErr)
		}
		chatID = chat.ID
	}

	members, err := session.Members(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("enumerate members of %q: %w", identifier, err)
	}

	seen := make(map[string]bool, len(members))
	inputs := make([]RecipientInput, 0, len(members))
	for _, member := range members {
		if member.IsBot {
			continue
		}
		var original string
		if member.Username != "" {
			original = "@" + member.Username
		} else {
			original = strconv.FormatInt(member.ID, 10)
		}
		normalized := NormalizeIdentifier(original)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		inputs = append(inputs, RecipientInput{
			Original:   original,
			Normalized: normalized,
			Type:       classifyIdentifier(original),
		})
	}
	return inputs, nil
}

// Launch transitions an owned pending campaign into the dispatch queue.
func (s *CampaignService) Launch(ownerID int64, campaignID uint) (*models.Campaign, error) {
	campaign, err := s.getOwned(ownerID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusPending {
		return nil, ErrCampaignNotPending
	}
	if err := s.publisher.PublishCampaignDispatch(campaign.ID); err != nil {
		return nil, fmt.Errorf("publish campaign dispatch: %w", err)
	}
	logrus.Infof("Campaign %s queued for dispatch", campaign.Code)
	return campaign, nil
}

func (s *CampaignService) GetByOwner(ownerID int64, limit int) ([]*models.Campaign, error) {
	return s.campaigns.GetByOwner(ownerID, limit)
}

func (s *CampaignService) GetByID(ownerID int64, campaignID uint) (*models.Campaign, []*models.SendingHistory, error) {
	campaign, err := s.getOwned(ownerID, campaignID)
	if err != nil {
		return nil, nil, err
	}
	return s.withHistory(campaign)
}

// GetByCode resolves a campaign by the human-readable code shown in reports.
func (s *CampaignService) GetByCode(ownerID int64, code string) (*models.Campaign, []*models.SendingHistory, error) {
	campaign, err := s.campaigns.GetByCode(strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCampaignNotFound
		}
		return nil, nil, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.OwnerID != ownerID {
		return nil, nil, ErrCampaignNotOwned
	}
	return s.withHistory(campaign)
}

func (s *CampaignService) withHistory(campaign *models.Campaign) (*models.Campaign, []*models.SendingHistory, error) {
	history, err := s.history.GetByCampaign(campaign.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return campaign, history, nil
}

// ResendDuplicates is rejected permanently. Duplicate suppression matches on
// template and recipient across all campaigns, so a resend campaign would
// skip every entry it was created for.
func (s *CampaignService) ResendDuplicates(ownerID int64, campaignID uint) error {
	if _, err := s.getOwned(ownerID, campaignID); err != nil {
		return err
	}
	return ErrResendDuplicatesDenied
}

func (s *CampaignService) getOwned(ownerID int64, campaignID uint) (*models.Campaign, error) {
	campaign, err := s.campaigns.GetByID(campaignID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if campaign.OwnerID != ownerID {
		return nil, ErrCampaignNotOwned
	}
	return campaign, nil
}

func generateCampaignCode() string {
	return "MAIL-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
