// internal/service/campaign_service.go
package service

import (
	"context"
	"log/slog"
	"time"

	appErrors "github.com/unclebandit/smart-mailer/internal/errors"
	"github.com/unclebandit/smart-mailer/internal/logger"
	"github.com/unclebandit/smart-mailer/internal/model"
	"github.com/unclebandit/smart-mailer/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	EmailLogRepo repository.EmailLogRepositoryInterface
	ClickRepo    repository.ClickRepositoryInterface
	Log          *slog.Logger
	Now          func() time.Time
}

// DeliveryStats is the per-campaign delivery report.
type DeliveryStats struct {
	MailerID            string                  `json:"mailerId"`
	TotalEmailSent      map[string]int          `json:"totalEmailSent"`
	SuccessfulEmailSent map[string]int          `json:"successfulEmailSent"`
	EmailLogs           []model.DeliveryOutcome `json:"emailLogs"`
}

// ClickStats is the per-campaign open report.
type ClickStats struct {
	ClickCount  int                `json:"clickCount"`
	Last5Days   []model.DatedCount `json:"last5Days"`
	Last5Months []model.DatedCount `json:"last5Months"`
}

func (s *CampaignService) logger() *slog.Logger {
	if s.Log == nil {
		return logger.NewNope()
	}
	return s.Log
}

func (s *CampaignService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Resolve returns mailerID when it names an existing campaign and mints a new
// campaign otherwise.
func (s *CampaignService) Resolve(ctx context.Context, mailerID string) (string, error) {
	if mailerID != "" {
		exists, err := s.CampaignRepo.Exists(ctx, mailerID)
		if err != nil {
			return "", err
		}
		if exists {
			return mailerID, nil
		}
		s.logger().Info("unknown mailer id, minting a new campaign", slog.String("requested_mailer_id", mailerID))
	}
	c, err := s.CampaignRepo.Create(ctx)
	if err != nil {
		return "", err
	}
	s.logger().Info("campaign created", slog.String("mailer_id", c.ID))
	return c.ID, nil
}

func (s *CampaignService) CreateCampaign(ctx context.Context) (*model.Campaign, error) {
	return s.CampaignRepo.Create(ctx)
}

func (s *CampaignService) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.CampaignRepo.ListAll(ctx)
}

func (s *CampaignService) ensureExists(ctx context.Context, mailerID string) error {
	if mailerID == "" {
		return appErrors.NewRequestError(appErrors.ReasonMailerIDMissing)
	}
	exists, err := s.CampaignRepo.Exists(ctx, mailerID)
	if err != nil {
		return err
	}
	if !exists {
		return appErrors.NewCampaignNotFound(mailerID)
	}
	return nil
}

// GetDeliveryStats aggregates the delivery log of a campaign by department.
func (s *CampaignService) GetDeliveryStats(ctx context.Context, mailerID string) (*DeliveryStats, error) {
	if err := s.ensureExists(ctx, mailerID); err != nil {
		return nil, err
	}

	total, err := s.EmailLogRepo.CountByDepartment(ctx, mailerID)
	if err != nil {
		return nil, err
	}
	successful, err := s.EmailLogRepo.SuccessfulCountByDepartment(ctx, mailerID)
	if err != nil {
		return nil, err
	}
	logs, err := s.EmailLogRepo.ListByMailer(ctx, mailerID)
	if err != nil {
		return nil, err
	}

	return &DeliveryStats{
		MailerID:            mailerID,
		TotalEmailSent:      total,
		SuccessfulEmailSent: successful,
		EmailLogs:           logs,
	}, nil
}

// GetClickStats returns the total opens plus daily counts for the last five
// days and monthly counts for the last five months, most recent first.
func (s *CampaignService) GetClickStats(ctx context.Context, mailerID string) (*ClickStats, error) {
	if err := s.ensureExists(ctx, mailerID); err != nil {
		return nil, err
	}

	count, err := s.ClickRepo.Count(ctx, mailerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats := &ClickStats{ClickCount: count}
	for i := 0; i < 5; i++ {
		day := today.AddDate(0, 0, -i)
		n, err := s.ClickRepo.CountByDay(ctx, mailerID, day)
		if err != nil {
			return nil, err
		}
		stats.Last5Days = append(stats.Last5Days, model.DatedCount{Date: day, Count: n})
	}
	for i := 0; i < 5; i++ {
		month := thisMonth.AddDate(0, -i, 0)
		n, err := s.ClickRepo.CountByMonth(ctx, mailerID, month)
		if err != nil {
			return nil, err
		}
		stats.Last5Months = append(stats.Last5Months, model.DatedCount{Date: month, Count: n})
	}
	return stats, nil
}

// RecordClick stores one open for an existing campaign. Unknown ids are
// ignored and reported as false.
func (s *CampaignService) RecordClick(ctx context.Context, mailerID string) (bool, error) {
	if mailerID == "" {
		return false, nil
	}
	exists, err := s.CampaignRepo.Exists(ctx, mailerID)
	if err != nil || !exists {
		return false, err
	}
	if err := s.ClickRepo.AddClick(ctx, mailerID, s.now()); err != nil {
		return false, err
	}
	return true, nil
}
