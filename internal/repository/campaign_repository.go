// internal/repository/campaign_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/smart-mailer/internal/errors"
	"github.com/unclebandit/smart-mailer/internal/model"
)

// CampaignRepositoryInterface is the campaign registry. Campaigns live in the
// mailers table and are never updated or deleted.
type CampaignRepositoryInterface interface {
	Create(ctx context.Context) (*model.Campaign, error)
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListAll(ctx context.Context) ([]model.Campaign, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

// Create mints a new campaign with a random UUID.
func (r *CampaignRepository) Create(ctx context.Context) (*model.Campaign, error) {
	c := &model.Campaign{ID: uuid.NewString()}
	query := `INSERT INTO mailers (id) VALUES ($1) RETURNING created_at`
	if err := r.DB.QueryRowContext(ctx, query, c.ID).Scan(&c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.DB.QueryRowContext(ctx, `SELECT id, created_at FROM mailers WHERE id=$1`, id).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM mailers WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *CampaignRepository) ListAll(ctx context.Context) ([]model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, created_at FROM mailers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []model.Campaign{}
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}
