// internal/repository/email_log_repository.go
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unclebandit/smart-mailer/internal/model"
)

// EmailLogRepositoryInterface is the append-only delivery log.
type EmailLogRepositoryInterface interface {
	Insert(ctx context.Context, o *model.DeliveryOutcome) error
	CountByDepartment(ctx context.Context, mailerID string) (map[string]int, error)
	SuccessfulCountByDepartment(ctx context.Context, mailerID string) (map[string]int, error)
	ListByMailer(ctx context.Context, mailerID string) ([]model.DeliveryOutcome, error)
}

type EmailLogRepository struct {
	DB *sql.DB
}

func (r *EmailLogRepository) Insert(ctx context.Context, o *model.DeliveryOutcome) error {
	if o.SentAt.IsZero() {
		o.SentAt = time.Now().UTC()
	}
	query := `
		INSERT INTO email_logs (mailer_id, recipient_email, recipient_name, recipient_department, success, log_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		o.MailerID, o.RecipientEmail, o.RecipientName, o.RecipientDepartment, o.Success, o.LogMessage, o.SentAt,
	).Scan(&o.ID)
}

// Record implements the dispatcher's delivery log sink.
func (r *EmailLogRepository) Record(ctx context.Context, o model.DeliveryOutcome) error {
	return r.Insert(ctx, &o)
}

func (r *EmailLogRepository) CountByDepartment(ctx context.Context, mailerID string) (map[string]int, error) {
	return r.countByDepartment(ctx, `
		SELECT recipient_department, COUNT(*)
		FROM email_logs
		WHERE mailer_id = $1
		GROUP BY recipient_department
	`, mailerID)
}

func (r *EmailLogRepository) SuccessfulCountByDepartment(ctx context.Context, mailerID string) (map[string]int, error) {
	return r.countByDepartment(ctx, `
		SELECT recipient_department, COUNT(*)
		FROM email_logs
		WHERE mailer_id = $1 AND success = TRUE
		GROUP BY recipient_department
	`, mailerID)
}

func (r *EmailLogRepository) countByDepartment(ctx context.Context, query, mailerID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, query, mailerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var dept sql.NullString
		var count int
		if err := rows.Scan(&dept, &count); err != nil {
			return nil, err
		}
		counts[dept.String] += count
	}
	return counts, rows.Err()
}

// ListByMailer returns every outcome for a campaign, newest first.
func (r *EmailLogRepository) ListByMailer(ctx context.Context, mailerID string) ([]model.DeliveryOutcome, error) {
	query := `
		SELECT id, mailer_id, recipient_email, COALESCE(recipient_name, ''), COALESCE(recipient_department, ''),
		       success, COALESCE(log_message, ''), sent_at
		FROM email_logs
		WHERE mailer_id = $1
		ORDER BY sent_at DESC, id DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, mailerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []model.DeliveryOutcome{}
	for rows.Next() {
		var o model.DeliveryOutcome
		if err := rows.Scan(&o.ID, &o.MailerID, &o.RecipientEmail, &o.RecipientName, &o.RecipientDepartment,
			&o.Success, &o.LogMessage, &o.SentAt); err != nil {
			return nil, err
		}
		logs = append(logs, o)
	}
	return logs, rows.Err()
}
