// internal/repository/click_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// ClickRepositoryInterface stores tracking pixel hits in monthly partitions.
type ClickRepositoryInterface interface {
	EnsurePartition(ctx context.Context, month time.Time) error
	AddClick(ctx context.Context, mailerID string, at time.Time) error
	Count(ctx context.Context, mailerID string) (int, error)
	CountByDay(ctx context.Context, mailerID string, day time.Time) (int, error)
	CountByMonth(ctx context.Context, mailerID string, month time.Time) (int, error)
}

type ClickRepository struct {
	DB *sql.DB

	mu         sync.Mutex
	partitions map[string]struct{}
}

// PartitionName returns the clicks partition holding t, e.g. clicks_2024_05.
func PartitionName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("clicks_%04d_%02d", t.Year(), int(t.Month()))
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// partitionDDL creates the month's partition. Bounds carry an explicit UTC
// offset so the session TimeZone cannot shift them.
func partitionDDL(month time.Time) string {
	from := monthStart(month)
	to := from.AddDate(0, 1, 0)
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF clicks FOR VALUES FROM ('%s') TO ('%s')`,
		PartitionName(from), from.Format(partitionBoundLayout), to.Format(partitionBoundLayout),
	)
}

const partitionBoundLayout = "2006-01-02 15:04:05-07:00"

// EnsurePartition creates the partition for month's calendar month if needed.
// Known partitions are remembered so the hot path skips the DDL.
func (r *ClickRepository) EnsurePartition(ctx context.Context, month time.Time) error {
	name := PartitionName(month)

	r.mu.Lock()
	_, known := r.partitions[name]
	r.mu.Unlock()
	if known {
		return nil
	}

	if _, err := r.DB.ExecContext(ctx, partitionDDL(month)); err != nil {
		return fmt.Errorf("create partition %s: %w", name, err)
	}

	r.mu.Lock()
	if r.partitions == nil {
		r.partitions = map[string]struct{}{}
	}
	r.partitions[name] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *ClickRepository) AddClick(ctx context.Context, mailerID string, at time.Time) error {
	at = at.UTC()
	if err := r.EnsurePartition(ctx, at); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO clicks (mailer_id, clicked_at) VALUES ($1, $2)`, mailerID, at)
	return err
}

func (r *ClickRepository) Count(ctx context.Context, mailerID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM clicks WHERE mailer_id = $1`, mailerID).Scan(&n)
	return n, err
}

func (r *ClickRepository) CountByDay(ctx context.Context, mailerID string, day time.Time) (int, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return r.countBetween(ctx, mailerID, from, from.AddDate(0, 0, 1))
}

func (r *ClickRepository) CountByMonth(ctx context.Context, mailerID string, month time.Time) (int, error) {
	from := monthStart(month)
	return r.countBetween(ctx, mailerID, from, from.AddDate(0, 1, 0))
}

func (r *ClickRepository) countBetween(ctx context.Context, mailerID string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM clicks
		WHERE mailer_id = $1 AND clicked_at >= $2 AND clicked_at < $3
	`
	var n int
	err := r.DB.QueryRowContext(ctx, query, mailerID, from, to).Scan(&n)
	return n, err
}
