// internal/service/partition_task.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/smart-mailer/internal/repository"
)

// PartitionTask keeps the current and next month's click partitions in place
// so pixel hits rarely pay for DDL.
type PartitionTask struct {
	ClickRepo repository.ClickRepositoryInterface
	Log       *slog.Logger
	Now       func() time.Time
}

// Run ensures partitions for this month and next month.
func (t *PartitionTask) Run(ctx context.Context) error {
	now := time.Now().UTC()
	if t.Now != nil {
		now = t.Now().UTC()
	}
	this := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for _, month := range []time.Time{this, this.AddDate(0, 1, 0)} {
		if err := t.ClickRepo.EnsurePartition(ctx, month); err != nil {
			return err
		}
		t.Log.Info("click partition ready", slog.String("partition", repository.PartitionName(month)))
	}
	return nil
}

// Schedule registers the task on a cron scheduler using a standard 5-field spec.
func (t *PartitionTask) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := t.Run(runCtx); err != nil {
			t.Log.Error("click partition task failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return id, nil
}
