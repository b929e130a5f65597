package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/markora/shopcore/app/models"
	"github.com/markora/shopcore/internal/pkg/database"
	"github.com/markora/shopcore/internal/pkg/env"
)

const defaultWebhookRetentionDays = 30

// processWebhookEventCleanupJob deletes processed webhook audit rows that are
// older than the retention window. Unprocessed rows are kept so failures stay
// visible until someone looks at them.
func (q *Queue) processWebhookEventCleanupJob(_ context.Context, job *Job) error {
	retentionDays := env.GetEnvInt("WEBHOOK_RETENTION_DAYS", defaultWebhookRetentionDays)
	if retentionDays <= 0 {
		retentionDays = defaultWebhookRetentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := database.GetDB().
		Where("processed_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.WebhookEvent{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete old webhook events: %w", result.Error)
	}

	log.Infof("[JobQueue] Webhook event cleanup removed %d rows older than %s", result.RowsAffected, cutoff.Format(time.RFC3339))
	return nil
}
