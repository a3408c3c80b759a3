package services

import (
	"context"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/ledger"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

const (
	DefaultUsageMonths = 3
	maxUsageMonths     = 24
)

type UsageReader interface {
	ByInvoice(ctx context.Context, invoiceID string) ([]models.TokenUsageEvent, error)
	ByUser(ctx context.Context, userID string, since time.Time) ([]models.UsageRow, error)
}

type CacheStatsReader interface {
	Stats(ctx context.Context) (*models.CacheStats, error)
}

type UsageService interface {
	InvoiceUsage(ctx context.Context, userID, invoiceID string) ([]models.TokenUsageEvent, error)
	UserUsage(ctx context.Context, userID string, months int) (*models.UsageReport, error)
	CacheStats(ctx context.Context) (*models.CacheStats, error)
}

type usageService struct {
	usage  UsageReader
	cache  CacheStatsReader
	logger *utils.Logger
	now    func() time.Time
}

func NewUsageService(usage UsageReader, cache CacheStatsReader, logger *utils.Logger) UsageService {
	return &usageService{
		usage:  usage,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// InvoiceUsage lists the usage events of one pipeline run. Runs that were
// rejected have events but no invoice, so ownership is checked per event.
func (s *usageService) InvoiceUsage(ctx context.Context, userID, invoiceID string) ([]models.TokenUsageEvent, error) {
	events, err := s.usage.ByInvoice(ctx, invoiceID)
	if err != nil {
		s.logger.Error("Failed to list invoice usage", "error", err, "invoiceId", invoiceID)
		return nil, utils.NewInternalError("Failed to retrieve token usage")
	}

	owned := make([]models.TokenUsageEvent, 0, len(events))
	for _, e := range events {
		if e.UserID == userID {
			owned = append(owned, e)
		}
	}
	return owned, nil
}

// UserUsage reports the user's usage over the last months calendar months.
func (s *usageService) UserUsage(ctx context.Context, userID string, months int) (*models.UsageReport, error) {
	if months == 0 {
		months = DefaultUsageMonths
	}
	if months < 0 || months > maxUsageMonths {
		return nil, utils.NewBadRequestError("months must be between 1 and 24")
	}

	since := s.now().AddDate(0, -months, 0)
	rows, err := s.usage.ByUser(ctx, userID, since)
	if err != nil {
		s.logger.Error("Failed to list user usage", "error", err, "userId", userID)
		return nil, utils.NewInternalError("Failed to retrieve token usage")
	}
	if rows == nil {
		rows = []models.UsageRow{}
	}

	return &models.UsageReport{
		Since:   since,
		Rows:    rows,
		Summary: ledger.Summarize(rows),
	}, nil
}

func (s *usageService) CacheStats(ctx context.Context) (*models.CacheStats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		s.logger.Error("Failed to read cache stats", "error", err)
		return nil, utils.NewInternalError("Failed to retrieve cache statistics")
	}
	return stats, nil
}
