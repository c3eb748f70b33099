package services

import (
	"context"

	"github.com/docforge/docforge/internal/core"
	"github.com/docforge/docforge/internal/models"
)

// Admin-tunable setting keys. Values are read fresh on every check so a
// changed limit applies to the next upload without a restart.
const (
	SettingMaxStorageGB    = "MAX_STORAGE"
	SettingUploadExpiryHrs = "FILE_UPLOAD_EXPIRY"
)

const defaultMaxStorageGB = 5

// QuotaService answers how much storage a company has used and is allowed.
// Usage counts only file nodes, summed across every team of the company.
type QuotaService struct {
	db core.DbClient
}

func NewQuotaService(db core.DbClient) *QuotaService {
	return &QuotaService{db: db}
}

func (s *QuotaService) UsedStorage(ctx context.Context, companyID int64) (models.ByteSize, error) {
	total, err := s.db.SumDocumentSizes(ctx, companyID)
	if err != nil {
		return 0, err
	}
	return models.ByteSize(total), nil
}

func (s *QuotaService) MaxStorage(ctx context.Context) (models.ByteSize, error) {
	gb, err := s.db.GetSettingFloat(ctx, SettingMaxStorageGB, defaultMaxStorageGB)
	if err != nil {
		return 0, err
	}
	return models.Gigabytes(gb), nil
}

// RemainingCapacity never goes negative; an over-quota company reports zero.
func (s *QuotaService) RemainingCapacity(ctx context.Context, companyID int64) (models.ByteSize, error) {
	used, err := s.UsedStorage(ctx, companyID)
	if err != nil {
		return 0, err
	}
	max, err := s.MaxStorage(ctx)
	if err != nil {
		return 0, err
	}
	if used >= max {
		return 0, nil
	}
	return max - used, nil
}
