package port

import (
	"context"

	"github.com/rl1809/inventory-service/internal/core/domain"
)

// LowStockNotifier is the external collaborator told about entries that
// dropped to or below the configured threshold.
type LowStockNotifier interface {
	NotifyLowStock(ctx context.Context, alerts []domain.LowStockAlert) error
}
