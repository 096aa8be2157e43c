package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-service/internal/core/domain"
)

// LogNotifier is the default LowStockNotifier: it writes structured alert
// lines instead of calling out to an external channel.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "low-stock-notifier").Logger()}
}

func (n *LogNotifier) NotifyLowStock(_ context.Context, alerts []domain.LowStockAlert) error {
	for _, a := range alerts {
		n.logger.Warn().
			Str("product_id", a.ProductID).
			Str("warehouse_id", a.WarehouseID).
			Str("warehouse_name", a.WarehouseName).
			Int("available", a.Available).
			Int("reserved", a.Reserved).
			Int("threshold", a.Threshold).
			Msg("low stock")
	}
	return nil
}
