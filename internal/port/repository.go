package port

import (
	"context"

	"github.com/rl1809/inventory-service/internal/core/domain"
)

// LedgerRepository persists per-(product, warehouse) stock counters.
// Find methods return nil, nil when nothing matches.
type LedgerRepository interface {
	FindEntry(ctx context.Context, productID, warehouseID string) (*domain.LedgerEntry, error)
	FindEntriesByProduct(ctx context.Context, productID string) ([]*domain.LedgerEntry, error)
	FindEntriesByWarehouse(ctx context.Context, warehouseID string) ([]*domain.LedgerEntry, error)
	SaveEntry(ctx context.Context, entry *domain.LedgerEntry) error
}

// ReservationRepository persists reservation records.
type ReservationRepository interface {
	FindReservation(ctx context.Context, id string) (*domain.Reservation, error)
	FindActiveReservations(ctx context.Context) ([]*domain.Reservation, error)
	SaveReservation(ctx context.Context, r *domain.Reservation) error
}

// WarehouseRepository is the warehouse registry query surface.
type WarehouseRepository interface {
	FindWarehouse(ctx context.Context, id string) (*domain.Warehouse, error)
	FindActiveWarehouses(ctx context.Context) ([]*domain.Warehouse, error)
	SaveWarehouse(ctx context.Context, w *domain.Warehouse) error
}

// Repository is the full persistence surface the inventory service needs.
type Repository interface {
	LedgerRepository
	ReservationRepository
	WarehouseRepository
}
