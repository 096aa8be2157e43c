package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/inventory-service/internal/core/domain"
)

// MemoryAdapter is the default in-memory implementation of the repository
// ports. Index maps are guarded by the adapter's RWMutex; the ledger
// entries themselves carry their own locks, so the index lock is held only
// for lookups and inserts, never across entry mutations.
//
// Ledger entries are shared by pointer: callers mutate the same entry the
// adapter indexes, and SaveEntry only has to register first-time keys.
// Reservations carry no lock of their own, so the adapter stores and
// returns private copies: callers mutate their copy and re-enter through
// SaveReservation, and the sweep's expiry reads never alias a record a
// confirm is writing. No durability across restarts.
type MemoryAdapter struct {
	mu           sync.RWMutex
	entries      map[domain.ItemKey]*domain.LedgerEntry
	reservations map[string]*domain.Reservation
	warehouses   map[string]*domain.Warehouse
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		entries:      make(map[domain.ItemKey]*domain.LedgerEntry),
		reservations: make(map[string]*domain.Reservation),
		warehouses:   make(map[string]*domain.Warehouse),
	}
}

func (m *MemoryAdapter) FindEntry(_ context.Context, productID, warehouseID string) (*domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[domain.ItemKey{ProductID: productID, WarehouseID: warehouseID}], nil
}

// FindEntriesByProduct returns the product's entries ordered by warehouse
// id so callers that pick "the first entry" get a deterministic choice.
func (m *MemoryAdapter) FindEntriesByProduct(_ context.Context, productID string) ([]*domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.LedgerEntry
	for key, e := range m.entries {
		if key.ProductID == productID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out, nil
}

func (m *MemoryAdapter) FindEntriesByWarehouse(_ context.Context, warehouseID string) ([]*domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.LedgerEntry
	for key, e := range m.entries {
		if key.WarehouseID == warehouseID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *MemoryAdapter) SaveEntry(_ context.Context, entry *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key()] = entry
	return nil
}

func (m *MemoryAdapter) FindReservation(_ context.Context, id string) (*domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (m *MemoryAdapter) FindActiveReservations(_ context.Context) ([]*domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Reservation
	for _, r := range m.reservations {
		if r.Status == domain.ReservationActive {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *MemoryAdapter) SaveReservation(_ context.Context, r *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r.Clone()
	return nil
}

func (m *MemoryAdapter) FindWarehouse(_ context.Context, id string) (*domain.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.warehouses[id], nil
}

func (m *MemoryAdapter) FindActiveWarehouses(_ context.Context) ([]*domain.Warehouse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Warehouse
	for _, w := range m.warehouses {
		if w.Active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) SaveWarehouse(_ context.Context, w *domain.Warehouse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warehouses[w.ID] = w
	return nil
}
