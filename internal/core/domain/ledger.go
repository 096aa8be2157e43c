package domain

import (
	"errors"
	"sync"
	"time"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// ItemKey identifies a ledger entry: one product in one warehouse.
type ItemKey struct {
	ProductID   string
	WarehouseID string
}

// LedgerEntry tracks stock for a single (product, warehouse) pair.
// Available and Reserved are guarded by the entry's own mutex, so
// entries for unrelated keys never contend with each other.
type LedgerEntry struct {
	mu sync.Mutex

	ProductID     string
	WarehouseID   string
	Available     int
	Reserved      int
	TotalReceived int // cumulative, audit trail
	TotalSold     int // cumulative, audit trail
	Version       int // optimistic locking for SQL-backed stores
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewLedgerEntry(productID, warehouseID string, quantity int) (*LedgerEntry, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now()
	return &LedgerEntry{
		ProductID:     productID,
		WarehouseID:   warehouseID,
		Available:     quantity,
		TotalReceived: quantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (e *LedgerEntry) Key() ItemKey {
	return ItemKey{ProductID: e.ProductID, WarehouseID: e.WarehouseID}
}

// Reserve moves qty from available to reserved. Returns false, without
// mutating anything, when available stock is insufficient.
func (e *LedgerEntry) Reserve(qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Available < qty {
		return false, nil
	}
	e.Available -= qty
	e.Reserved += qty
	e.UpdatedAt = time.Now()
	return true, nil
}

// Release moves up to qty from reserved back to available and returns
// the amount actually moved. Over-releasing is not an error.
func (e *LedgerEntry) Release(qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	actual := min(qty, e.Reserved)
	e.Reserved -= actual
	e.Available += actual
	e.UpdatedAt = time.Now()
	return actual, nil
}

// Confirm converts up to qty of reserved stock into a permanent sale and
// returns the amount actually confirmed.
func (e *LedgerEntry) Confirm(qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	actual := min(qty, e.Reserved)
	e.Reserved -= actual
	e.TotalSold += actual
	e.UpdatedAt = time.Now()
	return actual, nil
}

func (e *LedgerEntry) AddStock(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Available += qty
	e.TotalReceived += qty
	e.UpdatedAt = time.Now()
	return nil
}

// RemoveStock takes up to qty out of available stock (damage, loss) and
// returns the amount actually removed. Reserved stock is never touched.
func (e *LedgerEntry) RemoveStock(qty int, reason string) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	actual := min(qty, e.Available)
	e.Available -= actual
	e.UpdatedAt = time.Now()
	return actual, nil
}

// IsLowStock reports whether total on-hand stock is at or below threshold.
func (e *LedgerEntry) IsLowStock(threshold int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Available+e.Reserved <= threshold
}

func (e *LedgerEntry) TotalOnHand() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Available + e.Reserved
}

// StockSnapshot is a point-in-time copy of an entry's counters, safe to
// read without holding the entry lock.
type StockSnapshot struct {
	ProductID     string
	WarehouseID   string
	Available     int
	Reserved      int
	TotalReceived int
	TotalSold     int
	UpdatedAt     time.Time
}

func (e *LedgerEntry) Snapshot() StockSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StockSnapshot{
		ProductID:     e.ProductID,
		WarehouseID:   e.WarehouseID,
		Available:     e.Available,
		Reserved:      e.Reserved,
		TotalReceived: e.TotalReceived,
		TotalSold:     e.TotalSold,
		UpdatedAt:     e.UpdatedAt,
	}
}
