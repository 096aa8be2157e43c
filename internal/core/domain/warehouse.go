package domain

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is a read-mostly registry record referenced by ledger entries.
type Warehouse struct {
	ID          string
	Name        string
	Location    string
	Active      bool
	MaxCapacity *int // nil means unbounded
	CreatedAt   time.Time
}

func NewWarehouse(name, location string, maxCapacity *int) *Warehouse {
	return &Warehouse{
		ID:          uuid.New().String(),
		Name:        name,
		Location:    location,
		Active:      true,
		MaxCapacity: maxCapacity,
		CreatedAt:   time.Now(),
	}
}

// CanAcceptInventory reports whether the warehouse may take on more stock.
// currentTotal is the caller-supplied on-hand total across the warehouse.
func (w *Warehouse) CanAcceptInventory(currentTotal, qty int) bool {
	if !w.Active {
		return false
	}
	if w.MaxCapacity == nil {
		return true
	}
	return currentTotal+qty <= *w.MaxCapacity
}
