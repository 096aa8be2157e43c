package port

import "context"

// StockCache mirrors available quantities into a fast external store so
// read-heavy consumers (storefronts, availability widgets) can check stock
// without touching the ledger. It also provides a SetNX-style dedup used to
// avoid re-sending the same low-stock alert on every sweep.
type StockCache interface {
	// SetAvailable overwrites the cached availability for a (product, warehouse) key.
	SetAvailable(ctx context.Context, productID, warehouseID string, quantity int) error

	// GetAvailable returns the cached availability, or ok=false on a miss.
	GetAvailable(ctx context.Context, productID, warehouseID string) (quantity int, ok bool, err error)

	// MarkAlerted records that a low-stock alert fired for the key; returns
	// false if an alert was already recorded within the dedup window.
	MarkAlerted(ctx context.Context, productID, warehouseID string) (bool, error)
}
