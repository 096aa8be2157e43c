package domain

// LowStockAlert describes one ledger entry at or below the alert threshold.
type LowStockAlert struct {
	ProductID     string `json:"product_id"`
	WarehouseID   string `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Available     int    `json:"available_quantity"`
	Reserved      int    `json:"reserved_quantity"`
	Threshold     int    `json:"threshold"`
}
