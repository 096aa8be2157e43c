package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/inventory-service/internal/core/domain"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

// MySQLAdapter implements the repository ports over database/sql.
//
// Expected schema:
//
//	CREATE TABLE ledger_entries (
//	    product_id     VARCHAR(64)  NOT NULL,
//	    warehouse_id   VARCHAR(64)  NOT NULL,
//	    available      INT          NOT NULL,
//	    reserved       INT          NOT NULL,
//	    total_received INT          NOT NULL,
//	    total_sold     INT          NOT NULL,
//	    version        INT          NOT NULL DEFAULT 0,
//	    created_at     DATETIME(6)  NOT NULL,
//	    updated_at     DATETIME(6)  NOT NULL,
//	    PRIMARY KEY (product_id, warehouse_id)
//	);
//
//	CREATE TABLE reservations (
//	    id           VARCHAR(36)  PRIMARY KEY,
//	    customer_id  VARCHAR(64)  NOT NULL,
//	    items        JSON         NOT NULL,
//	    status       VARCHAR(16)  NOT NULL,
//	    created_at   DATETIME(6)  NOT NULL,
//	    expires_at   DATETIME(6)  NOT NULL,
//	    confirmed_at DATETIME(6)  NULL,
//	    cancelled_at DATETIME(6)  NULL
//	);
//
//	CREATE TABLE warehouses (
//	    id           VARCHAR(36)  PRIMARY KEY,
//	    name         VARCHAR(128) NOT NULL,
//	    location     VARCHAR(128) NOT NULL,
//	    active       BOOLEAN      NOT NULL,
//	    max_capacity INT          NULL,
//	    created_at   DATETIME(6)  NOT NULL
//	);
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type heldItem struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
}

func (m *MySQLAdapter) FindEntry(ctx context.Context, productID, warehouseID string) (*domain.LedgerEntry, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT product_id, warehouse_id, available, reserved, total_received, total_sold, version, created_at, updated_at
		FROM ledger_entries WHERE product_id = ? AND warehouse_id = ?`,
		productID, warehouseID,
	)
	return scanEntry(row)
}

func (m *MySQLAdapter) FindEntriesByProduct(ctx context.Context, productID string) ([]*domain.LedgerEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, warehouse_id, available, reserved, total_received, total_sold, version, created_at, updated_at
		FROM ledger_entries WHERE product_id = ? ORDER BY warehouse_id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (m *MySQLAdapter) FindEntriesByWarehouse(ctx context.Context, warehouseID string) ([]*domain.LedgerEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, warehouse_id, available, reserved, total_received, total_sold, version, created_at, updated_at
		FROM ledger_entries WHERE warehouse_id = ? ORDER BY product_id`,
		warehouseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// SaveEntry upserts a ledger row with a version check, so a stale write
// from a raced read-modify-write cycle fails with ErrOptimisticLock.
func (m *MySQLAdapter) SaveEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	snap := entry.Snapshot()

	result, err := m.db.ExecContext(ctx, `
		UPDATE ledger_entries
		SET available = ?, reserved = ?, total_received = ?, total_sold = ?,
		    version = version + 1, updated_at = ?
		WHERE product_id = ? AND warehouse_id = ? AND version = ?`,
		snap.Available, snap.Reserved, snap.TotalReceived, snap.TotalSold,
		snap.UpdatedAt, snap.ProductID, snap.WarehouseID, entry.Version,
	)
	if err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		entry.Version++
		return nil
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(product_id, warehouse_id, available, reserved, total_received, total_sold, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		snap.ProductID, snap.WarehouseID, snap.Available, snap.Reserved,
		snap.TotalReceived, snap.TotalSold, entry.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		// Row exists at a newer version than ours.
		return ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) FindReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, customer_id, items, status, created_at, expires_at, confirmed_at, cancelled_at
		FROM reservations WHERE id = ?`, id,
	)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (m *MySQLAdapter) FindActiveReservations(ctx context.Context) ([]*domain.Reservation, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, customer_id, items, status, created_at, expires_at, confirmed_at, cancelled_at
		FROM reservations WHERE status = ?`, string(domain.ReservationActive),
	)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) SaveReservation(ctx context.Context, r *domain.Reservation) error {
	items := make([]heldItem, 0, len(r.Items))
	for key, qty := range r.Items {
		items = append(items, heldItem{ProductID: key.ProductID, WarehouseID: key.WarehouseID, Quantity: qty})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal held items: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO reservations (id, customer_id, items, status, created_at, expires_at, confirmed_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    status = VALUES(status), expires_at = VALUES(expires_at),
		    confirmed_at = VALUES(confirmed_at), cancelled_at = VALUES(cancelled_at)`,
		r.ID, r.CustomerID, payload, string(r.Status), r.CreatedAt, r.ExpiresAt,
		nullableTime(r.ConfirmedAt), nullableTime(r.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) FindWarehouse(ctx context.Context, id string) (*domain.Warehouse, error) {
	var w domain.Warehouse
	var capacity sql.NullInt64
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, location, active, max_capacity, created_at
		FROM warehouses WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &w.Location, &w.Active, &capacity, &w.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query warehouse: %w", err)
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		w.MaxCapacity = &c
	}
	return &w, nil
}

func (m *MySQLAdapter) FindActiveWarehouses(ctx context.Context) ([]*domain.Warehouse, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, location, active, max_capacity, created_at
		FROM warehouses WHERE active = TRUE ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query warehouses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Warehouse
	for rows.Next() {
		var w domain.Warehouse
		var capacity sql.NullInt64
		if err := rows.Scan(&w.ID, &w.Name, &w.Location, &w.Active, &capacity, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		if capacity.Valid {
			c := int(capacity.Int64)
			w.MaxCapacity = &c
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) SaveWarehouse(ctx context.Context, w *domain.Warehouse) error {
	var capacity interface{}
	if w.MaxCapacity != nil {
		capacity = *w.MaxCapacity
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, name, location, active, max_capacity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    name = VALUES(name), location = VALUES(location),
		    active = VALUES(active), max_capacity = VALUES(max_capacity)`,
		w.ID, w.Name, w.Location, w.Active, capacity, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save warehouse: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(&e.ProductID, &e.WarehouseID, &e.Available, &e.Reserved,
		&e.TotalReceived, &e.TotalSold, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	var r domain.Reservation
	var payload []byte
	var status string
	var confirmedAt, cancelledAt sql.NullTime

	err := row.Scan(&r.ID, &r.CustomerID, &payload, &status, &r.CreatedAt,
		&r.ExpiresAt, &confirmedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}

	var items []heldItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("unmarshal held items: %w", err)
	}
	r.Items = make(map[domain.ItemKey]int, len(items))
	for _, item := range items {
		r.Items[domain.ItemKey{ProductID: item.ProductID, WarehouseID: item.WarehouseID}] = item.Quantity
	}

	r.Status = domain.ReservationStatus(status)
	if confirmedAt.Valid {
		r.ConfirmedAt = confirmedAt.Time
	}
	if cancelledAt.Valid {
		r.CancelledAt = cancelledAt.Time
	}
	return &r, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
