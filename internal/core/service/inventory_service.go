package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-service/internal/core/domain"
	"github.com/rl1809/inventory-service/internal/port"
)

var (
	ErrWarehouseUnavailable    = errors.New("warehouse missing or inactive")
	ErrInsufficientInventory   = errors.New("insufficient inventory")
	ErrReservationFailed       = errors.New("reservation failed")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrInvalidReservationState = errors.New("reservation state does not permit operation")
)

const (
	DefaultReservationTTL    = 15 * time.Minute
	DefaultLowStockThreshold = 10
	DefaultSweepInterval     = 5 * time.Minute
)

// Config holds the service tuning knobs. Zero values fall back to defaults.
type Config struct {
	ReservationTTL    time.Duration
	LowStockThreshold int
	SweepInterval     time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReservationTTL <= 0 {
		c.ReservationTTL = DefaultReservationTTL
	}
	if c.LowStockThreshold <= 0 {
		c.LowStockThreshold = DefaultLowStockThreshold
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
}

// InventoryService orchestrates allocation planning, ledger holds and
// reservation records across warehouses, and runs the background sweep
// that cancels expired reservations.
//
// Individual ledger entries serialize their own mutations; the service
// additionally holds one coarse lock around check-then-act sequences
// (plan-then-apply, confirm, cancel, restore, get-or-create on stock
// addition) so two concurrent calls cannot race each other's windows.
type InventoryService struct {
	repo     port.Repository
	cache    port.StockCache       // optional availability mirror
	notifier port.LowStockNotifier // optional alert collaborator
	cfg      Config
	logger   zerolog.Logger

	mu sync.Mutex

	stopSweep chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// NewInventoryService wires the service and starts the expiry sweep.
// cache and notifier may be nil. Call Close to stop the sweep.
func NewInventoryService(repo port.Repository, cache port.StockCache, notifier port.LowStockNotifier, cfg Config, logger zerolog.Logger) *InventoryService {
	cfg.applyDefaults()

	s := &InventoryService{
		repo:      repo,
		cache:     cache,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With().Str("component", "inventory-service").Logger(),
		stopSweep: make(chan struct{}),
	}

	s.sweepWG.Add(1)
	go s.sweepLoop()

	return s
}

// AddWarehouse registers a new warehouse in the registry.
func (s *InventoryService) AddWarehouse(ctx context.Context, name, location string, maxCapacity *int) (*domain.Warehouse, error) {
	if name == "" || location == "" {
		return nil, fmt.Errorf("warehouse name and location required: %w", domain.ErrInvalidQuantity)
	}

	w := domain.NewWarehouse(name, location, maxCapacity)
	if err := s.repo.SaveWarehouse(ctx, w); err != nil {
		return nil, fmt.Errorf("save warehouse: %w", err)
	}

	s.logger.Info().Str("warehouse_id", w.ID).Str("name", name).Str("location", location).
		Msg("warehouse added")
	return w, nil
}

// AddInventory adds stock for a product in a warehouse, creating the
// ledger entry on first addition.
func (s *InventoryService) AddInventory(ctx context.Context, productID, warehouseID string, qty int) (*domain.LedgerEntry, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if productID == "" {
		return nil, fmt.Errorf("product id required: %w", domain.ErrInvalidQuantity)
	}

	w, err := s.repo.FindWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("find warehouse: %w", err)
	}
	if w == nil || !w.Active {
		return nil, fmt.Errorf("warehouse %s: %w", warehouseID, ErrWarehouseUnavailable)
	}

	// The capacity check and the first-create below are both
	// check-then-act over repository state.
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.MaxCapacity != nil {
		total, err := s.warehouseOnHand(ctx, warehouseID)
		if err != nil {
			return nil, err
		}
		if !w.CanAcceptInventory(total, qty) {
			return nil, fmt.Errorf("warehouse %s over capacity: %w", warehouseID, ErrWarehouseUnavailable)
		}
	}

	entry, err := s.repo.FindEntry(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}

	if entry != nil {
		if err := entry.AddStock(qty); err != nil {
			return nil, err
		}
	} else {
		entry, err = domain.NewLedgerEntry(productID, warehouseID, qty)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.SaveEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("save ledger entry: %w", err)
	}

	s.mirrorEntries(ctx, entry)
	s.logger.Info().Str("product_id", productID).Str("warehouse_id", warehouseID).
		Int("quantity", qty).Msg("stock added")
	return entry, nil
}

// GetAvailableQuantity sums available stock for a product, scoped to one
// warehouse when warehouseID is non-empty.
func (s *InventoryService) GetAvailableQuantity(ctx context.Context, productID, warehouseID string) (int, error) {
	if warehouseID != "" {
		entry, err := s.repo.FindEntry(ctx, productID, warehouseID)
		if err != nil {
			return 0, fmt.Errorf("find ledger entry: %w", err)
		}
		if entry == nil {
			return 0, nil
		}
		return entry.Snapshot().Available, nil
	}

	entries, err := s.repo.FindEntriesByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("find ledger entries: %w", err)
	}
	total := 0
	for _, e := range entries {
		total += e.Snapshot().Available
	}
	return total, nil
}

// CheckAvailability reports whether every line item can be covered by the
// total available stock across warehouses. It reserves nothing.
func (s *InventoryService) CheckAvailability(ctx context.Context, items []domain.LineItem) (bool, error) {
	for _, item := range items {
		if item.Quantity <= 0 {
			return false, domain.ErrInvalidQuantity
		}
		available, err := s.GetAvailableQuantity(ctx, item.ProductID, "")
		if err != nil {
			return false, err
		}
		if available < item.Quantity {
			s.logger.Debug().Str("product_id", item.ProductID).
				Int("requested", item.Quantity).Int("available", available).
				Msg("availability check failed")
			return false, nil
		}
	}
	return true, nil
}

type appliedHold struct {
	entry *domain.LedgerEntry
	qty   int
}

// ReserveItems plans an allocation across warehouses and applies it as
// ledger holds grouped under a new reservation. Planning failures surface
// as ErrInsufficientInventory before any mutation; apply-time races roll
// back all holds taken during this attempt and surface as the retryable
// ErrReservationFailed.
func (s *InventoryService) ReserveItems(ctx context.Context, items []domain.LineItem, customerID string) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("empty request: %w", domain.ErrInvalidQuantity)
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return "", domain.ErrInvalidQuantity
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stock := make(map[string][]domain.StockSnapshot)
	for _, item := range items {
		if _, ok := stock[item.ProductID]; ok {
			continue
		}
		entries, err := s.repo.FindEntriesByProduct(ctx, item.ProductID)
		if err != nil {
			return "", fmt.Errorf("find ledger entries: %w", err)
		}
		snapshots := make([]domain.StockSnapshot, 0, len(entries))
		for _, e := range entries {
			snapshots = append(snapshots, e.Snapshot())
		}
		stock[item.ProductID] = snapshots
	}

	plan, err := domain.PlanAllocation(items, stock)
	if err != nil {
		if errors.Is(err, domain.ErrUnfulfillable) {
			return "", fmt.Errorf("%w: %s", ErrInsufficientInventory, err)
		}
		return "", err
	}

	var applied []appliedHold
	held := make(map[domain.ItemKey]int, len(plan))

	for _, alloc := range plan {
		entry, err := s.repo.FindEntry(ctx, alloc.ProductID, alloc.WarehouseID)
		if err != nil || entry == nil {
			s.rollbackHolds(ctx, applied)
			return "", fmt.Errorf("ledger entry %s/%s gone: %w",
				alloc.ProductID, alloc.WarehouseID, ErrReservationFailed)
		}

		ok, err := entry.Reserve(alloc.Quantity)
		if err != nil {
			s.rollbackHolds(ctx, applied)
			return "", err
		}
		if !ok {
			// Lost the race against a mutation since planning.
			s.rollbackHolds(ctx, applied)
			return "", fmt.Errorf("hold of %d on %s/%s lost race: %w",
				alloc.Quantity, alloc.ProductID, alloc.WarehouseID, ErrReservationFailed)
		}

		applied = append(applied, appliedHold{entry: entry, qty: alloc.Quantity})
		held[domain.ItemKey{ProductID: alloc.ProductID, WarehouseID: alloc.WarehouseID}] = alloc.Quantity

		if err := s.repo.SaveEntry(ctx, entry); err != nil {
			s.rollbackHolds(ctx, applied)
			return "", fmt.Errorf("save ledger entry: %v: %w", err, ErrReservationFailed)
		}
	}

	reservation := domain.NewReservation(customerID, held, s.cfg.ReservationTTL)
	if err := s.repo.SaveReservation(ctx, reservation); err != nil {
		s.rollbackHolds(ctx, applied)
		return "", fmt.Errorf("save reservation: %v: %w", err, ErrReservationFailed)
	}

	s.mirrorHolds(ctx, applied)
	s.logger.Info().Str("reservation_id", reservation.ID).Str("customer_id", customerID).
		Int("holds", len(applied)).Time("expires_at", reservation.ExpiresAt).
		Msg("items reserved")
	return reservation.ID, nil
}

// rollbackHolds releases holds taken during a failed ReserveItems attempt,
// most recent first. Holds from unrelated reservations are never touched.
func (s *InventoryService) rollbackHolds(ctx context.Context, applied []appliedHold) {
	for i := len(applied) - 1; i >= 0; i-- {
		h := applied[i]
		if _, err := h.entry.Release(h.qty); err != nil {
			s.logger.Error().Err(err).Str("product_id", h.entry.ProductID).
				Str("warehouse_id", h.entry.WarehouseID).Msg("rollback release failed")
			continue
		}
		if err := s.repo.SaveEntry(ctx, h.entry); err != nil {
			s.logger.Error().Err(err).Str("product_id", h.entry.ProductID).
				Str("warehouse_id", h.entry.WarehouseID).Msg("rollback save failed")
		}
	}
}

// ConfirmReservation converts a reservation's holds into permanent
// deductions. Active-ness is re-derived from the expiry deadline, so an
// expired-but-unswept record is rejected with ErrInvalidReservationState.
func (s *InventoryService) ConfirmReservation(ctx context.Context, reservationID string) error {
	// Lookup happens under the lock: the repository hands back a private
	// copy, so two confirms racing outside the lock could both see ACTIVE.
	s.mu.Lock()

	reservation, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("find reservation: %w", err)
	}
	if reservation == nil {
		s.mu.Unlock()
		return fmt.Errorf("reservation %s: %w", reservationID, ErrReservationNotFound)
	}

	if err := reservation.Confirm(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("reservation %s: %w", reservationID, ErrInvalidReservationState)
	}

	for key, qty := range reservation.Items {
		entry, err := s.repo.FindEntry(ctx, key.ProductID, key.WarehouseID)
		if err != nil || entry == nil {
			s.logger.Warn().Str("product_id", key.ProductID).Str("warehouse_id", key.WarehouseID).
				Msg("ledger entry missing during confirm")
			continue
		}
		confirmed, err := entry.Confirm(qty)
		if err != nil {
			s.logger.Error().Err(err).Str("product_id", key.ProductID).Msg("confirm failed")
			continue
		}
		if confirmed < qty {
			// Inventory drifted; log and keep going rather than fail the order.
			s.logger.Warn().Str("reservation_id", reservationID).
				Str("product_id", key.ProductID).Str("warehouse_id", key.WarehouseID).
				Int("requested", qty).Int("confirmed", confirmed).
				Msg("partial confirm, ledger drift")
		}
		if err := s.repo.SaveEntry(ctx, entry); err != nil {
			s.logger.Error().Err(err).Str("product_id", key.ProductID).Msg("save after confirm failed")
		}
	}

	err = s.repo.SaveReservation(ctx, reservation)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}

	s.logger.Info().Str("reservation_id", reservationID).Msg("reservation confirmed")
	s.checkLowStockAlerts(ctx)
	return nil
}

// CancelReservation releases a reservation's holds back to available
// stock. Unknown ids return false with no error; records already in a
// terminal state return true without touching the ledgers again.
func (s *InventoryService) CancelReservation(ctx context.Context, reservationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		return false, fmt.Errorf("find reservation: %w", err)
	}
	if reservation == nil {
		s.logger.Debug().Str("reservation_id", reservationID).Msg("cancel of unknown reservation")
		return false, nil
	}

	if err := reservation.Cancel(); err != nil {
		// Already confirmed or cancelled: idempotent success.
		return true, nil
	}

	for key, qty := range reservation.Items {
		entry, err := s.repo.FindEntry(ctx, key.ProductID, key.WarehouseID)
		if err != nil || entry == nil {
			s.logger.Warn().Str("product_id", key.ProductID).Str("warehouse_id", key.WarehouseID).
				Msg("ledger entry missing during cancel")
			continue
		}
		released, err := entry.Release(qty)
		if err != nil {
			s.logger.Error().Err(err).Str("product_id", key.ProductID).Msg("release failed")
			continue
		}
		if released < qty {
			s.logger.Warn().Str("reservation_id", reservationID).
				Str("product_id", key.ProductID).Int("requested", qty).Int("released", released).
				Msg("partial release, ledger drift")
		}
		if err := s.repo.SaveEntry(ctx, entry); err != nil {
			s.logger.Error().Err(err).Str("product_id", key.ProductID).Msg("save after release failed")
		}
		s.mirrorEntries(ctx, entry)
	}

	if err := s.repo.SaveReservation(ctx, reservation); err != nil {
		return false, fmt.Errorf("save reservation: %w", err)
	}

	s.logger.Info().Str("reservation_id", reservationID).Msg("reservation cancelled")
	return true, nil
}

// ExtendReservation pushes an active reservation's expiry out by d.
func (s *InventoryService) ExtendReservation(ctx context.Context, reservationID string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("find reservation: %w", err)
	}
	if reservation == nil {
		return fmt.Errorf("reservation %s: %w", reservationID, ErrReservationNotFound)
	}

	if err := reservation.ExtendExpiry(d); err != nil {
		if errors.Is(err, domain.ErrReservationNotActive) {
			return fmt.Errorf("reservation %s: %w", reservationID, ErrInvalidReservationState)
		}
		return err
	}
	if err := s.repo.SaveReservation(ctx, reservation); err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}

	s.logger.Info().Str("reservation_id", reservationID).
		Time("expires_at", reservation.ExpiresAt).Msg("reservation extended")
	return nil
}

// RestoreItems puts stock back after an already-confirmed order is later
// cancelled. It is not tied to a reservation record: quantities go to the
// first existing entry for the product (adapters return entries in
// warehouse-id order), or a new entry in the first active warehouse.
func (s *InventoryService) RestoreItems(ctx context.Context, items []domain.LineItem) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		entries, err := s.repo.FindEntriesByProduct(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("find ledger entries: %w", err)
		}

		var target *domain.LedgerEntry
		if len(entries) > 0 {
			target = entries[0]
			if err := target.AddStock(item.Quantity); err != nil {
				return err
			}
		} else {
			warehouses, err := s.repo.FindActiveWarehouses(ctx)
			if err != nil {
				return fmt.Errorf("find warehouses: %w", err)
			}
			if len(warehouses) == 0 {
				return fmt.Errorf("no active warehouse for restore: %w", ErrWarehouseUnavailable)
			}
			target, err = domain.NewLedgerEntry(item.ProductID, warehouses[0].ID, item.Quantity)
			if err != nil {
				return err
			}
		}

		if err := s.repo.SaveEntry(ctx, target); err != nil {
			return fmt.Errorf("save ledger entry: %w", err)
		}
		s.mirrorEntries(ctx, target)
	}

	s.logger.Info().Int("items", len(items)).Msg("inventory restored from cancelled order")
	return nil
}

// GetLowStockProducts scans active warehouses for entries whose on-hand
// total is at or below threshold. A non-positive threshold uses the
// configured default.
func (s *InventoryService) GetLowStockProducts(ctx context.Context, threshold int) ([]domain.LowStockAlert, error) {
	if threshold <= 0 {
		threshold = s.cfg.LowStockThreshold
	}

	warehouses, err := s.repo.FindActiveWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("find warehouses: %w", err)
	}

	var alerts []domain.LowStockAlert
	for _, w := range warehouses {
		entries, err := s.repo.FindEntriesByWarehouse(ctx, w.ID)
		if err != nil {
			return nil, fmt.Errorf("find ledger entries: %w", err)
		}
		for _, e := range entries {
			if !e.IsLowStock(threshold) {
				continue
			}
			snap := e.Snapshot()
			alerts = append(alerts, domain.LowStockAlert{
				ProductID:     snap.ProductID,
				WarehouseID:   snap.WarehouseID,
				WarehouseName: w.Name,
				Available:     snap.Available,
				Reserved:      snap.Reserved,
				Threshold:     threshold,
			})
		}
	}
	return alerts, nil
}

// Summary aggregates ledger counters for monitoring.
type Summary struct {
	TotalAvailable int `json:"total_available"`
	TotalReserved  int `json:"total_reserved"`
	TotalOnHand    int `json:"total_on_hand"`
	WarehouseCount int `json:"warehouse_count"`
	LowStockCount  int `json:"low_stock_count"`
}

// InventorySummary reports totals for a product, or for all stock in
// active warehouses when productID is empty.
func (s *InventoryService) InventorySummary(ctx context.Context, productID string) (Summary, error) {
	var entries []*domain.LedgerEntry
	var err error

	if productID != "" {
		entries, err = s.repo.FindEntriesByProduct(ctx, productID)
		if err != nil {
			return Summary{}, fmt.Errorf("find ledger entries: %w", err)
		}
	} else {
		warehouses, err := s.repo.FindActiveWarehouses(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("find warehouses: %w", err)
		}
		for _, w := range warehouses {
			es, err := s.repo.FindEntriesByWarehouse(ctx, w.ID)
			if err != nil {
				return Summary{}, fmt.Errorf("find ledger entries: %w", err)
			}
			entries = append(entries, es...)
		}
	}

	var sum Summary
	seen := make(map[string]struct{})
	for _, e := range entries {
		snap := e.Snapshot()
		sum.TotalAvailable += snap.Available
		sum.TotalReserved += snap.Reserved
		if snap.Available+snap.Reserved <= s.cfg.LowStockThreshold {
			sum.LowStockCount++
		}
		seen[snap.WarehouseID] = struct{}{}
	}
	sum.TotalOnHand = sum.TotalAvailable + sum.TotalReserved
	sum.WarehouseCount = len(seen)
	return sum, nil
}

// CleanupExpiredReservations cancels every ACTIVE reservation whose expiry
// has passed and returns how many were cleaned. Individual cancellation
// failures are logged and never abort the rest of the sweep.
func (s *InventoryService) CleanupExpiredReservations(ctx context.Context) int {
	active, err := s.repo.FindActiveReservations(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep: list active reservations failed")
		return 0
	}

	cleaned := 0
	for _, r := range active {
		if !r.IsExpired() {
			continue
		}
		if s.sweepOne(ctx, r.ID) {
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Info().Int("cleaned", cleaned).Msg("expired reservations swept")
	}
	return cleaned
}

// sweepOne cancels a single expired reservation, absorbing panics so one
// bad record cannot take down the sweep.
func (s *InventoryService) sweepOne(ctx context.Context, reservationID string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Interface("panic", rec).Str("reservation_id", reservationID).
				Msg("sweep: cancellation panicked")
			ok = false
		}
	}()

	cancelled, err := s.CancelReservation(ctx, reservationID)
	if err != nil {
		s.logger.Error().Err(err).Str("reservation_id", reservationID).
			Msg("sweep: cancellation failed")
		return false
	}
	return cancelled
}

func (s *InventoryService) sweepLoop() {
	defer s.sweepWG.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpiredReservations(context.Background())
		case <-s.stopSweep:
			return
		}
	}
}

// Close stops the background sweep and waits for it to finish.
func (s *InventoryService) Close() {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
		s.sweepWG.Wait()
	})
}

func (s *InventoryService) warehouseOnHand(ctx context.Context, warehouseID string) (int, error) {
	entries, err := s.repo.FindEntriesByWarehouse(ctx, warehouseID)
	if err != nil {
		return 0, fmt.Errorf("find ledger entries: %w", err)
	}
	total := 0
	for _, e := range entries {
		total += e.TotalOnHand()
	}
	return total, nil
}

// mirrorEntries pushes availability snapshots into the stock cache.
// Best effort: mirror failures are logged, never surfaced.
func (s *InventoryService) mirrorEntries(ctx context.Context, entries ...*domain.LedgerEntry) {
	if s.cache == nil {
		return
	}
	for _, e := range entries {
		snap := e.Snapshot()
		if err := s.cache.SetAvailable(ctx, snap.ProductID, snap.WarehouseID, snap.Available); err != nil {
			s.logger.Warn().Err(err).Str("product_id", snap.ProductID).Msg("stock cache mirror failed")
		}
	}
}

func (s *InventoryService) mirrorHolds(ctx context.Context, applied []appliedHold) {
	for _, h := range applied {
		s.mirrorEntries(ctx, h.entry)
	}
}

// checkLowStockAlerts notifies the collaborator about entries at or below
// the configured threshold, deduping through the stock cache when present.
func (s *InventoryService) checkLowStockAlerts(ctx context.Context) {
	if s.notifier == nil {
		return
	}

	alerts, err := s.GetLowStockProducts(ctx, s.cfg.LowStockThreshold)
	if err != nil {
		s.logger.Error().Err(err).Msg("low stock scan failed")
		return
	}
	if len(alerts) == 0 {
		return
	}

	if s.cache != nil {
		fresh := alerts[:0]
		for _, a := range alerts {
			first, err := s.cache.MarkAlerted(ctx, a.ProductID, a.WarehouseID)
			if err != nil {
				s.logger.Warn().Err(err).Msg("alert dedup failed")
				first = true
			}
			if first {
				fresh = append(fresh, a)
			}
		}
		alerts = fresh
		if len(alerts) == 0 {
			return
		}
	}

	if err := s.notifier.NotifyLowStock(ctx, alerts); err != nil {
		s.logger.Error().Err(err).Msg("low stock notification failed")
	}
}
