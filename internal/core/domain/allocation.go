package domain

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnfulfillable = errors.New("requested quantity cannot be covered")

// LineItem is one requested (product, quantity) pair from a cart or order.
type LineItem struct {
	ProductID string
	Quantity  int
}

// Allocation is one planned draw: take Quantity of ProductID from WarehouseID.
type Allocation struct {
	ProductID   string
	WarehouseID string
	Quantity    int
}

// PlanAllocation decides which warehouses to draw from for each requested
// line item. It only reads the given snapshots and performs no mutation, so
// the returned plan must be applied (and may fail) against live entries.
//
// Per line item, candidate warehouses are consumed greedily from the most
// stocked down, ties broken by input order. If any line item cannot be fully
// covered by the sum of available stock across its warehouses, the whole
// plan fails: partial fulfillment of a single request is not allowed.
func PlanAllocation(items []LineItem, stock map[string][]StockSnapshot) ([]Allocation, error) {
	var plan []Allocation

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}

		candidates := make([]StockSnapshot, len(stock[item.ProductID]))
		copy(candidates, stock[item.ProductID])
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Available > candidates[j].Available
		})

		remaining := item.Quantity
		for _, c := range candidates {
			if remaining <= 0 {
				break
			}
			take := min(remaining, c.Available)
			if take > 0 {
				plan = append(plan, Allocation{
					ProductID:   item.ProductID,
					WarehouseID: c.WarehouseID,
					Quantity:    take,
				})
				remaining -= take
			}
		}
		if remaining > 0 {
			return nil, fmt.Errorf("product %s: short %d units: %w",
				item.ProductID, remaining, ErrUnfulfillable)
		}
	}

	return plan, nil
}
