package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-service/internal/adapter/storage"
	"github.com/rl1809/inventory-service/internal/core/domain"
	"github.com/rl1809/inventory-service/internal/core/service"
)

const (
	productID     = "hot-product"
	initialStock  = 20
	totalRequests = 50
	perRequest    = 1
)

// Contention demo: many goroutines race to reserve the same product.
// Exactly initialStock/perRequest reservations should win.
func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	ctx := context.Background()

	repo := storage.NewMemoryAdapter()
	inventory := service.NewInventoryService(repo, nil, nil, service.Config{}, logger)
	defer inventory.Close()

	w1, err := inventory.AddWarehouse(ctx, "Main", "District 1", nil)
	if err != nil {
		panic(err)
	}
	w2, err := inventory.AddWarehouse(ctx, "Overflow", "District 9", nil)
	if err != nil {
		panic(err)
	}
	if _, err := inventory.AddInventory(ctx, productID, w1.ID, initialStock/2); err != nil {
		panic(err)
	}
	if _, err := inventory.AddInventory(ctx, productID, w2.ID, initialStock/2); err != nil {
		panic(err)
	}

	var successCount, failCount atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			customer := fmt.Sprintf("customer-%d", id)
			_, err := inventory.ReserveItems(ctx, []domain.LineItem{
				{ProductID: productID, Quantity: perRequest},
			}, customer)
			if err != nil {
				failCount.Add(1)
			} else {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	remaining, _ := inventory.GetAvailableQuantity(ctx, productID, "")

	fmt.Printf("requests:  %d\n", totalRequests)
	fmt.Printf("succeeded: %d\n", successCount.Load())
	fmt.Printf("failed:    %d\n", failCount.Load())
	fmt.Printf("remaining: %d\n", remaining)
	fmt.Printf("elapsed:   %s\n", elapsed)

	if successCount.Load() != initialStock/perRequest || remaining != 0 {
		fmt.Println("MISMATCH: oversold or undersold stock")
		os.Exit(1)
	}
	fmt.Println("OK: no overselling")
}
