package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quangtdn/storeledger/internal/adapter/storage"
	"github.com/quangtdn/storeledger/internal/core/service"
	"github.com/quangtdn/storeledger/internal/event"
)

const (
	storeID       = "store-main"
	productID     = "widget-1"
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	store := storage.NewMemoryStore()
	bus := event.NewBus(event.DefaultBufferSize)
	ledger := service.NewLedger(store, bus, service.DefaultLowStockThreshold,
		service.WithWriteRetries(totalRequests))

	if _, err := ledger.StockIn(ctx, storeID, productID, initialStock, "seed", ""); err != nil {
		log.Fatalf("failed to seed stock: %v", err)
	}

	var successCount atomic.Int32
	var insufficientCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			_, err := ledger.StockOut(ctx, storeID, productID, 1, fmt.Sprintf("req-%d", id), "")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	insufficient := insufficientCount.Load()
	other := otherCount.Load()

	remaining, err := ledger.Read(ctx, storeID, productID)
	if err != nil {
		log.Fatalf("failed to read remaining stock: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:      %d\n", initialStock)
	fmt.Printf("Total Requests:     %d\n", totalRequests)
	fmt.Printf("Successful:         %d\n", success)
	fmt.Printf("Insufficient Stock: %d\n", insufficient)
	fmt.Printf("Other Errors:       %d\n", other)
	fmt.Printf("Remaining Stock:    %d\n", remaining)
	fmt.Printf("Movements Written:  %d\n", store.MovementCount())
	fmt.Printf("Duration:           %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && insufficient == totalRequests-initialStock && remaining == 0 && other == 0 {
		fmt.Printf("PASS: exactly %d withdrawals succeeded, %d rejected\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success / %d rejected / 0 remaining, got %d / %d / %d\n",
			initialStock, totalRequests-initialStock, success, insufficient, remaining)
	}
}
