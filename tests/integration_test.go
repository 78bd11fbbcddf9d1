package tests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quangtdn/storeledger/internal/adapter/storage"
	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/core/service"
	"github.com/quangtdn/storeledger/internal/event"
	"github.com/quangtdn/storeledger/internal/gateway"
)

type env struct {
	store       *storage.MemoryStore
	registry    *storage.MemoryRegistry
	bus         *event.Bus
	ledger      *service.Ledger
	coordinator *service.TransferCoordinator
	query       *service.QueryService
}

func setup(t *testing.T) *env {
	t.Helper()

	store := storage.NewMemoryStore()
	registry := storage.NewMemoryRegistry()
	registry.AddStore(domain.Store{ID: "store-a", Name: "Downtown", Status: domain.StoreActive})
	registry.AddStore(domain.Store{ID: "store-b", Name: "Airport", Status: domain.StoreActive})
	registry.AddProduct(domain.Product{ID: "prod-1", SKU: "SKU-001", Name: "Widget", Price: 9.99, Category: "Hardware"})

	bus := event.NewBus(256)
	ledger := service.NewLedger(store, bus, 10, service.WithWriteRetries(100))
	return &env{
		store:       store,
		registry:    registry,
		bus:         bus,
		ledger:      ledger,
		coordinator: service.NewTransferCoordinator(ledger, registry, bus),
		query:       service.NewQueryService(store, registry, registry),
	}
}

func TestFullMutationFlow(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	sub := e.bus.Subscribe()
	defer sub.Close()

	// Receive, sell down through the threshold, adjust after a count.
	if _, err := e.ledger.StockIn(ctx, "store-a", "prod-1", 15, "po-1", "initial delivery"); err != nil {
		t.Fatalf("StockIn failed: %v", err)
	}
	if _, err := e.ledger.StockOut(ctx, "store-a", "prod-1", 7, "so-1", ""); err != nil {
		t.Fatalf("StockOut failed: %v", err)
	}
	if _, err := e.ledger.Adjust(ctx, "store-a", "prod-1", 12, "cycle count"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}

	qty, err := e.ledger.Read(ctx, "store-a", "prod-1")
	if err != nil || qty != 12 {
		t.Fatalf("Read = %d (%v), want 12", qty, err)
	}

	// 15, 15->8 crossing the threshold, 8->12 back up.
	var kinds []domain.EventKind
	for {
		select {
		case evt := <-sub.Events():
			kinds = append(kinds, evt.Kind)
			continue
		default:
		}
		break
	}
	want := []domain.EventKind{domain.EventOperationSuccess, domain.EventStockLow, domain.EventOperationSuccess}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, kinds)
		}
	}

	// The movement log carries the full story.
	moves, err := e.query.ListMovements(ctx, "store-a", "prod-1", 0)
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(moves))
	}
	sum := 0
	for _, m := range moves {
		sum += m.Delta
	}
	if sum != qty {
		t.Errorf("deltas sum to %d, record holds %d", sum, qty)
	}
}

func TestConcurrentMutationsAcrossKeys(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	stores := []string{"store-a", "store-b"}
	for _, s := range stores {
		if _, err := e.ledger.StockIn(ctx, s, "prod-1", 50, "", ""); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	var success atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := e.ledger.StockOut(ctx, stores[n%2], "prod-1", 1, fmt.Sprintf("req-%d", n), "")
			if err == nil {
				success.Add(1)
			} else if !errors.Is(err, service.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if success.Load() != 100 {
		t.Errorf("expected exactly 100 successful withdrawals, got %d", success.Load())
	}
	for _, s := range stores {
		if qty, _ := e.ledger.Read(ctx, s, "prod-1"); qty != 0 {
			t.Errorf("store %s left with %d units", s, qty)
		}
	}
}

func TestTransferAndQueryFlow(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	if _, err := e.ledger.StockIn(ctx, "store-a", "prod-1", 20, "", ""); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := e.coordinator.Transfer(ctx, "store-a", "store-b", "prod-1", 14, "rebalance"); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	// store-a dropped to 6, below the threshold of 10; store-b holds 14.
	low, err := e.query.ListLowStock(ctx, e.ledger.LowStockThreshold())
	if err != nil {
		t.Fatalf("ListLowStock failed: %v", err)
	}
	if len(low) != 1 || low[0].StoreID != "store-a" || low[0].Quantity != 6 {
		t.Fatalf("unexpected low stock result: %+v", low)
	}
	if low[0].ProductName != "Widget" || low[0].StoreName != "Downtown" {
		t.Errorf("metadata join missing: %+v", low[0])
	}

	views, err := e.query.ListByStore(ctx, "store-b")
	if err != nil || len(views) != 1 || views[0].Quantity != 14 {
		t.Fatalf("unexpected store-b inventory: %+v (%v)", views, err)
	}

	// Failed transfer leaves totals intact.
	e.registry.SetStoreStatus("store-b", domain.StoreDecommissioned)
	_, err = e.coordinator.Transfer(ctx, "store-a", "store-b", "prod-1", 3, "")
	if !errors.Is(err, service.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if qty, _ := e.ledger.Read(ctx, "store-a", "prod-1"); qty != 6 {
		t.Errorf("compensation left store-a at %d, want 6", qty)
	}
}

func TestEndToEndNotificationDelivery(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	hub := gateway.NewHub(e.bus)
	defer hub.Close()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	obs := gateway.NewObserver("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws",
		gateway.WithReconnectDelay(50*time.Millisecond))
	obs.Start()
	defer obs.Close()

	deadline := time.Now().Add(2 * time.Second)
	for obs.State() != gateway.StateOpen {
		if time.Now().After(deadline) {
			t.Fatal("observer never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := e.ledger.StockIn(ctx, "store-a", "prod-1", 5, "", ""); err != nil {
		t.Fatalf("StockIn failed: %v", err)
	}
	if _, err := e.ledger.StockOut(ctx, "store-a", "prod-1", 5, "", ""); err != nil {
		t.Fatalf("StockOut failed: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for len(obs.Recent()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("observer received %d notifications, want 2", len(obs.Recent()))
		}
		time.Sleep(10 * time.Millisecond)
	}

	recent := obs.Recent()
	if recent[0].Type != domain.EventStockOut {
		t.Errorf("newest notification = %s, want STOCK_OUT", recent[0].Type)
	}
	if obs.UnreadCount() != 2 {
		t.Errorf("unread = %d, want 2", obs.UnreadCount())
	}
	obs.MarkRead(recent[0].ID)
	if obs.UnreadCount() != 1 {
		t.Errorf("unread after MarkRead = %d, want 1", obs.UnreadCount())
	}

	sev, dur := gateway.Classify(recent[0].Type)
	if sev != gateway.SeverityError || dur != 8*time.Second {
		t.Errorf("STOCK_OUT classifies as %s/%v", sev, dur)
	}
}
