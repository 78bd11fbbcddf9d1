package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/port"
)

// InventoryView is one inventory record joined with product and store
// metadata for presentation. Metadata lookups are best-effort: an unknown
// id leaves the name fields empty rather than failing the projection.
type InventoryView struct {
	StoreID      string    `json:"storeId"`
	StoreName    string    `json:"storeName,omitempty"`
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName,omitempty"`
	SKU          string    `json:"sku,omitempty"`
	Category     string    `json:"category,omitempty"`
	Price        float64   `json:"price,omitempty"`
	Quantity     int       `json:"quantity"`
	LastModified time.Time `json:"lastModified"`
}

// QueryService serves read-only, point-in-time projections over current
// record state. Projections never mutate anything and fail only on
// malformed input.
type QueryService struct {
	store    port.RecordStore
	products port.ProductRegistry
	stores   port.StoreRegistry
}

func NewQueryService(store port.RecordStore, products port.ProductRegistry, stores port.StoreRegistry) *QueryService {
	return &QueryService{store: store, products: products, stores: stores}
}

// ListAll returns every touched record with metadata.
func (q *QueryService) ListAll(ctx context.Context) ([]InventoryView, error) {
	records, err := q.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return q.project(ctx, records), nil
}

// ListByStore returns the records of one store.
func (q *QueryService) ListByStore(ctx context.Context, storeID string) ([]InventoryView, error) {
	if storeID == "" {
		return nil, fmt.Errorf("%w: store id is required", ErrInvalidArgument)
	}
	records, err := q.store.ListRecordsByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list records by store: %w", err)
	}
	return q.project(ctx, records), nil
}

// ListLowStock returns records with quantity strictly below threshold,
// ordered by quantity ascending with a deterministic tie-break on store
// name, then product id.
func (q *QueryService) ListLowStock(ctx context.Context, threshold int) ([]InventoryView, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold must not be negative", ErrInvalidArgument)
	}
	records, err := q.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	// Filter into a fresh slice; records may alias the store's own backing
	// array.
	low := make([]domain.InventoryRecord, 0, len(records))
	for _, rec := range records {
		if rec.Quantity < threshold {
			low = append(low, rec)
		}
	}
	views := q.project(ctx, low)
	sort.Slice(views, func(i, j int) bool {
		if views[i].Quantity != views[j].Quantity {
			return views[i].Quantity < views[j].Quantity
		}
		if views[i].StoreName != views[j].StoreName {
			return views[i].StoreName < views[j].StoreName
		}
		return views[i].ProductID < views[j].ProductID
	})
	return views, nil
}

// ListMovements returns the newest movement entries for a key.
func (q *QueryService) ListMovements(ctx context.Context, storeID, productID string, limit int) ([]domain.MovementEntry, error) {
	if err := validateKey(storeID, productID); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}
	if limit == 0 {
		limit = 50
	}
	entries, err := q.store.ListMovements(ctx, storeID, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return entries, nil
}

func (q *QueryService) project(ctx context.Context, records []domain.InventoryRecord) []InventoryView {
	views := make([]InventoryView, 0, len(records))
	for _, rec := range records {
		view := InventoryView{
			StoreID:      rec.StoreID,
			ProductID:    rec.ProductID,
			Quantity:     rec.Quantity,
			LastModified: rec.LastModified,
		}
		if q.products != nil {
			if p, err := q.products.Product(ctx, rec.ProductID); err == nil {
				view.ProductName = p.Name
				view.SKU = p.SKU
				view.Category = p.Category
				view.Price = p.Price
			}
		}
		if q.stores != nil {
			if s, err := q.stores.Store(ctx, rec.StoreID); err == nil {
				view.StoreName = s.Name
			}
		}
		views = append(views, view)
	}
	return views
}
