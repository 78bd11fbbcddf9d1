package port

import (
	"context"
	"errors"

	"github.com/quangtdn/storeledger/internal/core/domain"
)

// ErrNotFound is returned by registries for unknown ids.
var ErrNotFound = errors.New("not found")

// ProductRegistry resolves product ids to metadata. Read-only from the
// core's point of view.
type ProductRegistry interface {
	Product(ctx context.Context, id string) (*domain.Product, error)
}

// StoreRegistry resolves store ids to metadata. The transfer coordinator
// consults it to confirm the destination store still accepts stock.
type StoreRegistry interface {
	Store(ctx context.Context, id string) (*domain.Store, error)
}
