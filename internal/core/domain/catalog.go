package domain

// Product metadata as resolved from the external product registry. The
// ledger references products by id only and never mutates them.
type Product struct {
	ID       string
	SKU      string
	Name     string
	Price    float64
	Category string
}

type StoreStatus string

const (
	StoreActive         StoreStatus = "ACTIVE"
	StoreDecommissioned StoreStatus = "DECOMMISSIONED"
)

// Store metadata as resolved from the external store registry.
type Store struct {
	ID     string
	Name   string
	Status StoreStatus
}

// Accepting returns whether the store can receive stock.
func (s Store) Accepting() bool {
	return s.Status == StoreActive
}
