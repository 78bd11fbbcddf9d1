package service

import (
	"sync"

	"github.com/quangtdn/storeledger/internal/core/domain"
)

// keyLocks serializes mutations per (store, product) key. Distinct keys
// never contend beyond the short registry lookup.
type keyLocks struct {
	mu    sync.Mutex
	locks map[domain.Key]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[domain.Key]*sync.Mutex)}
}

// lock acquires the mutex for the key and returns its unlock func.
func (k *keyLocks) lock(key domain.Key) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
