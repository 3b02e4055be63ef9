// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"fmt"
	"sync"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
)

// Mempool represents a cache of transactions organized by account:nonce.
// Transactions are handed out in the order they were first admitted.
type Mempool struct {
	mu    sync.RWMutex
	pool  map[string]database.BlockTx
	order []string
}

// New constructs a new mempool.
func New() *Mempool {
	mp := Mempool{
		pool: make(map[string]database.BlockTx),
	}

	return &mp
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction from the mempool. A replaced
// transaction keeps its position.
func (mp *Mempool) Upsert(tx database.BlockTx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := mapKey(tx)
	if _, exists := mp.pool[key]; !exists {
		mp.order = append(mp.order, key)
	}
	mp.pool[key] = tx

	return len(mp.pool)
}

// Delete removes the transactions from the mempool.
func (mp *Mempool) Delete(txs ...database.BlockTx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, tx := range txs {
		delete(mp.pool, mapKey(tx))
	}

	order := mp.order[:0]
	for _, key := range mp.order {
		if _, exists := mp.pool[key]; exists {
			order = append(order, key)
		}
	}
	mp.order = order
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.BlockTx)
	mp.order = nil
}

// PickAll returns a copy of the pending transactions in admission order.
func (mp *Mempool) PickAll() []database.BlockTx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.BlockTx, 0, len(mp.order))
	for _, key := range mp.order {
		txs = append(txs, mp.pool[key])
	}

	return txs
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(tx database.BlockTx) string {
	return fmt.Sprintf("%s:%d", tx.From, tx.Nonce)
}
