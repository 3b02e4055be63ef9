package database

// Tamper rewrites a stored block in place so tests can break the chain.
func (db *Database) Tamper(num uint64, fn func(block *Block)) {
	db.mu.Lock()
	defer db.mu.Unlock()

	fn(&db.blocks[num])
}
