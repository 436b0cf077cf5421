// Package memory provides an in-memory implementation of the storage
// interfaces: SessionStore, CodeStore, and TokenStore.
//
// State is held in Go maps guarded by a sync.RWMutex. Multi-step reads that
// mutate (ConsumeSession, RedeemCode) take the write lock for their whole
// critical section, which is what makes code redemption at-most-once under
// concurrent token requests.
//
// Expiry is lazy: it is computed from record timestamps on every read, so
// correctness never depends on the background sweep. The sweep goroutine
// only compacts memory for long-lived processes; call Stop to halt it.
//
// Example usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	srv, _ := server.New(reg, dir, store, store, store, config, logger)
package memory
