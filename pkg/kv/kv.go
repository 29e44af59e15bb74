package kv

// Engine is the contract every storage backend must satisfy to be served
// by the connection dispatcher or the HTTP binding. Implementations must
// be safe for concurrent use; the dispatcher calls them from a pool of
// worker goroutines sharing one instance.
type Engine interface {
	// Get returns the value stored under key. The second return value is
	// false when the key is absent; that is not an error.
	Get(key string) (string, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(key, value string) error

	// Remove deletes key. Returns ErrKeyNotFound if the key is absent.
	Remove(key string) error

	// Reset deletes every key in the store.
	Reset() error

	// Close flushes and releases all resources. The engine must not be
	// used after Close returns.
	Close() error
}
