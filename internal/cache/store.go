// Package cache holds read-through response caches for the n8n client.
package cache

// Store is an interface for caching raw response payloads by request key.
type Store interface {
	// Get returns the payload stored under key if it is still fresh.
	Get(key string) ([]byte, bool)
	// Set stores a payload under key, stamped with the current time.
	Set(key string, payload []byte)
	// Purge drops every entry.
	Purge()
	// Len returns the number of entries currently held.
	Len() int
}

// Disabled is a Store that never retains anything.
type Disabled struct{}

func (Disabled) Get(string) ([]byte, bool) { return nil, false }
func (Disabled) Set(string, []byte)        {}
func (Disabled) Purge()                    {}
func (Disabled) Len() int                  { return 0 }
