package billing

import "sync"

// inflightRegistry rejects a second submission for the same key while the
// first is still being processed. Double-clicked payment forms and
// concurrent pay-all requests are refused before any write happens.
type inflightRegistry struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{keys: make(map[string]bool)}
}

// begin claims key. It returns false when the key is already claimed.
func (r *inflightRegistry) begin(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keys[key] {
		return false
	}
	r.keys[key] = true
	return true
}

func (r *inflightRegistry) end(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
}
