// Package storage provides the persistent cache tiers behind the in-memory cache.
package storage

// Store is a flat key/value payload store. Implementations are safe for
// concurrent use. Writes are best-effort from the cache's point of view:
// callers log failures and move on.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, payload []byte) error
	Remove(key string)
	Keys(prefix string) []string
	Len() int
}
