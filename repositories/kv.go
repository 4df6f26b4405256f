//go:generate go run go.uber.org/mock/mockgen -source=kv.go -destination=../mocks/mock_kv.go -package=mocks
package repositories

import (
	"context"
	"fmt"
)

var (
	ErrKeyNotFound = fmt.Errorf("key not found")
	errCASMismatch = fmt.Errorf("compare-and-swap mismatch")
)

// KV is the durable key-value persistence the core is built on.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// CompareAndSwap writes value only if the stored value equals old.
	// A nil old means the key must be absent. It reports whether the swap happened.
	CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error)
	// Scan visits every key with the given prefix in lexical key order.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	Close() error
}
