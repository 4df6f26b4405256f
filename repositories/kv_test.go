package repositories

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newBadgerKV(t *testing.T) KV {
	db, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	kv := NewBadgerKV(db, slog.Default())
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func newRedisKV(t *testing.T) KV {
	server := miniredis.RunT(t)
	kv := NewRedisKV(NewRedisClient(server.Addr(), "", 0))
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

// Both backends must honour the same contract.
var backends = map[string]func(t *testing.T) KV{
	"badger": newBadgerKV,
	"redis":  newRedisKV,
}

func TestKV_GetPut(t *testing.T) {
	for name, newKV := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			kv := newKV(t)

			_, err := kv.Get(ctx, "missing")
			req.ErrorIs(err, ErrKeyNotFound)

			req.NoError(kv.Put(ctx, "k", []byte("v1")))
			value, err := kv.Get(ctx, "k")
			req.NoError(err)
			req.Equal([]byte("v1"), value)
		})
	}
}

func TestKV_CompareAndSwap(t *testing.T) {
	for name, newKV := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			kv := newKV(t)

			// Given a key created from absent
			swapped, err := kv.CompareAndSwap(ctx, "k", nil, []byte("v1"))
			req.NoError(err)
			req.True(swapped)

			// When creating it again from absent, then the swap is refused
			swapped, err = kv.CompareAndSwap(ctx, "k", nil, []byte("v2"))
			req.NoError(err)
			req.False(swapped)

			// When the expected value is stale, then the swap is refused
			swapped, err = kv.CompareAndSwap(ctx, "k", []byte("other"), []byte("v2"))
			req.NoError(err)
			req.False(swapped)

			// When the expected value matches, then the value is replaced
			swapped, err = kv.CompareAndSwap(ctx, "k", []byte("v1"), []byte("v2"))
			req.NoError(err)
			req.True(swapped)

			value, err := kv.Get(ctx, "k")
			req.NoError(err)
			req.Equal([]byte("v2"), value)

			// And a replacement of an absent key is refused
			swapped, err = kv.CompareAndSwap(ctx, "absent", []byte("v1"), []byte("v2"))
			req.NoError(err)
			req.False(swapped)
		})
	}
}

func TestKV_ScanIsOrderedByKey(t *testing.T) {
	for name, newKV := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctx := context.Background()
			kv := newKV(t)

			for _, k := range []string{"p:3", "p:1", "q:1", "p:2"} {
				req.NoError(kv.Put(ctx, k, []byte(k)))
			}

			var keys []string
			err := kv.Scan(ctx, "p:", func(key string, value []byte) error {
				req.Equal(key, string(value))
				keys = append(keys, key)
				return nil
			})
			req.NoError(err)
			req.Equal([]string{"p:1", "p:2", "p:3"}, keys)
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, `msg:a\*b\?:`, escapeGlob("msg:a*b?:"))
}
