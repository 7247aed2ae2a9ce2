package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/TheMichaelB/syncvault/internal/keystore"
	"github.com/TheMichaelB/syncvault/test/testutil"
)

func openBackends(b *testing.B) map[string]keystore.Store {
	dir := b.TempDir()
	logger := testutil.NewTestLogger()

	file, err := keystore.NewFileStore(filepath.Join(dir, "credentials.json"), logger)
	if err != nil {
		b.Fatal(err)
	}
	sqlite, err := keystore.NewSQLiteStore(filepath.Join(dir, "credentials.db"), logger)
	if err != nil {
		b.Fatal(err)
	}
	bolt, err := keystore.NewBoltStore(filepath.Join(dir, "credentials.bolt"), logger)
	if err != nil {
		b.Fatal(err)
	}

	stores := map[string]keystore.Store{
		"file":   file,
		"sqlite": sqlite,
		"bolt":   bolt,
		"memory": keystore.NewMemoryStore(),
	}
	b.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func BenchmarkStoreSet(b *testing.B) {
	ctx := context.Background()
	value := make([]byte, 256)

	for name, store := range openBackends(b) {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := store.Set(ctx, keystore.KeyPassphrase, value); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkStoreGet(b *testing.B) {
	ctx := context.Background()

	for name, store := range openBackends(b) {
		for i := 0; i < 16; i++ {
			if err := store.Set(ctx, fmt.Sprintf("key-%d", i), make([]byte, 256)); err != nil {
				b.Fatal(err)
			}
		}

		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := store.Get(ctx, fmt.Sprintf("key-%d", i%16)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
