package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
)

func seededMemStore(b *testing.B, users int) *MemStore {
	b.Helper()
	s := NewMemStore()
	ctx := context.Background()
	err := s.Tx(ctx, func(batch Batch) {
		for i := range users {
			batch.ZAdd("lb:global", fmt.Sprintf("u%d", i), float64(rand.IntN(10_000)))
		}
	})
	if err != nil {
		b.Fatalf("seed: %v", err)
	}
	return s
}

func BenchmarkMemStore_ZIncrBy(b *testing.B) {
	s := seededMemStore(b, 100_000)
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			id := fmt.Sprintf("u%d", rand.IntN(100_000))
			if err := s.Tx(ctx, func(batch Batch) { batch.ZIncrBy("lb:global", id, 10) }); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkMemStore_ZRevRank(b *testing.B) {
	s := seededMemStore(b, 100_000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := s.ZRevRank(ctx, "lb:global", fmt.Sprintf("u%d", i%100_000)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemStore_TopK(b *testing.B) {
	for _, k := range []int64{10, 100, 1000} {
		b.Run(fmt.Sprintf("k=%d", k), func(b *testing.B) {
			s := seededMemStore(b, 100_000)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.ZRevRangeWithScores(ctx, "lb:global", 0, k-1); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
