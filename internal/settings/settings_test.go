package settings

import (
	"context"
	"errors"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"redis":  NewRedis(rdb),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, "orientation", "white-up"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			v, err := s.Get(ctx, "orientation")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if v != "white-up" {
				t.Fatalf("Get = %q", v)
			}

			if err := s.Set(ctx, "orientation", "black-up"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			if v, _ := s.Get(ctx, "orientation"); v != "black-up" {
				t.Fatalf("after overwrite = %q", v)
			}
		})
	}
}

func TestStoreMissingKeyIsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			v, err := s.Get(ctx, "missing")
			if err != nil || v != "" {
				t.Fatalf("Get missing = %q, %v", v, err)
			}
		})
	}
}

func TestStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("x", MaxValueLen+1)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, "", "v"); !errors.Is(err, ErrEmptyKey) {
				t.Fatalf("empty key: %v", err)
			}
			if err := s.Set(ctx, "k", long); !errors.Is(err, ErrValueTooLong) {
				t.Fatalf("long value: %v", err)
			}
		})
	}
}
