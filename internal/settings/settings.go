// Package settings is the key/value store consulted by the companion for
// device configuration. It never holds game state.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MaxValueLen bounds every stored value; the transport-facing callers rely
// on this so a setting always fits a handful of chunks.
const MaxValueLen = 128

var (
	ErrEmptyKey     = errors.New("empty settings key")
	ErrValueTooLong = fmt.Errorf("settings value exceeds %d bytes", MaxValueLen)
)

// Store reads and writes string settings by key. Get returns "" without
// error for an absent key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

func validate(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if len(value) > MaxValueLen {
		return ErrValueTooLong
	}
	return nil
}

// Memory is the in-process store used when no redis endpoint is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}
