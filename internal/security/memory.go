// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package security

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	reset time.Time
}

// MemoryBackend keeps counters in process memory. One mutex covers the
// whole read-increment-write so concurrent hits on a key never undercount.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*window
	now     func() time.Time
}

// NewMemoryBackend creates an empty backend. now may be nil.
func NewMemoryBackend(now func() time.Time) *MemoryBackend {
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{
		entries: make(map[string]*window),
		now:     now,
	}
}

// Hit implements Backend.
func (b *MemoryBackend) Hit(_ context.Context, key string, limit int, d time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	w, ok := b.entries[key]
	if !ok || !now.Before(w.reset) {
		b.entries[key] = &window{count: 1, reset: now.Add(d)}
		return true, nil
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Reset implements Backend.
func (b *MemoryBackend) Reset(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

// Sweep implements Backend.
func (b *MemoryBackend) Sweep(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := 0
	for k, w := range b.entries {
		if !now.Before(w.reset) {
			delete(b.entries, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of tracked keys.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
