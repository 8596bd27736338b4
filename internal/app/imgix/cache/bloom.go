package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomFilter answers "definitely not a source" before any cache or DB hit.
// Names are only added, so a deleted source stays a false positive until restart.
type BloomFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

// NewBloomFilter sizes the filter for expectedItems at falsePositiveRate (0.01 is 1%).
func NewBloomFilter(expectedItems uint, falsePositiveRate float64) *BloomFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

func (b *BloomFilter) Add(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.AddString(name)
}

// MightExist returns false only when name was never added.
func (b *BloomFilter) MightExist(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.TestString(name)
}

// Count estimates the number of added names.
func (b *BloomFilter) Count() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.ApproximatedSize()
}
