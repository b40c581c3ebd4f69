// Package bloom provides the per-segment approximate membership filter.
//
// It wraps github.com/bits-and-blooms/bloom/v3 rather than hand-rolling a bit
// vector: the library already implements the optimal-size/optimal-k formulas
// and the double-hashing scheme, and is reused consistently whenever a
// segment is created or reopened so that the same scheme applies on reload.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter is a fixed-size bit vector with k hash positions per key.
// False positives are expected; false negatives never occur.
type Filter struct {
	inner *bloom.BloomFilter
}

// New creates a filter sized for expectedItems entries at the given
// false-positive rate.
func New(expectedItems uint, falsePositiveRate float64) *Filter {
	if expectedItems == 0 {
		expectedItems = 1000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.03
	}
	return &Filter{inner: bloom.NewWithEstimates(expectedItems, falsePositiveRate)}
}

// Add records key as a member of the set.
func (f *Filter) Add(key []byte) {
	f.inner.Add(key)
}

// MightContain reports whether key might be a member. false is a definitive
// answer; true may be a false positive.
func (f *Filter) MightContain(key []byte) bool {
	return f.inner.Test(key)
}
