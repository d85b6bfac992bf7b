// Package bloom provides the probabilistic prefilter placed in front of the
// policy name tables. A negative answer is definite, so most lookups for
// names that appear in no trigger table never touch the maps.
package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// Filter is the minimal surface the name tables need. Writers must not run
// concurrently with readers; zones are only mutated before they are published.
type Filter interface {
	Add(key string)
	MightContain(key string) bool
	Clone() Filter
}

// Factory builds filters sized for a capacity and false-positive rate.
type Factory interface {
	New(capacity uint64, fpRate float64) Filter
}

type factory struct{}

// NewFactory returns a Factory that sizes filters with Size.
func NewFactory() Factory { return factory{} }

func (factory) New(capacity uint64, fpRate float64) Filter {
	m, k := Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

// filter wraps bits-and-blooms with string keys.
type filter struct {
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key string) {
	f.bf.AddString(key)
}

func (f *filter) MightContain(key string) bool {
	return f.bf.TestString(key)
}

func (f *filter) Clone() Filter {
	return &filter{bf: f.bf.Copy()}
}
