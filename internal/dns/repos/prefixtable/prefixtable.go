// Package prefixtable is a longest-prefix-match table keyed by network
// prefixes, backed by crit-bit tries. IPv4 and IPv6 prefixes live in separate
// tries so that a lookup never crosses address families.
package prefixtable

import (
	"errors"
	"fmt"
	"net"

	"github.com/k-sone/critbitgo"
)

// ErrInvalidPrefix is returned for a nil prefix or one with an unusable mask.
var ErrInvalidPrefix = errors.New("invalid prefix")

// Table maps prefixes to values. Inserting an existing prefix overwrites it.
// It is not safe for concurrent mutation; concurrent lookups are fine once
// writes have stopped.
type Table[V any] struct {
	v4 *critbitgo.Net
	v6 *critbitgo.Net
}

// New returns an empty table.
func New[V any]() *Table[V] {
	return &Table[V]{v4: critbitgo.NewNet(), v6: critbitgo.NewNet()}
}

// Normalize returns a copy of prefix with host bits cleared and the address
// and mask in their family's native length.
func Normalize(prefix *net.IPNet) (*net.IPNet, error) {
	if prefix == nil {
		return nil, ErrInvalidPrefix
	}
	ones, bits := prefix.Mask.Size()
	if bits == 0 {
		return nil, fmt.Errorf("%w: non-canonical mask on %v", ErrInvalidPrefix, prefix.IP)
	}
	if v4 := prefix.IP.To4(); v4 != nil && (bits == 32 || (bits == 128 && ones >= 96)) {
		if bits == 128 {
			ones -= 96
		}
		mask := net.CIDRMask(ones, 32)
		return &net.IPNet{IP: v4.Mask(mask), Mask: mask}, nil
	}
	v6 := prefix.IP.To16()
	if v6 == nil || bits != 128 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrefix, prefix)
	}
	mask := net.CIDRMask(ones, 128)
	return &net.IPNet{IP: v6.Mask(mask), Mask: mask}, nil
}

func (t *Table[V]) trie(p *net.IPNet) *critbitgo.Net {
	if len(p.IP) == net.IPv4len {
		return t.v4
	}
	return t.v6
}

// Insert stores v under prefix, replacing any previous value.
func (t *Table[V]) Insert(prefix *net.IPNet, v V) error {
	p, err := Normalize(prefix)
	if err != nil {
		return err
	}
	tr := t.trie(p)
	if _, _, err := tr.Delete(p); err != nil {
		return fmt.Errorf("replace %v: %w", p, err)
	}
	if err := tr.Add(p, v); err != nil {
		return fmt.Errorf("insert %v: %w", p, err)
	}
	return nil
}

// Delete removes prefix and reports whether it was present.
func (t *Table[V]) Delete(prefix *net.IPNet) bool {
	p, err := Normalize(prefix)
	if err != nil {
		return false
	}
	_, ok, err := t.trie(p).Delete(p)
	return err == nil && ok
}

// Get returns the value stored under exactly prefix.
func (t *Table[V]) Get(prefix *net.IPNet) (V, bool) {
	var zero V
	p, err := Normalize(prefix)
	if err != nil {
		return zero, false
	}
	val, ok, err := t.trie(p).Get(p)
	if err != nil || !ok {
		return zero, false
	}
	v, ok := val.(V)
	return v, ok
}

// Lookup returns the most specific prefix containing ip and its value.
func (t *Table[V]) Lookup(ip net.IP) (*net.IPNet, V, bool) {
	var zero V
	host, tr := t.hostRoute(ip)
	if host == nil {
		return nil, zero, false
	}
	route, val, err := tr.Match(host)
	if err != nil || route == nil {
		return nil, zero, false
	}
	v, ok := val.(V)
	if !ok {
		return nil, zero, false
	}
	return route, v, true
}

func (t *Table[V]) hostRoute(ip net.IP) (*net.IPNet, *critbitgo.Net) {
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}, t.v4
	}
	if v6 := ip.To16(); v6 != nil {
		return &net.IPNet{IP: v6, Mask: net.CIDRMask(128, 128)}, t.v6
	}
	return nil, nil
}

// Walk visits every entry, IPv4 first, each family in key order. Returning
// false from fn stops the walk.
func (t *Table[V]) Walk(fn func(prefix *net.IPNet, v V) bool) {
	stopped := false
	visit := func(p *net.IPNet, val interface{}) bool {
		v, ok := val.(V)
		if !ok {
			return true
		}
		if !fn(p, v) {
			stopped = true
			return false
		}
		return true
	}
	t.v4.Walk(nil, visit)
	if stopped {
		return
	}
	t.v6.Walk(nil, visit)
}

// Len returns the number of stored prefixes.
func (t *Table[V]) Len() int {
	return t.v4.Size() + t.v6.Size()
}

// Clone returns a table holding the same entries. Values are copied by
// assignment.
func (t *Table[V]) Clone() *Table[V] {
	out := New[V]()
	t.Walk(func(p *net.IPNet, v V) bool {
		_ = out.trie(p).Add(p, v)
		return true
	})
	return out
}
