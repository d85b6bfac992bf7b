package rpz

import (
	"sort"

	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/repos/bloom"
)

const defaultNameCapacity = 1024

// nameTable maps exact names, including "*.suffix" wildcard keys, to policies.
// An optional bloom filter answers most misses without touching the map;
// deleted keys stay in the filter, which only costs a false positive.
type nameTable struct {
	entries  map[string]Policy
	factory  bloom.Factory
	filter   bloom.Filter
	capacity uint64
	fpRate   float64
}

func newNameTable(factory bloom.Factory, capacity uint64, fpRate float64) *nameTable {
	if capacity == 0 {
		capacity = defaultNameCapacity
	}
	t := &nameTable{
		entries:  make(map[string]Policy),
		factory:  factory,
		capacity: capacity,
		fpRate:   fpRate,
	}
	if factory != nil {
		t.filter = factory.New(capacity, fpRate)
	}
	return t
}

func (t *nameTable) set(key string, p Policy) {
	t.entries[key] = p
	if t.filter == nil {
		return
	}
	if uint64(len(t.entries)) > t.capacity {
		t.rebuild(t.capacity * 2)
		return
	}
	t.filter.Add(key)
}

// rebuild resizes the filter once the table outgrows it.
func (t *nameTable) rebuild(capacity uint64) {
	t.capacity = capacity
	t.filter = t.factory.New(capacity, t.fpRate)
	for k := range t.entries {
		t.filter.Add(k)
	}
}

func (t *nameTable) remove(key string) {
	delete(t.entries, key)
}

func (t *nameTable) get(key string) (Policy, bool) {
	if t.filter != nil && !t.filter.MightContain(key) {
		return Policy{}, false
	}
	p, ok := t.entries[key]
	return p, ok
}

// find looks qname up exactly, then as "*.<suffix>" for each suffix from the
// most specific one down to the root:
//
//	www.example.com.
//	  *.example.com.
//	          *.com.
//	              *.
func (t *nameTable) find(qname string) (Policy, bool) {
	if len(t.entries) == 0 {
		return Policy{}, false
	}
	if p, ok := t.get(qname); ok {
		return p, true
	}
	for s, ok := utils.ChopOff(qname); ok; s, ok = utils.ChopOff(s) {
		if p, hit := t.get(utils.JoinNames(utils.Wildcard, s)); hit {
			return p, true
		}
	}
	return Policy{}, false
}

func (t *nameTable) len() int { return len(t.entries) }

func (t *nameTable) sortedKeys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *nameTable) clone() *nameTable {
	out := &nameTable{
		entries:  make(map[string]Policy, len(t.entries)),
		factory:  t.factory,
		capacity: t.capacity,
		fpRate:   t.fpRate,
	}
	for k, v := range t.entries {
		out.entries[k] = v
	}
	if t.filter != nil {
		out.filter = t.filter.Clone()
	}
	return out
}
