package rpz

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// ErrZoneIndex is returned when a zone slot beyond the engine's capacity is
// addressed. Grow the engine with AssureZones first.
var ErrZoneIndex = errors.New("zone index out of range")

// Discarded is a set of zone names to skip during a lookup.
type Discarded map[string]struct{}

// NewDiscarded builds a set from names.
func NewDiscarded(names ...string) Discarded {
	d := make(Discarded, len(names))
	for _, n := range names {
		d[n] = struct{}{}
	}
	return d
}

// skips reports whether z is excluded. Unnamed zones are never excluded.
func (d Discarded) skips(z *Zone) bool {
	if z.name == "" || len(d) == 0 {
		return false
	}
	_, ok := d[z.name]
	return ok
}

// Key is a stable text form of the set, usable in cache keys.
func (d Discarded) Key() string {
	if len(d) == 0 {
		return ""
	}
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// Engine is an ordered list of zone slots; a lower index has higher priority.
// Slots may be empty. An Engine is read-only once published; all Get methods
// are safe for concurrent use and never block.
type Engine struct {
	zones []*Zone
}

// NewEngine returns an engine with zones in priority order.
func NewEngine(zones ...*Zone) *Engine {
	return &Engine{zones: zones}
}

// AssureZones grows the slot list so that index is addressable.
func (e *Engine) AssureZones(index int) {
	if len(e.zones) <= index {
		grown := make([]*Zone, index+1)
		copy(grown, e.zones)
		e.zones = grown
	}
}

// SetZone places z at priority index, replacing whatever was there.
func (e *Engine) SetZone(index int, z *Zone) error {
	if index < 0 || index >= len(e.zones) {
		return fmt.Errorf("%w: %d (size %d)", ErrZoneIndex, index, len(e.zones))
	}
	e.zones[index] = z
	return nil
}

// Zone returns the zone at index, or nil for an empty or missing slot.
func (e *Engine) Zone(index int) *Zone {
	if index < 0 || index >= len(e.zones) {
		return nil
	}
	return e.zones[index]
}

// Size is the number of slots, empty ones included.
func (e *Engine) Size() int { return len(e.zones) }

// Zones returns the non-empty slots in priority order.
func (e *Engine) Zones() []*Zone {
	out := make([]*Zone, 0, len(e.zones))
	for _, z := range e.zones {
		if z != nil {
			out = append(out, z)
		}
	}
	return out
}

// Clone copies the slot list; zones themselves are shared.
func (e *Engine) Clone() *Engine {
	return &Engine{zones: append([]*Zone(nil), e.zones...)}
}

func (e *Engine) eligible(z *Zone, discarded Discarded) bool {
	return z != nil && !discarded.skips(z)
}

// GetQueryPolicy checks each zone in order for a QName trigger on qname and
// then a ClientIP trigger on client. A hit of either kind in an earlier zone
// wins over anything in a later one.
func (e *Engine) GetQueryPolicy(qname string, client net.IP, discarded Discarded) Policy {
	for _, z := range e.zones {
		if !e.eligible(z, discarded) {
			continue
		}
		if p, ok := z.FindQNamePolicy(qname); ok {
			return p
		}
		if p, ok := z.FindClientPolicy(client); ok {
			return p
		}
	}
	return NoPolicy()
}

// GetProcessingPolicy checks the NSDName triggers for the name of a name
// server used while resolving.
func (e *Engine) GetProcessingPolicy(nsName string, discarded Discarded) Policy {
	for _, z := range e.zones {
		if !e.eligible(z, discarded) {
			continue
		}
		if p, ok := z.FindNSPolicy(nsName); ok {
			return p
		}
	}
	return NoPolicy()
}

// GetProcessingPolicyAddr checks the NSIP triggers for a name server address.
func (e *Engine) GetProcessingPolicyAddr(nsAddr net.IP, discarded Discarded) Policy {
	for _, z := range e.zones {
		if !e.eligible(z, discarded) {
			continue
		}
		if p, ok := z.FindNSIPPolicy(nsAddr); ok {
			return p
		}
	}
	return NoPolicy()
}

// GetPostPolicy checks the addresses of the A and AAAA records in answers
// against the ResponseIP triggers. Records are the outer loop: the first
// record with a hit in any eligible zone decides, even if a later record
// would hit a higher-priority zone.
func (e *Engine) GetPostPolicy(answers []dns.RR, discarded Discarded) Policy {
	for _, rr := range answers {
		var addr net.IP
		switch v := rr.(type) {
		case *dns.A:
			addr = v.A
		case *dns.AAAA:
			addr = v.AAAA
		default:
			continue
		}
		if addr == nil {
			continue
		}

		for _, z := range e.zones {
			if !e.eligible(z, discarded) {
				continue
			}
			if p, ok := z.FindResponsePolicy(addr); ok {
				return p
			}
		}
	}
	return NoPolicy()
}

// GetResponsePolicy runs GetPostPolicy over the answer section of m only.
func (e *Engine) GetResponsePolicy(m *dns.Msg, discarded Discarded) Policy {
	if m == nil {
		return NoPolicy()
	}
	return e.GetPostPolicy(m.Answer, discarded)
}
