package rpz

import (
	"errors"
	"fmt"
	"net"

	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/domain"
	"github.com/haukened/rr-rpz/internal/dns/repos/bloom"
	"github.com/haukened/rr-rpz/internal/dns/repos/prefixtable"
)

// ErrEmptyTrigger is returned when a name trigger key is empty.
var ErrEmptyTrigger = errors.New("trigger name must not be empty")

// ZoneOptions configures a new Zone.
type ZoneOptions struct {
	// Name identifies the zone in policies and in discard sets. Empty means
	// unnamed; an unnamed zone can never be discarded.
	Name string
	// Domain is the zone origin, used only when dumping. Defaults to the root.
	Domain  string
	Serial  uint32
	Refresh uint32

	// Bloom, when set, puts a prefilter in front of both name tables.
	Bloom bloom.Factory
	// ExpectedNames sizes the prefilter; tables grow past it by rebuilding.
	ExpectedNames uint64
	FPRate        float64
}

// Zone is one policy source: five trigger tables sharing a name and origin.
//
// A Zone is built by a single loader. Once it is reachable from a published
// Engine it must not be modified; edit a Clone instead.
type Zone struct {
	name    string
	domain  string
	serial  uint32
	refresh uint32

	qpolName     *nameTable                 // QName
	propolName   *nameTable                 // NSDName
	qpolAddr     *prefixtable.Table[Policy] // ClientIP
	propolNSAddr *prefixtable.Table[Policy] // NSIP
	postpolAddr  *prefixtable.Table[Policy] // ResponseIP
}

// NewZone returns an empty zone.
func NewZone(opts ZoneOptions) *Zone {
	origin := utils.CanonicalDNSName(opts.Domain)
	if origin == "" {
		origin = "."
	}
	return &Zone{
		name:         opts.Name,
		domain:       origin,
		serial:       opts.Serial,
		refresh:      opts.Refresh,
		qpolName:     newNameTable(opts.Bloom, opts.ExpectedNames, opts.FPRate),
		propolName:   newNameTable(opts.Bloom, opts.ExpectedNames, opts.FPRate),
		qpolAddr:     prefixtable.New[Policy](),
		propolNSAddr: prefixtable.New[Policy](),
		postpolAddr:  prefixtable.New[Policy](),
	}
}

func (z *Zone) Name() string        { return z.name }
func (z *Zone) Domain() string      { return z.domain }
func (z *Zone) Serial() uint32      { return z.serial }
func (z *Zone) Refresh() uint32     { return z.refresh }
func (z *Zone) SetSerial(s uint32)  { z.serial = s }
func (z *Zone) SetRefresh(r uint32) { z.refresh = r }

// ZoneStats counts triggers per table.
type ZoneStats struct {
	QName      int
	NSDName    int
	ClientIP   int
	NSIP       int
	ResponseIP int
}

// Total is the number of triggers across all tables.
func (s ZoneStats) Total() int {
	return s.QName + s.NSDName + s.ClientIP + s.NSIP + s.ResponseIP
}

func (z *Zone) Stats() ZoneStats {
	return ZoneStats{
		QName:      z.qpolName.len(),
		NSDName:    z.propolName.len(),
		ClientIP:   z.qpolAddr.Len(),
		NSIP:       z.propolNSAddr.Len(),
		ResponseIP: z.postpolAddr.Len(),
	}
}

// Clone returns a deep copy of the tables so a published zone can be edited
// off to the side and republished.
func (z *Zone) Clone() *Zone {
	return &Zone{
		name:         z.name,
		domain:       z.domain,
		serial:       z.serial,
		refresh:      z.refresh,
		qpolName:     z.qpolName.clone(),
		propolName:   z.propolName.clone(),
		qpolAddr:     z.qpolAddr.Clone(),
		propolNSAddr: z.propolNSAddr.Clone(),
		postpolAddr:  z.postpolAddr.Clone(),
	}
}

func nameKey(name string) (string, error) {
	key := utils.CanonicalDNSName(name)
	if key == "" {
		return "", ErrEmptyTrigger
	}
	return key, nil
}

func (z *Zone) addName(t *nameTable, name string, pol Policy, typ domain.PolicyType) error {
	key, err := nameKey(name)
	if err != nil {
		return err
	}
	t.set(key, pol.stamped(z.name, typ))
	return nil
}

func (z *Zone) addAddr(t *prefixtable.Table[Policy], prefix *net.IPNet, pol Policy, typ domain.PolicyType) error {
	if err := t.Insert(prefix, pol.stamped(z.name, typ)); err != nil {
		return fmt.Errorf("add %s trigger: %w", typ, err)
	}
	return nil
}

// AddQNameTrigger stores pol for queries for name; a "*.suffix" name covers
// everything below suffix. An existing entry for name is replaced.
func (z *Zone) AddQNameTrigger(name string, pol Policy) error {
	return z.addName(z.qpolName, name, pol, domain.PolicyTypeQName)
}

// AddNSTrigger stores pol for name servers called name.
func (z *Zone) AddNSTrigger(name string, pol Policy) error {
	return z.addName(z.propolName, name, pol, domain.PolicyTypeNSDName)
}

// AddClientTrigger stores pol for clients inside prefix.
func (z *Zone) AddClientTrigger(prefix *net.IPNet, pol Policy) error {
	return z.addAddr(z.qpolAddr, prefix, pol, domain.PolicyTypeClientIP)
}

// AddResponseTrigger stores pol for answers carrying an address inside prefix.
func (z *Zone) AddResponseTrigger(prefix *net.IPNet, pol Policy) error {
	return z.addAddr(z.postpolAddr, prefix, pol, domain.PolicyTypeResponseIP)
}

// AddNSIPTrigger stores pol for name servers whose address is inside prefix.
func (z *Zone) AddNSIPTrigger(prefix *net.IPNet, pol Policy) error {
	return z.addAddr(z.propolNSAddr, prefix, pol, domain.PolicyTypeNSIP)
}

// The Rm*Trigger methods delete the entry for key if there is one and always
// report true. expected is accepted for symmetry with the Add methods but is
// not compared with the stored policy.

func (z *Zone) RmQNameTrigger(name string, expected Policy) bool {
	if key, err := nameKey(name); err == nil {
		z.qpolName.remove(key)
	}
	return true
}

func (z *Zone) RmNSTrigger(name string, expected Policy) bool {
	if key, err := nameKey(name); err == nil {
		z.propolName.remove(key)
	}
	return true
}

func (z *Zone) RmClientTrigger(prefix *net.IPNet, expected Policy) bool {
	z.qpolAddr.Delete(prefix)
	return true
}

func (z *Zone) RmResponseTrigger(prefix *net.IPNet, expected Policy) bool {
	z.postpolAddr.Delete(prefix)
	return true
}

func (z *Zone) RmNSIPTrigger(prefix *net.IPNet, expected Policy) bool {
	z.propolNSAddr.Delete(prefix)
	return true
}

// FindQNamePolicy matches qname exactly, then against wildcard triggers from
// the longest suffix to the shortest.
func (z *Zone) FindQNamePolicy(qname string) (Policy, bool) {
	return z.qpolName.find(utils.CanonicalDNSName(qname))
}

// FindNSPolicy is FindQNamePolicy over the name-server name triggers.
func (z *Zone) FindNSPolicy(nsName string) (Policy, bool) {
	return z.propolName.find(utils.CanonicalDNSName(nsName))
}

func (z *Zone) FindClientPolicy(addr net.IP) (Policy, bool) {
	return findAddr(z.qpolAddr, addr)
}

func (z *Zone) FindNSIPPolicy(addr net.IP) (Policy, bool) {
	return findAddr(z.propolNSAddr, addr)
}

func (z *Zone) FindResponsePolicy(addr net.IP) (Policy, bool) {
	return findAddr(z.postpolAddr, addr)
}

func findAddr(t *prefixtable.Table[Policy], addr net.IP) (Policy, bool) {
	if addr == nil || t.Len() == 0 {
		return Policy{}, false
	}
	_, p, ok := t.Lookup(addr)
	return p, ok
}
