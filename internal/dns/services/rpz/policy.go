// Package rpz is the response policy engine: zones of triggers, the ordered
// engine that consults them, and the conversion of a matched policy into the
// DNS record a resolver answers with.
package rpz

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"

	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/domain"
)

var (
	// ErrNotCustom is the panic value when a custom record is requested from
	// a policy of another kind.
	ErrNotCustom = errors.New("custom record requested from a non-custom policy")
	// ErrUnknownKind is the panic value when a policy kind has no record form.
	ErrUnknownKind = errors.New("unexpected policy kind")
)

// Policy is the decision attached to a trigger. Values are immutable: the zone
// and trigger type are stamped when the policy is added to a Zone and cannot be
// set by callers.
type Policy struct {
	kind   domain.PolicyKind
	ptype  domain.PolicyType
	zone   string
	ttl    int32
	custom dns.RR
}

// NoPolicy is the neutral result returned when nothing matches.
func NoPolicy() Policy {
	return Policy{kind: domain.PolicyNoAction, ptype: domain.PolicyTypeNone}
}

// NewPolicy builds a draft policy for any kind except Custom.
func NewPolicy(kind domain.PolicyKind, ttl int32) (Policy, error) {
	if !kind.IsValid() {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if kind == domain.PolicyCustom {
		return Policy{}, errors.New("custom policies need a record, use NewCustomPolicy")
	}
	return Policy{kind: kind, ttl: ttl}, nil
}

// NewCustomPolicy builds a draft Custom policy answering with a copy of rr.
// Only the record data matters; the owner, class and TTL of rr are replaced
// when the record is materialized.
func NewCustomPolicy(rr dns.RR, ttl int32) (Policy, error) {
	if rr == nil {
		return Policy{}, errors.New("custom policy record must not be nil")
	}
	if rr.Header().Rrtype == dns.TypeNone {
		return Policy{}, errors.New("custom policy record has no type in its header")
	}
	return Policy{kind: domain.PolicyCustom, ttl: ttl, custom: dns.Copy(rr)}, nil
}

func (p Policy) Kind() domain.PolicyKind { return p.kind }
func (p Policy) Type() domain.PolicyType { return p.ptype }
func (p Policy) TTL() int32              { return p.ttl }

// ZoneName is the name of the zone the policy came from; empty when the zone
// is unnamed or the policy is the neutral one.
func (p Policy) ZoneName() string { return p.zone }

// IsHit reports whether p came from a trigger rather than being NoPolicy.
func (p Policy) IsHit() bool { return p.ptype != domain.PolicyTypeNone }

// Custom returns a copy of the custom record data, or nil for other kinds.
func (p Policy) Custom() dns.RR {
	if p.custom == nil {
		return nil
	}
	return dns.Copy(p.custom)
}

func (p Policy) stamped(zone string, t domain.PolicyType) Policy {
	p.zone = zone
	p.ptype = t
	return p
}

func (p Policy) String() string {
	s := fmt.Sprintf("kind=%s type=%s ttl=%d", p.kind, p.ptype, p.ttl)
	if p.zone != "" {
		s += " zone=" + p.zone
	}
	if p.custom != nil {
		s += " custom=" + dns.TypeToString[p.custom.Header().Rrtype]
	}
	return s
}

// CustomRecord materializes the custom record at owner qname. A CNAME whose
// target starts with a wildcard label gets qname in place of that label, so
// "*.walled.example." answers foo.bar. with foo.bar.walled.example.
//
// It panics with ErrNotCustom when p is not a Custom policy.
func (p Policy) CustomRecord(qname string) dns.RR {
	if p.kind != domain.PolicyCustom || p.custom == nil {
		panic(fmt.Errorf("%w: kind %s", ErrNotCustom, p.kind))
	}

	rr := dns.Copy(p.custom)
	hdr := rr.Header()
	hdr.Name = qname
	hdr.Class = dns.ClassINET
	hdr.Ttl = uint32(p.ttl)
	hdr.Rdlength = 0

	if cname, ok := rr.(*dns.CNAME); ok && utils.IsWildcard(cname.Target) {
		rest, _ := utils.ChopOff(cname.Target)
		cname.Target = utils.JoinNames(qname, rest)
	}
	return rr
}

// Record materializes p as the record served at qname. Non-custom kinds become
// a CNAME to the action name (rpz-passthru., rpz-drop., rpz-tcp-only., the
// root for NXDOMAIN, the wildcard root for NODATA).
//
// It panics with ErrUnknownKind for a kind outside the defined set.
func (p Policy) Record(qname string) dns.RR {
	if p.kind == domain.PolicyCustom {
		return p.CustomRecord(qname)
	}
	target, ok := domain.ActionName(p.kind)
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnknownKind, p.kind))
	}
	return &dns.CNAME{
		Hdr: dns.RR_Header{
			Name:   qname,
			Rrtype: dns.TypeCNAME,
			Class:  dns.ClassINET,
			Ttl:    uint32(p.ttl),
		},
		Target: target,
	}
}
