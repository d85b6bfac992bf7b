// Package rpzfile reads policy zones from disk: RFC 1035 master files in the
// RPZ layout, and the structured YAML/JSON/TOML zone documents. Both feed the
// same record classifier and produce an *rpz.Zone ready to publish.
package rpzfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"github.com/haukened/rr-rpz/internal/dns/common/log"
	"github.com/haukened/rr-rpz/internal/dns/common/rpzname"
	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/domain"
	"github.com/haukened/rr-rpz/internal/dns/repos/bloom"
	"github.com/haukened/rr-rpz/internal/dns/services/rpz"
)

var (
	// ErrUnsupportedTrigger is returned for an owner name that cannot be
	// turned into a trigger, such as an address label that encodes no prefix.
	ErrUnsupportedTrigger = errors.New("unsupported trigger")
	// ErrOutOfZone is returned for a record whose owner is not below the origin.
	ErrOutOfZone = errors.New("record outside zone origin")
)

// Options controls how records become triggers.
type Options struct {
	// Name is stamped on every policy; empty leaves the zone unnamed.
	Name string
	// TTLOverride, when positive, replaces the TTL of every record.
	TTLOverride int32
	// DefaultTTL applies to structured documents and lists that give no ttl.
	DefaultTTL uint32

	// Format is FormatZone (the default), FormatPlain or FormatHosts.
	Format string
	// Action is the policy given to every name of a plain or hosts list.
	Action domain.PolicyKind

	Bloom         bloom.Factory
	ExpectedNames uint64
	FPRate        float64

	Logger log.Logger
}

func (o Options) logger() log.Logger {
	if o.Logger == nil {
		return log.NewNoopLogger()
	}
	return o.Logger
}

// builder classifies records under origin and adds them to zone.
type builder struct {
	zone   *rpz.Zone
	origin string
	opts   Options
	logger log.Logger
	seen   map[string]struct{}
}

func newBuilder(origin string, opts Options) *builder {
	origin = utils.CanonicalDNSName(origin)
	if origin == "" {
		origin = "."
	}
	return &builder{
		zone: rpz.NewZone(rpz.ZoneOptions{
			Name:          opts.Name,
			Domain:        origin,
			Bloom:         opts.Bloom,
			ExpectedNames: opts.ExpectedNames,
			FPRate:        opts.FPRate,
		}),
		origin: origin,
		opts:   opts,
		logger: log.With(opts.logger(), map[string]any{"zone": opts.Name, "origin": origin}),
		seen:   make(map[string]struct{}),
	}
}

// add turns one record into a trigger. The apex SOA sets serial and refresh;
// other apex records are ignored.
func (b *builder) add(rr dns.RR) error {
	hdr := rr.Header()
	rel, ok := utils.TrimOrigin(hdr.Name, b.origin)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutOfZone, hdr.Name)
	}

	if rel == "@" {
		if soa, isSOA := rr.(*dns.SOA); isSOA {
			b.zone.SetSerial(soa.Serial)
			b.zone.SetRefresh(soa.Refresh)
		}
		return nil
	}

	pol, err := b.policy(rr)
	if err != nil {
		return fmt.Errorf("%s: %w", hdr.Name, err)
	}

	key := strings.ToLower(rel)
	if _, dup := b.seen[key]; dup {
		b.logger.Warn(map[string]any{"owner": hdr.Name}, "duplicate trigger, last record wins")
	}
	b.seen[key] = struct{}{}

	if err := b.trigger(rel, pol); err != nil {
		return fmt.Errorf("%s: %w", hdr.Name, err)
	}
	return nil
}

// policy decodes the action carried by rr.
func (b *builder) policy(rr dns.RR) (rpz.Policy, error) {
	ttl := int32(rr.Header().Ttl)
	if b.opts.TTLOverride > 0 {
		ttl = b.opts.TTLOverride
	}

	if cname, ok := rr.(*dns.CNAME); ok {
		kind := domain.KindForAction(utils.CanonicalDNSName(cname.Target))
		if kind != domain.PolicyCustom {
			return rpz.NewPolicy(kind, ttl)
		}
	}
	return rpz.NewCustomPolicy(rr, ttl)
}

// trigger picks the table from the last label of rel, the owner relative to
// the origin.
func (b *builder) trigger(rel string, pol rpz.Policy) error {
	labels := dns.SplitDomainName(rel)
	last := strings.ToLower(labels[len(labels)-1])
	key := strings.Join(labels[:len(labels)-1], ".")

	switch last {
	case domain.ClientIPLabel, domain.ResponseIPLabel, domain.NSIPLabel:
		prefix, err := rpzname.ToPrefix(key)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrUnsupportedTrigger, last, err)
		}
		switch last {
		case domain.ClientIPLabel:
			return b.zone.AddClientTrigger(prefix, pol)
		case domain.ResponseIPLabel:
			return b.zone.AddResponseTrigger(prefix, pol)
		default:
			return b.zone.AddNSIPTrigger(prefix, pol)
		}
	case domain.NSDNameLabel:
		if key == "" {
			return fmt.Errorf("%w: empty %s owner", ErrUnsupportedTrigger, last)
		}
		return b.zone.AddNSTrigger(key, pol)
	default:
		return b.zone.AddQNameTrigger(rel, pol)
	}
}

func (b *builder) finish(source string) *rpz.Zone {
	s := b.zone.Stats()
	b.logger.Info(map[string]any{
		"source":      source,
		"serial":      b.zone.Serial(),
		"qname":       s.QName,
		"nsdname":     s.NSDName,
		"client_ip":   s.ClientIP,
		"nsip":        s.NSIP,
		"response_ip": s.ResponseIP,
	}, "policy zone loaded")
	return b.zone
}
