package rpz

import (
	"net"
	"strconv"

	"github.com/miekg/dns"

	"github.com/haukened/rr-rpz/internal/dns/common/log"
	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/infra/metrics"
)

// Filter is the entry point a resolver calls at each stage of a query. It
// reads the engine currently held by its Publisher, caches query-stage
// decisions and records metrics.
type Filter struct {
	publisher *Publisher
	cache     DecisionCache
	logger    log.Logger
}

type FilterOptions struct {
	Publisher *Publisher
	// Cache is optional; nil disables decision caching.
	Cache  DecisionCache
	Logger log.Logger
}

func NewFilter(opts FilterOptions) *Filter {
	f := &Filter{
		publisher: opts.Publisher,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}
	if f.publisher == nil {
		f.publisher = NewPublisher(nil)
	}
	if f.logger == nil {
		f.logger = log.NewNoopLogger()
	}
	return f
}

// Engine returns the engine currently in use.
func (f *Filter) Engine() *Engine {
	return f.publisher.Load()
}

// Publish swaps in e and drops every cached decision.
func (f *Filter) Publish(e *Engine) {
	gen := f.publisher.Publish(e)
	f.afterPublish(gen)
}

// ReplaceZone publishes a copy of the current engine with z at index.
func (f *Filter) ReplaceZone(index int, z *Zone) error {
	gen, err := f.publisher.ReplaceZone(index, z)
	if err != nil {
		return err
	}
	f.afterPublish(gen)
	return nil
}

func (f *Filter) afterPublish(gen uint64) {
	if f.cache != nil {
		f.cache.Purge()
	}
	metrics.Publishes.Inc()

	e := f.publisher.Load()
	for _, z := range e.Zones() {
		s := z.Stats()
		metrics.ZoneTriggers.WithLabelValues(z.Name(), "qname").Set(float64(s.QName))
		metrics.ZoneTriggers.WithLabelValues(z.Name(), "nsdname").Set(float64(s.NSDName))
		metrics.ZoneTriggers.WithLabelValues(z.Name(), "client-ip").Set(float64(s.ClientIP))
		metrics.ZoneTriggers.WithLabelValues(z.Name(), "nsip").Set(float64(s.NSIP))
		metrics.ZoneTriggers.WithLabelValues(z.Name(), "response-ip").Set(float64(s.ResponseIP))
	}
	f.logger.Info(map[string]any{
		"generation": gen,
		"zones":      len(e.Zones()),
	}, "policy engine published")
}

// QueryPolicy is the query-stage lookup: QName and ClientIP triggers.
func (f *Filter) QueryPolicy(qname string, client net.IP, discarded Discarded) Policy {
	metrics.PolicyLookups.WithLabelValues("query").Inc()
	snap := f.publisher.snapshot()

	if f.cache == nil {
		return f.observe(snap.engine.GetQueryPolicy(qname, client, discarded), qname)
	}

	key := cacheKey(snap.gen, qname, client, discarded)
	if p, ok := f.cache.Get(key); ok {
		metrics.CacheOperations.WithLabelValues("hit").Inc()
		return f.observe(p, qname)
	}
	metrics.CacheOperations.WithLabelValues("miss").Inc()

	p := snap.engine.GetQueryPolicy(qname, client, discarded)
	f.cache.Put(key, p)
	return f.observe(p, qname)
}

// NSNamePolicy checks a name server name against NSDName triggers.
func (f *Filter) NSNamePolicy(nsName string, discarded Discarded) Policy {
	metrics.PolicyLookups.WithLabelValues("nsdname").Inc()
	return f.observe(f.publisher.Load().GetProcessingPolicy(nsName, discarded), nsName)
}

// NSIPPolicy checks a name server address against NSIP triggers.
func (f *Filter) NSIPPolicy(nsAddr net.IP, discarded Discarded) Policy {
	metrics.PolicyLookups.WithLabelValues("nsip").Inc()
	p := f.publisher.Load().GetProcessingPolicyAddr(nsAddr, discarded)
	if !p.IsHit() {
		return p
	}
	return f.observe(p, nsAddr.String())
}

// PostPolicy checks the answer records against ResponseIP triggers.
func (f *Filter) PostPolicy(answers []dns.RR, discarded Discarded) Policy {
	metrics.PolicyLookups.WithLabelValues("response").Inc()
	return f.observe(f.publisher.Load().GetPostPolicy(answers, discarded), "")
}

func (f *Filter) observe(p Policy, subject string) Policy {
	if !p.IsHit() {
		return p
	}
	metrics.PolicyHits.WithLabelValues(p.ZoneName(), p.Type().String(), p.Kind().String()).Inc()
	f.logger.Debug(map[string]any{
		"subject": subject,
		"zone":    p.ZoneName(),
		"type":    p.Type().String(),
		"kind":    p.Kind().String(),
	}, "policy matched")
	return p
}

// cacheKey is unique per engine generation so a decision computed against a
// replaced engine can never be served after a publish.
func cacheKey(gen uint64, qname string, client net.IP, discarded Discarded) string {
	c := ""
	if client != nil {
		c = client.String()
	}
	return strconv.FormatUint(gen, 10) + "|" + utils.CanonicalDNSName(qname) + "|" + c + "|" + discarded.Key()
}
