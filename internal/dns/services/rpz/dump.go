package rpz

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/haukened/rr-rpz/internal/dns/common/rpzname"
	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/domain"
)

// Fixed SOA fields written by Dump; only serial and refresh come from the zone.
const (
	dumpSOAMname   = "fake.RPZ."
	dumpSOAMbox    = "hostmaster.fake.RPZ."
	dumpSOARetry   = 600
	dumpSOAExpire  = 3600000
	dumpSOAMinimum = 604800
)

// Dump writes the zone in RPZ zone-file form: a synthetic SOA line, then one
// "<owner> <ttl> IN <type> <rdata>" line per trigger, tables in the order
// qname, nsdname, client-ip, nsip, response-ip and keys sorted within each.
func (z *Zone) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)

	soa := &dns.SOA{
		Hdr:     dns.RR_Header{Name: z.domain, Rrtype: dns.TypeSOA, Class: dns.ClassINET},
		Ns:      dumpSOAMname,
		Mbox:    dumpSOAMbox,
		Serial:  z.serial,
		Refresh: z.refresh,
		Retry:   dumpSOARetry,
		Expire:  dumpSOAExpire,
		Minttl:  dumpSOAMinimum,
	}
	fmt.Fprintf(bw, "%s IN SOA %s\n", z.domain, rdata(soa))

	for _, key := range z.qpolName.sortedKeys() {
		writePolicy(bw, utils.JoinNames(key, z.domain), z.qpolName.entries[key])
	}

	nsdOrigin := utils.JoinNames(domain.NSDNameLabel+".", z.domain)
	for _, key := range z.propolName.sortedKeys() {
		writePolicy(bw, utils.JoinNames(key, nsdOrigin), z.propolName.entries[key])
	}

	z.dumpAddrs(bw, z.qpolAddr.Walk, domain.ClientIPLabel)
	z.dumpAddrs(bw, z.propolNSAddr.Walk, domain.NSIPLabel)
	z.dumpAddrs(bw, z.postpolAddr.Walk, domain.ResponseIPLabel)

	return bw.Flush()
}

func (z *Zone) dumpAddrs(w io.Writer, walk func(func(*net.IPNet, Policy) bool), label string) {
	origin := utils.JoinNames(label+".", z.domain)
	walk(func(prefix *net.IPNet, pol Policy) bool {
		writePolicy(w, rpzname.FromPrefix(prefix)+"."+origin, pol)
		return true
	})
}

func writePolicy(w io.Writer, owner string, pol Policy) {
	rr := pol.Record(owner)
	hdr := rr.Header()
	fmt.Fprintf(w, "%s %d IN %s %s\n", hdr.Name, hdr.Ttl, dns.Type(hdr.Rrtype), rdata(rr))
}

// rdata is the presentation form of rr without its header.
func rdata(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
