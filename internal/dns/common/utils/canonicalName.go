package utils

import (
	"strings"

	"github.com/miekg/dns"
)

// Wildcard is the leading label that turns a name into a suffix trigger.
const Wildcard = "*."

// CanonicalDNSName returns a DNS name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - Fully qualified (trailing dot), since trigger keys and zone origins are absolute.
//
// Empty input stays empty so callers can reject it.
func CanonicalDNSName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return dns.CanonicalName(name)
}

// ChopOff removes the leftmost label of an absolute name. It reports false
// when name is already the root.
func ChopOff(name string) (string, bool) {
	if name == "." || name == "" {
		return name, false
	}
	off, end := dns.NextLabel(name, 0)
	if end {
		return ".", true
	}
	return name[off:], true
}

// JoinNames concatenates two absolute names, treating the root as empty.
// JoinNames("www.example.com.", "rpz.local.") == "www.example.com.rpz.local."
func JoinNames(prefix, suffix string) string {
	switch {
	case prefix == "." || prefix == "":
		return suffix
	case suffix == "." || suffix == "":
		return prefix
	}
	return prefix + suffix
}

// IsWildcard reports whether the first label of name is "*".
func IsWildcard(name string) bool {
	return name == "*" || strings.HasPrefix(name, Wildcard)
}

// TrimOrigin returns name relative to origin without the separating dot, and
// false if name is not inside origin. The origin itself yields "@".
func TrimOrigin(name, origin string) (string, bool) {
	if !dns.IsSubDomain(origin, name) {
		return "", false
	}
	if len(name) == len(origin) {
		return "@", true
	}
	if origin == "." {
		return strings.TrimSuffix(name, "."), true
	}
	return name[:len(name)-len(origin)-1], true
}
