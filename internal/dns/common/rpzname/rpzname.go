// Package rpzname converts network prefixes to and from the label form RPZ
// uses for address triggers: the prefix length first, then the address
// labels in reverse order, so "10.0.0.0/8" becomes "8.0.0.0.10".
package rpzname

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ElidedLabel stands for a group removed by "::" compression.
const ElidedLabel = "zz"

// ErrInvalidName is returned when a name does not encode a prefix.
var ErrInvalidName = errors.New("invalid rpz address name")

// FromPrefix encodes a canonical prefix as a relative name (no trailing dot).
//
// IPv4 octets are written last-to-first. An IPv4-mapped IPv6 prefix of /96
// or longer is written as the IPv4 prefix it covers. IPv6 groups of the
// compressed text form are prepended one at a time; each empty group becomes
// "zz", which gives a leading "::" two such labels.
func FromPrefix(prefix *net.IPNet) string {
	bits, size := prefix.Mask.Size()
	ip := prefix.IP.Mask(prefix.Mask)

	v4 := ip.To4()
	if v4 != nil && size == 128 && bits >= 96 {
		bits -= 96
		size = 32
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(bits))

	if v4 != nil && size == 32 {
		for i := net.IPv4len - 1; i >= 0; i-- {
			b.WriteByte('.')
			b.WriteString(strconv.Itoa(int(v4[i])))
		}
		return b.String()
	}

	for _, label := range reversedGroups(ip.String()) {
		b.WriteByte('.')
		b.WriteString(label)
	}
	return b.String()
}

// reversedGroups splits the text form on ':' and reverses the groups. A
// trailing separator does not produce a label.
func reversedGroups(s string) []string {
	var labels []string
	for begin := 0; begin < len(s); {
		end := strings.IndexByte(s[begin:], ':')
		sub := s[begin:]
		if end >= 0 {
			sub = s[begin : begin+end]
		}
		if sub == "" {
			sub = ElidedLabel
		}
		labels = append(labels, sub)
		if end < 0 {
			break
		}
		begin += end + 1
	}
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels
}

// ToPrefix decodes a relative name produced by FromPrefix, or written by hand
// in a policy zone, back into a prefix. A trailing dot is tolerated.
// Host bits must be zero.
func ToPrefix(name string) (*net.IPNet, error) {
	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	if len(labels) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	bits, err := strconv.Atoi(labels[0])
	if err != nil || bits < 0 {
		return nil, fmt.Errorf("%w: bad prefix length in %q", ErrInvalidName, name)
	}
	addr := labels[1:]

	var ip net.IP
	var maxBits int
	if len(addr) == net.IPv4len && !containsLabel(addr, ElidedLabel) && allDecimal(addr) {
		ip, maxBits = parseV4(addr), 32
	} else {
		ip, maxBits = parseV6(addr), 128
	}
	if ip == nil || bits > maxBits {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	mask := net.CIDRMask(bits, maxBits)
	if !ip.Mask(mask).Equal(ip) {
		return nil, fmt.Errorf("%w: host bits set in %q", ErrInvalidName, name)
	}
	return &net.IPNet{IP: ip, Mask: mask}, nil
}

func parseV4(labels []string) net.IP {
	var b [net.IPv4len]byte
	for i, l := range labels {
		n, err := strconv.ParseUint(l, 10, 8)
		if err != nil {
			return nil
		}
		b[net.IPv4len-1-i] = byte(n)
	}
	return net.IPv4(b[0], b[1], b[2], b[3]).To4()
}

func parseV6(labels []string) net.IP {
	groups := make([]string, len(labels))
	for i, l := range labels {
		groups[len(labels)-1-i] = l
	}

	var text string
	if i := indexLabel(groups, ElidedLabel); i >= 0 {
		var right []string
		for _, g := range groups[i+1:] {
			if !strings.EqualFold(g, ElidedLabel) {
				right = append(right, g)
			}
		}
		text = strings.Join(groups[:i], ":") + "::" + strings.Join(right, ":")
	} else {
		text = strings.Join(groups, ":")
	}

	ip := net.ParseIP(text)
	if ip == nil || strings.Contains(text, ".") {
		return nil
	}
	return ip.To16()
}

func containsLabel(labels []string, l string) bool {
	return indexLabel(labels, l) >= 0
}

func indexLabel(labels []string, l string) int {
	for i, s := range labels {
		if strings.EqualFold(s, l) {
			return i
		}
	}
	return -1
}

func allDecimal(labels []string) bool {
	for _, l := range labels {
		if _, err := strconv.ParseUint(l, 10, 8); err != nil {
			return false
		}
	}
	return true
}
