package prefixtable

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cidr(t *testing.T, s string) *net.IPNet {
	t.Helper()
	_, n, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return n
}

func TestTable_LongestPrefixMatch(t *testing.T) {
	tbl := New[string]()
	require.NoError(t, tbl.Insert(cidr(t, "10.0.0.0/8"), "wide"))
	require.NoError(t, tbl.Insert(cidr(t, "10.1.0.0/16"), "narrow"))
	require.NoError(t, tbl.Insert(cidr(t, "2001:db8::/32"), "v6"))

	route, v, ok := tbl.Lookup(net.ParseIP("10.1.2.3"))
	require.True(t, ok)
	assert.Equal(t, "narrow", v)
	assert.Equal(t, "10.1.0.0/16", route.String())

	_, v, ok = tbl.Lookup(net.ParseIP("10.200.0.1"))
	require.True(t, ok)
	assert.Equal(t, "wide", v)

	_, v, ok = tbl.Lookup(net.ParseIP("2001:db8::53"))
	require.True(t, ok)
	assert.Equal(t, "v6", v)

	_, _, ok = tbl.Lookup(net.ParseIP("192.0.2.1"))
	assert.False(t, ok)
	_, _, ok = tbl.Lookup(nil)
	assert.False(t, ok)
}

func TestTable_FamiliesDoNotMix(t *testing.T) {
	tbl := New[string]()
	require.NoError(t, tbl.Insert(cidr(t, "::/0"), "any6"))

	_, _, ok := tbl.Lookup(net.ParseIP("10.0.0.1"))
	assert.False(t, ok, "an IPv6 default route must not cover IPv4 addresses")
}

func TestTable_InsertOverwrites(t *testing.T) {
	tbl := New[int]()
	p := cidr(t, "192.0.2.0/24")
	require.NoError(t, tbl.Insert(p, 1))
	require.NoError(t, tbl.Insert(p, 2))

	assert.Equal(t, 1, tbl.Len())
	v, ok := tbl.Get(p)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTable_InsertClearsHostBits(t *testing.T) {
	tbl := New[int]()
	p := &net.IPNet{IP: net.ParseIP("192.0.2.77"), Mask: net.CIDRMask(24, 32)}
	require.NoError(t, tbl.Insert(p, 7))

	v, ok := tbl.Get(cidr(t, "192.0.2.0/24"))
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestTable_Delete(t *testing.T) {
	tbl := New[int]()
	p := cidr(t, "10.0.0.0/8")
	require.NoError(t, tbl.Insert(p, 1))

	assert.True(t, tbl.Delete(p))
	assert.False(t, tbl.Delete(p))
	assert.Equal(t, 0, tbl.Len())
	_, _, ok := tbl.Lookup(net.ParseIP("10.0.0.1"))
	assert.False(t, ok)
}

func TestTable_InvalidPrefix(t *testing.T) {
	tbl := New[int]()
	err := tbl.Insert(nil, 1)
	assert.True(t, errors.Is(err, ErrInvalidPrefix))

	bad := &net.IPNet{IP: net.ParseIP("10.0.0.0"), Mask: net.IPMask{0xff, 0x00, 0xff, 0x00}}
	assert.Error(t, tbl.Insert(bad, 1))
	assert.False(t, tbl.Delete(nil))
}

func TestTable_WalkAndClone(t *testing.T) {
	tbl := New[string]()
	for _, s := range []string{"10.0.0.0/8", "192.0.2.0/24", "2001:db8::/32"} {
		require.NoError(t, tbl.Insert(cidr(t, s), s))
	}

	var seen []string
	tbl.Walk(func(p *net.IPNet, v string) bool {
		assert.Equal(t, v, p.String())
		seen = append(seen, v)
		return true
	})
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.0/24", "2001:db8::/32"}, seen)

	cp := tbl.Clone()
	assert.True(t, cp.Delete(cidr(t, "10.0.0.0/8")))
	assert.Equal(t, 3, tbl.Len(), "clone must not share storage")
	assert.Equal(t, 2, cp.Len())

	count := 0
	tbl.Walk(func(*net.IPNet, string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
