package rpz

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-rpz/internal/dns/domain"
)

func TestNoPolicy(t *testing.T) {
	p := NoPolicy()
	assert.Equal(t, domain.PolicyNoAction, p.Kind())
	assert.Equal(t, domain.PolicyTypeNone, p.Type())
	assert.False(t, p.IsHit())
	assert.Empty(t, p.ZoneName())
	assert.Nil(t, p.Custom())
}

func TestNewPolicy_Errors(t *testing.T) {
	_, err := NewPolicy(domain.PolicyCustom, 60)
	assert.Error(t, err)

	_, err = NewPolicy(domain.PolicyKind(42), 60)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = NewCustomPolicy(nil, 60)
	assert.Error(t, err)

	_, err = NewCustomPolicy(&dns.A{}, 60)
	assert.Error(t, err, "header without a type")
}

func TestPolicy_Record_ActionNames(t *testing.T) {
	tests := []struct {
		kind   domain.PolicyKind
		target string
	}{
		{domain.PolicyNoAction, "rpz-passthru."},
		{domain.PolicyDrop, "rpz-drop."},
		{domain.PolicyTruncate, "rpz-tcp-only."},
		{domain.PolicyNXDOMAIN, "."},
		{domain.PolicyNODATA, "*."},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			rr := mustPolicy(t, tt.kind, 300).Record("bad.example.")
			cname, ok := rr.(*dns.CNAME)
			require.True(t, ok)
			assert.Equal(t, "bad.example.", cname.Hdr.Name)
			assert.Equal(t, dns.TypeCNAME, cname.Hdr.Rrtype)
			assert.Equal(t, uint16(dns.ClassINET), cname.Hdr.Class)
			assert.Equal(t, uint32(300), cname.Hdr.Ttl)
			assert.Equal(t, tt.target, cname.Target)
		})
	}
}

func TestPolicy_Record_UnknownKindPanics(t *testing.T) {
	p := Policy{kind: domain.PolicyKind(99)}
	assert.PanicsWithError(t, "unexpected policy kind: PolicyKind(99)", func() { p.Record("x.") })
}

func TestPolicy_CustomRecord_NonCustomPanics(t *testing.T) {
	p := mustPolicy(t, domain.PolicyDrop, 0)
	assert.Panics(t, func() { p.CustomRecord("x.") })

	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrNotCustom)
	}()
	p.CustomRecord("x.")
}

func TestPolicy_CustomRecord_RewritesOwnerClassTTL(t *testing.T) {
	p := mustCustom(t, "placeholder. 9 CH A 192.0.2.1", 120)

	rr := p.Record("blocked.example.")
	a, ok := rr.(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "blocked.example.", a.Hdr.Name)
	assert.Equal(t, uint16(dns.ClassINET), a.Hdr.Class)
	assert.Equal(t, uint32(120), a.Hdr.Ttl)
	assert.Equal(t, "192.0.2.1", a.A.String())
}

func TestPolicy_CustomRecord_WildcardCNAME(t *testing.T) {
	p := mustCustom(t, "x. 60 IN CNAME *.example.org.", 60)

	cname := p.CustomRecord("foo.bar.").(*dns.CNAME)
	assert.Equal(t, "foo.bar.example.org.", cname.Target)

	plain := mustCustom(t, "x. 60 IN CNAME walled.example.org.", 60)
	assert.Equal(t, "walled.example.org.", plain.CustomRecord("foo.bar.").(*dns.CNAME).Target)
}

func TestPolicy_CustomRecord_DoesNotMutateStoredRecord(t *testing.T) {
	p := mustCustom(t, "x. 60 IN CNAME *.example.org.", 60)
	p.CustomRecord("first.")
	second := p.CustomRecord("second.").(*dns.CNAME)
	assert.Equal(t, "second.example.org.", second.Target)

	c := p.Custom().(*dns.CNAME)
	c.Target = "mutated."
	assert.Equal(t, "*.example.org.", p.Custom().(*dns.CNAME).Target)
}

func TestPolicy_String(t *testing.T) {
	p := mustCustom(t, "x. 60 IN TXT \"blocked\"", 60).stamped("corp", domain.PolicyTypeQName)
	assert.Equal(t, "kind=custom type=qname ttl=60 zone=corp custom=TXT", p.String())
}
