package rpz

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-rpz/internal/dns/domain"
)

// recordingLogger keeps messages for assertions.
type recordingLogger struct {
	infos    []string
	debugs   []string
	subjects []any
}

func (l *recordingLogger) Info(_ map[string]any, msg string) { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Error(map[string]any, string)      {}
func (l *recordingLogger) Debug(f map[string]any, msg string) {
	l.debugs = append(l.debugs, msg)
	l.subjects = append(l.subjects, f["subject"])
}
func (l *recordingLogger) Warn(map[string]any, string)  {}
func (l *recordingLogger) Panic(map[string]any, string) {}
func (l *recordingLogger) Fatal(map[string]any, string) {}

func mustPolicy(t *testing.T, kind domain.PolicyKind, ttl int32) Policy {
	t.Helper()
	p, err := NewPolicy(kind, ttl)
	require.NoError(t, err)
	return p
}

func mustCustom(t *testing.T, s string, ttl int32) Policy {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	p, err := NewCustomPolicy(rr, ttl)
	require.NoError(t, err)
	return p
}

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	_, n, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return n
}

func newTestZone(name string) *Zone {
	return NewZone(ZoneOptions{Name: name, Domain: "rpz.test."})
}
