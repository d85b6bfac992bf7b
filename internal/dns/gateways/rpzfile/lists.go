package rpzfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/miekg/dns"

	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/domain"
	"github.com/haukened/rr-rpz/internal/dns/services/rpz"
)

// Source formats accepted by LoadFile through Options.Format.
const (
	FormatZone  = "rpz"
	FormatPlain = "plain"
	FormatHosts = "hosts"
)

const defaultListTTL = 3600

// ErrListAction is returned when a list is loaded with a Custom action.
var ErrListAction = errors.New("domain lists need a non-custom action")

// LoadList builds a zone of QName triggers from a domain list. Every name gets
// opts.Action.
//
// plain: one name per line. A leading "*." or "." marks a suffix entry, which
// covers the name itself and everything below it.
//
// hosts: /etc/hosts lines. The address is ignored and every following
// hostname becomes an exact trigger; wildcard and leading-dot tokens are
// skipped.
//
// Both formats skip blank lines and '#' comments, whole-line or inline.
// Invalid names are skipped with a debug log rather than failing the load.
func LoadList(r io.Reader, origin, format string, opts Options) (*rpz.Zone, error) {
	if opts.Action == domain.PolicyCustom || !opts.Action.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrListAction, opts.Action)
	}
	ttl := opts.TTLOverride
	if ttl <= 0 {
		ttl = int32(opts.DefaultTTL)
	}
	if ttl <= 0 {
		ttl = defaultListTTL
	}
	pol, err := rpz.NewPolicy(opts.Action, ttl)
	if err != nil {
		return nil, err
	}

	var parse func(line string) []string
	switch format {
	case FormatPlain:
		parse = plainNames
	case FormatHosts:
		parse = hostsNames
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	b := newBuilder(origin, opts)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripComment(strings.TrimPrefix(scanner.Text(), "\uFEFF"))
		if line == "" {
			continue
		}
		names := parse(line)
		if len(names) == 0 {
			b.logger.Debug(map[string]any{"line": lineNum, "raw": line}, "skipping list entry")
			continue
		}
		for _, name := range names {
			if err := b.zone.AddQNameTrigger(name, pol); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s list: %w", format, err)
	}
	return b.finish(format), nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// plainNames returns the trigger names for one plain-list entry.
func plainNames(entry string) []string {
	fields := strings.Fields(entry)
	if len(fields) != 1 {
		return nil
	}
	raw := fields[0]
	suffix := strings.HasPrefix(raw, "*.") || strings.HasPrefix(raw, ".")
	if suffix {
		raw = strings.TrimPrefix(strings.TrimPrefix(raw, "*"), ".")
	}

	name := utils.CanonicalDNSName(raw)
	if !listName(name) {
		return nil
	}
	if suffix {
		return []string{name, utils.JoinNames(utils.Wildcard, name)}
	}
	return []string{name}
}

// hostsNames returns the hostnames on one hosts-file line.
func hostsNames(line string) []string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}
	var out []string
	for _, raw := range fields[1:] {
		if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
			continue
		}
		if name := utils.CanonicalDNSName(raw); listName(name) {
			out = append(out, name)
		}
	}
	return out
}

// listName accepts valid names of at least two labels, which keeps single
// labels such as "localhost" out of lists.
func listName(name string) bool {
	if _, ok := dns.IsDomainName(name); !ok {
		return false
	}
	if strings.Contains(name, "*") || strings.Contains(name, "@") {
		return false
	}
	return dns.CountLabel(name) >= 2
}

func loadListFile(path, origin string, opts Options) (*rpz.Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list file: %w", err)
	}
	defer f.Close()
	return LoadList(f, origin, opts.Format, opts)
}
