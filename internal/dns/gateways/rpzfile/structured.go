package rpzfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/miekg/dns"

	"github.com/haukened/rr-rpz/internal/dns/services/rpz"
)

// Top-level keys of a structured document that are not owner names.
const (
	keyZoneRoot = "zone_root"
	keySerial   = "serial"
	keyRefresh  = "refresh"
	keyTTL      = "ttl"
)

const defaultStructuredTTL = 3600

// ErrUnsupportedFormat is returned for a structured file with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported zone file format")

// LoadStructured reads a YAML, JSON or TOML zone document. Each top-level key
// other than zone_root, serial, refresh and ttl is an owner name relative to
// the origin, mapping record types to one value or a list of values:
//
//	zone_root: rpz.example.
//	serial: 7
//	bad.example:
//	  CNAME: "."
//	24.0.2.0.192.rpz-client-ip:
//	  CNAME: rpz-drop.
//
// origin wins over zone_root when both are set.
func LoadStructured(path, origin string, opts Options) (*rpz.Zone, error) {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	// Owner names contain dots, so the key path delimiter must not be one.
	k := koanf.New("/")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load zone file %s: %w", path, err)
	}

	if origin == "" {
		origin = k.String(keyZoneRoot)
	}
	if origin == "" {
		return nil, fmt.Errorf("zone file %s missing '%s'", path, keyZoneRoot)
	}

	b := newBuilder(origin, opts)
	b.zone.SetSerial(uint32(k.Int64(keySerial)))
	b.zone.SetRefresh(uint32(k.Int64(keyRefresh)))

	ttl := opts.DefaultTTL
	if k.Exists(keyTTL) {
		ttl = uint32(k.Int64(keyTTL))
	}
	if ttl == 0 {
		ttl = defaultStructuredTTL
	}

	raw := k.Raw()
	owners := make([]string, 0, len(raw))
	for name := range raw {
		switch name {
		case keyZoneRoot, keySerial, keyRefresh, keyTTL:
			continue
		}
		owners = append(owners, name)
	}
	sort.Strings(owners)

	for _, name := range owners {
		rrsets, ok := raw[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("zone file %s: owner %q must map record types to values", path, name)
		}
		fqdn := expandName(name, b.origin)

		types := make([]string, 0, len(rrsets))
		for t := range rrsets {
			types = append(types, t)
		}
		sort.Strings(types)

		for _, rrType := range types {
			for _, value := range normalize(rrsets[rrType]) {
				rr, err := dns.NewRR(fmt.Sprintf("%s %d IN %s %s", fqdn, ttl, rrType, value))
				if err != nil {
					return nil, fmt.Errorf("invalid record in %s: %w", path, err)
				}
				if rr == nil {
					continue
				}
				if err := b.add(rr); err != nil {
					return nil, fmt.Errorf("zone file %s: %w", path, err)
				}
			}
		}
	}
	return b.finish(path), nil
}

// expandName returns the fully qualified name for an owner, expanding '@' to
// the origin and appending the origin to relative names.
func expandName(label, origin string) string {
	if label == "@" {
		return origin
	}
	if strings.HasSuffix(label, ".") {
		return label
	}
	if origin == "." {
		return label + "."
	}
	return label + "." + origin
}

// normalize converts a record value to a slice of strings. Accepts a scalar
// or a list of scalars.
func normalize(val any) []string {
	switch v := val.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			out = append(out, fmt.Sprint(x))
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}
