package rpzfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/miekg/dns"

	"github.com/haukened/rr-rpz/internal/dns/services/rpz"
)

// Load parses an RPZ master file from r. Relative owners are resolved
// against origin, which is also the zone's domain.
func Load(r io.Reader, origin string, opts Options) (*rpz.Zone, error) {
	return load(r, origin, "", opts)
}

func load(r io.Reader, origin, source string, opts Options) (*rpz.Zone, error) {
	b := newBuilder(origin, opts)

	zp := dns.NewZoneParser(r, b.origin, source)
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		if err := b.add(rr); err != nil {
			return nil, err
		}
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("parse zone %s: %w", b.origin, err)
	}
	return b.finish(source), nil
}

// LoadFile loads the zone at path. Plain and hosts lists are selected by
// opts.Format. Otherwise YAML, JSON and TOML files are read as structured
// documents and anything else is parsed as a master file.
func LoadFile(path, origin string, opts Options) (*rpz.Zone, error) {
	switch opts.Format {
	case FormatPlain, FormatHosts:
		return loadListFile(path, origin, opts)
	case "", FormatZone:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
		return LoadStructured(path, origin, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open zone file: %w", err)
	}
	defer f.Close()
	return load(f, origin, path, opts)
}
