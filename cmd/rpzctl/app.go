package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/haukened/rr-rpz/internal/dns/common/clock"
	"github.com/haukened/rr-rpz/internal/dns/common/log"
	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/config"
	"github.com/haukened/rr-rpz/internal/dns/domain"
	"github.com/haukened/rr-rpz/internal/dns/gateways/rpzfile"
	"github.com/haukened/rr-rpz/internal/dns/repos/bloom"
	"github.com/haukened/rr-rpz/internal/dns/repos/policycache"
	"github.com/haukened/rr-rpz/internal/dns/repos/snapshot"
	"github.com/haukened/rr-rpz/internal/dns/services/rpz"
)

var errSnapshotsDisabled = errors.New("snapshot path is not configured")

// Application holds the loaded zones and the filter serving them.
type Application struct {
	config *config.AppConfig
	logger log.Logger
	clock  clock.Clock
	filter *rpz.Filter
	loaded []loadedZone
	store  *snapshot.Store
}

type loadedZone struct {
	key  string
	conf config.ZoneConfig
	zone *rpz.Zone
}

// zoneKey names a zone in snapshots and on the command line.
func zoneKey(zc config.ZoneConfig) string {
	if zc.Name != "" {
		return zc.Name
	}
	return utils.CanonicalDNSName(zc.Origin)
}

func newApplication(cfg *config.AppConfig, logger log.Logger) (*Application, error) {
	cache, err := policycache.New[rpz.Policy](cfg.Cache.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	return &Application{
		config: cfg,
		logger: logger,
		clock:  &clock.RealClock{},
		filter: rpz.NewFilter(rpz.FilterOptions{
			Publisher: rpz.NewPublisher(nil),
			Cache:     cache,
			Logger:    logger,
		}),
	}, nil
}

func (a *Application) loaderOptions(zc config.ZoneConfig) (rpzfile.Options, error) {
	opts := rpzfile.Options{
		Name:        zc.Name,
		TTLOverride: zc.TTLOverride,
		Format:      zc.Format,
		Action:      domain.PolicyNXDOMAIN,
		Logger:      a.logger,
	}
	if zc.Action != "" {
		kind, err := domain.ParsePolicyKind(zc.Action)
		if err != nil {
			return opts, err
		}
		opts.Action = kind
	}
	if a.config.Bloom.Enabled {
		opts.Bloom = bloom.NewFactory()
		opts.ExpectedNames = a.config.Bloom.ExpectedNames
		opts.FPRate = a.config.Bloom.FPRate
	}
	return opts, nil
}

// Load reads every configured zone in priority order, from its file or from
// the snapshot store, and publishes the resulting engine.
func (a *Application) Load(fromSnapshot bool) error {
	ordered := a.config.OrderedZones()
	loaded := make([]loadedZone, 0, len(ordered))
	engine := rpz.NewEngine()
	if len(ordered) > 0 {
		engine.AssureZones(len(ordered) - 1)
	}

	for i, zc := range ordered {
		z, err := a.loadZone(zc, fromSnapshot)
		if err != nil {
			return fmt.Errorf("zone %s: %w", zoneKey(zc), err)
		}
		if err := engine.SetZone(i, z); err != nil {
			return err
		}
		loaded = append(loaded, loadedZone{key: zoneKey(zc), conf: zc, zone: z})
	}

	a.loaded = loaded
	a.filter.Publish(engine)
	return nil
}

func (a *Application) loadZone(zc config.ZoneConfig, fromSnapshot bool) (*rpz.Zone, error) {
	opts, err := a.loaderOptions(zc)
	if err != nil {
		return nil, err
	}
	if !fromSnapshot {
		return rpzfile.LoadFile(zc.File, zc.Origin, opts)
	}

	store, err := a.snapshots()
	if err != nil {
		return nil, err
	}
	text, meta, err := store.Load(zoneKey(zc))
	if err != nil {
		return nil, err
	}
	a.logger.Info(map[string]any{
		"zone":     zoneKey(zc),
		"serial":   meta.Serial,
		"saved_at": meta.SavedAt,
	}, "loading zone from snapshot")
	// Snapshots are always dumps, whatever the zone's source format.
	return rpzfile.Load(bytes.NewReader(text), zc.Origin, opts)
}

// snapshots opens the store on first use.
func (a *Application) snapshots() (*snapshot.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.config.Snapshot.Path == "" {
		return nil, errSnapshotsDisabled
	}
	store, err := snapshot.Open(a.config.Snapshot.Path, a.clock)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// SaveSnapshot stores the dump of z under key.
func (a *Application) SaveSnapshot(key string, z *rpz.Zone) error {
	store, err := a.snapshots()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := z.Dump(&buf); err != nil {
		return err
	}
	return store.Save(key, z.Serial(), buf.Bytes())
}

// find returns the loaded zone called key, matching name or origin.
func (a *Application) find(key string) (loadedZone, bool) {
	canon := utils.CanonicalDNSName(key)
	for _, lz := range a.loaded {
		if lz.key == key || utils.CanonicalDNSName(lz.conf.Origin) == canon {
			return lz, true
		}
	}
	return loadedZone{}, false
}

func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
