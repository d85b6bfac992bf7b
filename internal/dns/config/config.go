package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/miekg/dns"
)

// AppConfig holds the settings for loading policy zones and serving lookups.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Zones lists the policy zones. Lower priority values are consulted first.
	Zones []ZoneConfig `koanf:"zones" validate:"dive"`

	Cache    CacheConfig    `koanf:"cache"`
	Bloom    BloomConfig    `koanf:"bloom"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
}

// ZoneConfig describes one RPZ zone file.
type ZoneConfig struct {
	// Name identifies the zone in policies and discard lists. Empty leaves it unnamed.
	Name string `koanf:"name"`
	// Origin is the zone apex the owner names in File are relative to.
	Origin   string `koanf:"origin" validate:"required,fqdn_name"`
	File     string `koanf:"file" validate:"required"`
	Priority int    `koanf:"priority" validate:"gte=0"`
	// TTLOverride replaces every record TTL when positive.
	TTLOverride int32 `koanf:"ttl_override" validate:"gte=0"`
	// Format is "rpz" (zone file or structured document), "plain" or "hosts".
	Format string `koanf:"format" validate:"omitempty,oneof=rpz plain hosts"`
	// Action applies to every name of a plain or hosts list.
	Action string `koanf:"action" validate:"omitempty,oneof=nxdomain nodata drop truncate tcp-only passthru noaction"`
}

type CacheConfig struct {
	// Size is the number of cached query decisions; 0 disables the cache.
	Size int `koanf:"size" validate:"gte=0"`
}

type BloomConfig struct {
	Enabled       bool    `koanf:"enabled"`
	FPRate        float64 `koanf:"fp_rate" validate:"gt=0,lt=1"`
	ExpectedNames uint64  `koanf:"expected_names"`
}

type SnapshotConfig struct {
	// Path is the bbolt file holding saved zone dumps. Empty disables snapshots.
	Path string `koanf:"path"`
}

// DEFAULT_APP_CONFIG defines the defaults applied before the config file and environment.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:      "prod",
	LogLevel: "info",
	Cache:    CacheConfig{Size: 10000},
	Bloom:    BloomConfig{Enabled: true, FPRate: 0.01, ExpectedNames: 1024},
	Snapshot: SnapshotConfig{Path: "/var/lib/rr-rpz/snapshots.db"},
}

// ErrConfigFile is returned when an explicitly requested config file cannot be read.
var ErrConfigFile = errors.New("config file")

// envSections are the nested keys reachable from the environment. RPZ_CACHE_SIZE
// becomes cache.size; keys outside these sections stay flat.
var envSections = []string{"cache", "bloom", "snapshot"}

func envKey(raw string) string {
	key := strings.ToLower(strings.TrimPrefix(raw, "RPZ_"))
	for _, s := range envSections {
		if strings.HasPrefix(key, s+"_") {
			return s + "." + strings.TrimPrefix(key, s+"_")
		}
	}
	return key
}

// envLoader loads environment variables with the prefix "RPZ_".
// It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "RPZ_",
		TransformFunc: func(key, value string) (string, any) {
			return envKey(key), strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader merges a YAML file over the defaults.
var fileLoader = func(k *koanf.Koanf, path string) error {
	return k.Load(file.Provider(path), yaml.Parser())
}

// validFQDNName accepts any syntactically valid domain name, with or without
// the trailing dot.
func validFQDNName(fl validator.FieldLevel) bool {
	name := strings.TrimSpace(fl.Field().String())
	if name == "" {
		return false
	}
	_, ok := dns.IsDomainName(name)
	return ok
}

// registerValidation adds the "fqdn_name" tag to v.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("fqdn_name", validFQDNName)
}

// Load builds an AppConfig from defaults, then the YAML file at path when
// path is not empty, then RPZ_ environment variables, and validates it.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigFile, err)
		}
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrConfigFile, path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// OrderedZones returns the zones sorted by priority, keeping file order for ties.
func (c *AppConfig) OrderedZones() []ZoneConfig {
	out := append([]ZoneConfig(nil), c.Zones...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
