package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rpz.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
	if cfg.Cache.Size != 10000 {
		t.Errorf("expected Cache.Size=10000, got %d", cfg.Cache.Size)
	}
	if !cfg.Bloom.Enabled || cfg.Bloom.FPRate != 0.01 || cfg.Bloom.ExpectedNames != 1024 {
		t.Errorf("unexpected Bloom defaults: %+v", cfg.Bloom)
	}
	if cfg.Snapshot.Path != "/var/lib/rr-rpz/snapshots.db" {
		t.Errorf("expected Snapshot.Path default, got %q", cfg.Snapshot.Path)
	}
	if len(cfg.Zones) != 0 {
		t.Errorf("expected no zones by default, got %v", cfg.Zones)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RPZ_ENV", "dev")
	t.Setenv("RPZ_LOG_LEVEL", "debug")
	t.Setenv("RPZ_CACHE_SIZE", "0")
	t.Setenv("RPZ_BLOOM_FP_RATE", "0.001")
	t.Setenv("RPZ_BLOOM_ENABLED", "false")
	t.Setenv("RPZ_SNAPSHOT_PATH", "/tmp/snap.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Env != "dev" {
		t.Errorf("expected Env=dev, got %q", cfg.Env)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel=debug, got %q", cfg.LogLevel)
	}
	if cfg.Cache.Size != 0 {
		t.Errorf("expected Cache.Size=0, got %d", cfg.Cache.Size)
	}
	if cfg.Bloom.FPRate != 0.001 {
		t.Errorf("expected Bloom.FPRate=0.001, got %v", cfg.Bloom.FPRate)
	}
	if cfg.Bloom.Enabled {
		t.Errorf("expected Bloom.Enabled=false")
	}
	if cfg.Snapshot.Path != "/tmp/snap.db" {
		t.Errorf("expected Snapshot.Path=/tmp/snap.db, got %q", cfg.Snapshot.Path)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
env: dev
log_level: warn
cache:
  size: 50
zones:
  - name: late
    origin: late.rpz.
    file: /etc/rpz/late.zone
    priority: 2
  - name: early
    origin: early.rpz
    file: /etc/rpz/early.zone
    priority: 1
    ttl_override: 30
    format: plain
    action: nxdomain
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Cache.Size != 50 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Bloom.FPRate != 0.01 {
		t.Errorf("expected defaults to survive the file, got FPRate=%v", cfg.Bloom.FPRate)
	}
	if len(cfg.Zones) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(cfg.Zones))
	}

	ordered := cfg.OrderedZones()
	if ordered[0].Name != "early" || ordered[1].Name != "late" {
		t.Errorf("expected early before late, got %q, %q", ordered[0].Name, ordered[1].Name)
	}
	if ordered[0].TTLOverride != 30 {
		t.Errorf("expected TTLOverride=30, got %d", ordered[0].TTLOverride)
	}
	if ordered[0].Format != "plain" || ordered[0].Action != "nxdomain" {
		t.Errorf("expected plain list with nxdomain, got %q/%q", ordered[0].Format, ordered[0].Action)
	}
	if cfg.Zones[0].Name != "late" {
		t.Errorf("OrderedZones must not reorder the config")
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")
	t.Setenv("RPZ_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("expected LogLevel=error, got %q", cfg.LogLevel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigFile) {
		t.Fatalf("expected ErrConfigFile, got %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "zones: [unterminated\n")
	_, err := Load(path)
	if !errors.Is(err, ErrConfigFile) {
		t.Fatalf("expected ErrConfigFile, got %v", err)
	}
}

func TestLoad_InvalidZone(t *testing.T) {
	cases := map[string]string{
		"missing file":   "zones:\n  - origin: rpz.\n",
		"missing origin": "zones:\n  - file: a.zone\n",
		"bad origin":     "zones:\n  - origin: \"bad..name\"\n    file: a.zone\n",
		"negative ttl":   "zones:\n  - origin: rpz.\n    file: a.zone\n    ttl_override: -1\n",
		"bad format":     "zones:\n  - origin: rpz.\n    file: a.zone\n    format: csv\n",
		"bad action":     "zones:\n  - origin: rpz.\n    file: a.txt\n    format: plain\n    action: custom\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("RPZ_ENV", "staging")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid env")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("RPZ_LOG_LEVEL", "verbose")
	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestLoad_InvalidFPRate(t *testing.T) {
	t.Setenv("RPZ_BLOOM_FP_RATE", "1.5")
	if _, err := Load(""); err == nil {
		t.Error("expected error for fp_rate outside (0,1)")
	}
}

func TestLoad_InvalidCacheSize(t *testing.T) {
	t.Setenv("RPZ_CACHE_SIZE", "-1")
	if _, err := Load(""); err == nil {
		t.Error("expected error for negative cache size")
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	if _, err := Load(""); err == nil {
		t.Error("expected error when default loader fails")
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	if _, err := Load(""); err == nil {
		t.Error("expected error when env loader fails")
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	if _, err := Load(""); err == nil {
		t.Error("expected error when registering validation fails")
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"RPZ_ENV":           "env",
		"RPZ_LOG_LEVEL":     "log_level",
		"RPZ_CACHE_SIZE":    "cache.size",
		"RPZ_BLOOM_FP_RATE": "bloom.fp_rate",
		"RPZ_SNAPSHOT_PATH": "snapshot.path",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidFQDNName(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"rpz.example.", true},
		{"rpz.example", true},
		{".", true},
		{"", false},
		{"  ", false},
		{"bad..name", false},
	}

	validate := validator.New()
	_ = validate.RegisterValidation("fqdn_name", validFQDNName)

	for _, tc := range cases {
		type S struct {
			Name string `validate:"fqdn_name"`
		}
		err := validate.Struct(S{Name: tc.input})
		if tc.expected && err != nil {
			t.Errorf("validFQDNName(%q) = false, want true", tc.input)
		}
		if !tc.expected && err == nil {
			t.Errorf("validFQDNName(%q) = true, want false", tc.input)
		}
	}
}
