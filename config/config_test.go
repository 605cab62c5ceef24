package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"portwarden/scanner"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if got := cfg.Limits(); got != scanner.DefaultLimits() {
		t.Fatalf("default limits %+v differ from scanner defaults", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"max ports", func(c *Config) { c.MaxPorts = 0 }, "max ports"},
		{"timeout band", func(c *Config) { c.MaxTimeout = 50 * time.Millisecond }, "max timeout"},
		{"concurrency band", func(c *Config) { c.MaxConcurrency = 0 }, "max concurrency"},
		{"scan slots", func(c *Config) { c.MaxActiveScans = 0 }, "max active scans"},
		{"rate window", func(c *Config) { c.RateWindow = 0 }, "rate window"},
		{"strategy", func(c *Config) { c.Strategy = "syn" }, "unknown strategy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want an error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestLimits_ShrinksDefaults(t *testing.T) {
	cfg := Default()
	cfg.MaxPorts = 50
	cfg.MaxTimeout = 500 * time.Millisecond
	cfg.MaxConcurrency = 4

	limits := cfg.Limits()
	if limits.MaxPorts != 50 || limits.MaxTimeout != 500*time.Millisecond || limits.MaxConcurrency != 4 {
		t.Fatalf("unexpected limits %+v", limits)
	}
	if limits.DefaultTimeout != 500*time.Millisecond || limits.DefaultConcurrency != 4 {
		t.Fatalf("defaults not pulled inside the bands: %+v", limits)
	}
}

func TestProberOptions(t *testing.T) {
	cfg := Default()
	opts, err := cfg.ProberOptions(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !opts.BlockLoopback || opts.BannerTimeout != 800*time.Millisecond || opts.Probes != nil {
		t.Fatalf("unexpected options %+v", opts)
	}

	cfg.AllowLoopback = true
	cfg.BannerTimeout = 0
	opts, _ = cfg.ProberOptions(nil)
	if opts.BlockLoopback || opts.BannerTimeout >= 0 {
		t.Fatalf("loopback or banner settings not applied: %+v", opts)
	}
}

func TestProberOptions_ProbesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.txt")
	rules := "Probe TCP NULL q||\nmatch ssh m|^SSH-|\n"
	if err := os.WriteFile(path, []byte(rules), 0o600); err != nil {
		t.Fatalf("write probes: %v", err)
	}

	cfg := Default()
	cfg.ProbesFile = path
	opts, err := cfg.ProberOptions(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Probes == nil || opts.Probes.Len() != 1 {
		t.Fatalf("probe file not loaded: %+v", opts.Probes)
	}

	cfg.ProbesFile = filepath.Join(t.TempDir(), "missing.txt")
	if _, err := cfg.ProberOptions(nil); err == nil {
		t.Fatalf("expected an error for a missing probe file")
	}
}

func TestEngine(t *testing.T) {
	engine, err := Default().Engine(nil)
	if err != nil || engine == nil {
		t.Fatalf("Engine() = %v, %v", engine, err)
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PORTWARDEN_TEST_LOADENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PORTWARDEN_TEST_LOADENV") })

	if err := LoadEnv("", filepath.Join(t.TempDir(), "absent.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("PORTWARDEN_TEST_LOADENV"); got != "from-file" {
		t.Fatalf("variable = %q, want from-file", got)
	}
}
