package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"portwarden/scanner"
)

// EnvPrefix prefixes every environment variable the application reads.
const EnvPrefix = "PORTWARDEN_"

// Config holds every runtime setting. Command line flags and PORTWARDEN_* variables write
// into it directly.
type Config struct {
	// HTTP server
	Listen         string
	RedisAddr      string
	APIKey         string
	RateLimit      int
	RateWindow     time.Duration
	MaxActiveScans int

	// scanning
	MaxPorts       int
	MaxTimeout     time.Duration
	MaxConcurrency int
	Strategy       string
	ProbesFile     string
	BannerTimeout  time.Duration
	ScanBudget     time.Duration
	AdmissionDelay time.Duration
	AllowLoopback  bool
	NmapPath       string

	// logging
	Debug   bool
	LogFile string
	LogJSON bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	limits := scanner.DefaultLimits()
	return Config{
		Listen:         ":8080",
		RateLimit:      30,
		RateWindow:     time.Minute,
		MaxActiveScans: 4,
		MaxPorts:       limits.MaxPorts,
		MaxTimeout:     limits.MaxTimeout,
		MaxConcurrency: limits.MaxConcurrency,
		Strategy:       scanner.StrategyConnect,
		BannerTimeout:  800 * time.Millisecond,
		NmapPath:       "nmap",
	}
}

// LoadEnv loads .env style files into the process environment without overriding variables
// that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	for _, file := range files {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Validate rejects settings that cannot work together.
func (c Config) Validate() error {
	limits := scanner.DefaultLimits()
	var errs []error
	if c.MaxPorts < 1 {
		errs = append(errs, fmt.Errorf("max ports must be positive, got %d", c.MaxPorts))
	}
	if c.MaxTimeout < limits.MinTimeout {
		errs = append(errs, fmt.Errorf("max timeout %s is below the minimum timeout %s", c.MaxTimeout, limits.MinTimeout))
	}
	if c.MaxConcurrency < limits.MinConcurrency {
		errs = append(errs, fmt.Errorf("max concurrency %d is below %d", c.MaxConcurrency, limits.MinConcurrency))
	}
	if c.MaxActiveScans < 1 {
		errs = append(errs, fmt.Errorf("max active scans must be positive, got %d", c.MaxActiveScans))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		errs = append(errs, errors.New("rate window must be positive when a rate limit is set"))
	}
	if c.ScanBudget < 0 || c.AdmissionDelay < 0 {
		errs = append(errs, errors.New("scan budget and admission delay must not be negative"))
	}
	switch strings.ToLower(c.Strategy) {
	case scanner.StrategyConnect, scanner.StrategyNmap:
	default:
		errs = append(errs, fmt.Errorf("unknown strategy %q", c.Strategy))
	}
	return errors.Join(errs...)
}

// Limits translates the configuration into validator bands.
func (c Config) Limits() scanner.Limits {
	limits := scanner.DefaultLimits()
	limits.MaxPorts = c.MaxPorts
	limits.MaxTimeout = c.MaxTimeout
	limits.MaxConcurrency = c.MaxConcurrency
	if limits.DefaultTimeout > limits.MaxTimeout {
		limits.DefaultTimeout = limits.MaxTimeout
	}
	if limits.DefaultConcurrency > limits.MaxConcurrency {
		limits.DefaultConcurrency = limits.MaxConcurrency
	}
	return limits
}

// ProberOptions translates the configuration into prober options, loading the probe file
// when one is configured.
func (c Config) ProberOptions(logger *zap.Logger) (scanner.ProberOptions, error) {
	opts := scanner.ProberOptions{
		BannerTimeout: c.BannerTimeout,
		BlockLoopback: !c.AllowLoopback,
		NmapPath:      c.NmapPath,
		Logger:        logger,
	}
	if c.BannerTimeout == 0 {
		// zero means "no banner" on the command line, the scanner reads it as "default"
		opts.BannerTimeout = -1
	}
	if c.ProbesFile != "" {
		probes, stats, err := scanner.LoadProbes(c.ProbesFile)
		if err != nil {
			return scanner.ProberOptions{}, err
		}
		if logger != nil && len(stats.ErrorLines) > 0 {
			logger.Warn("probe file has malformed lines",
				zap.String("file", c.ProbesFile),
				zap.Ints("lines", stats.ErrorLines),
			)
		}
		opts.Probes = probes
	}
	return opts, nil
}

// Engine builds the scan engine described by the configuration.
func (c Config) Engine(logger *zap.Logger) (*scanner.Engine, error) {
	opts, err := c.ProberOptions(logger)
	if err != nil {
		return nil, err
	}
	prober, err := scanner.NewProber(c.Strategy, opts)
	if err != nil {
		return nil, err
	}
	scheduler := scanner.NewScheduler(prober,
		scanner.WithProbeOverhead(opts.Overhead(c.Strategy)),
		scanner.WithMaxBudget(c.ScanBudget),
		scanner.WithAdmissionDelay(c.AdmissionDelay),
		scanner.WithLogger(logger),
	)
	return scanner.NewEngine(scanner.NewValidator(c.Limits()), scheduler, logger), nil
}
