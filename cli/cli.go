package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	ucli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"portwarden/api"
	"portwarden/config"
	"portwarden/logging"
	"portwarden/scanner"
)

const version = "0.3.0"

// Run loads .env files and runs the command line application with args.
func Run(args []string) error {
	if err := config.LoadEnv(os.Getenv(config.EnvPrefix+"ENV_FILE"), ".env"); err != nil {
		return err
	}
	cfg := config.Default()
	return NewApp(&cfg, os.Stdout).Run(args)
}

func env(name string) []string {
	return []string{config.EnvPrefix + name}
}

// NewApp builds the application. Flags and environment variables write into cfg.
func NewApp(cfg *config.Config, stdout io.Writer) *ucli.App {
	return &ucli.App{
		Name:    "portwarden",
		Usage:   "Concurrent TCP port scanner",
		Version: version,
		Writer:  stdout,
		Flags: []ucli.Flag{
			&ucli.BoolFlag{
				Name:        "debug",
				Usage:       "Debug logging",
				EnvVars:     env("DEBUG"),
				Destination: &cfg.Debug,
			},
			&ucli.StringFlag{
				Name:        "log-file",
				Usage:       "Also write logs to this file, rotated by size",
				EnvVars:     env("LOG_FILE"),
				Destination: &cfg.LogFile,
			},
			&ucli.BoolFlag{
				Name:        "log-json",
				Usage:       "Write logs as JSON",
				EnvVars:     env("LOG_JSON"),
				Destination: &cfg.LogJSON,
			},
			&ucli.IntFlag{
				Name:        "max-ports",
				Usage:       "Ports scanned per request; extra ports are dropped",
				EnvVars:     env("MAX_PORTS"),
				Value:       cfg.MaxPorts,
				Destination: &cfg.MaxPorts,
			},
			&ucli.DurationFlag{
				Name:        "max-timeout",
				Usage:       "Upper bound for the per-port connect timeout",
				EnvVars:     env("MAX_TIMEOUT"),
				Value:       cfg.MaxTimeout,
				Destination: &cfg.MaxTimeout,
			},
			&ucli.IntFlag{
				Name:        "max-concurrency",
				Usage:       "Upper bound for concurrent probes of one scan",
				EnvVars:     env("MAX_CONCURRENCY"),
				Value:       cfg.MaxConcurrency,
				Destination: &cfg.MaxConcurrency,
			},
			&ucli.StringFlag{
				Name:        "strategy",
				Usage:       "Probing strategy: connect or nmap",
				EnvVars:     env("STRATEGY"),
				Value:       cfg.Strategy,
				Destination: &cfg.Strategy,
			},
			&ucli.StringFlag{
				Name:        "probes-file",
				Usage:       "Banner probe rules in nmap-service-probes format (default: built-in rules)",
				EnvVars:     env("PROBES_FILE"),
				Destination: &cfg.ProbesFile,
			},
			&ucli.DurationFlag{
				Name:        "banner-timeout",
				Usage:       "Time spent reading a banner from an open port, 0 disables banners",
				EnvVars:     env("BANNER_TIMEOUT"),
				Value:       cfg.BannerTimeout,
				Destination: &cfg.BannerTimeout,
			},
			&ucli.DurationFlag{
				Name:        "scan-budget",
				Usage:       "Cap on the wall-clock time of one scan (default: derived from the request)",
				EnvVars:     env("SCAN_BUDGET"),
				Destination: &cfg.ScanBudget,
			},
			&ucli.DurationFlag{
				Name:        "admission-delay",
				Usage:       "Pause between two probe starts",
				EnvVars:     env("ADMISSION_DELAY"),
				Destination: &cfg.AdmissionDelay,
			},
			&ucli.BoolFlag{
				Name:        "allow-loopback",
				Usage:       "Let host names that resolve to loopback addresses through",
				EnvVars:     env("ALLOW_LOOPBACK"),
				Destination: &cfg.AllowLoopback,
			},
			&ucli.StringFlag{
				Name:        "nmap-path",
				Usage:       "nmap binary for the nmap strategy",
				EnvVars:     env("NMAP_PATH"),
				Value:       cfg.NmapPath,
				Destination: &cfg.NmapPath,
			},
		},
		Before: func(c *ucli.Context) error {
			logging.Configure(logging.Options{Debug: cfg.Debug, File: cfg.LogFile, JSON: cfg.LogJSON})
			return nil
		},
		Commands: []*ucli.Command{
			scanCommand(cfg, stdout),
			serveCommand(cfg),
		},
	}
}

func scanCommand(cfg *config.Config, stdout io.Writer) *ucli.Command {
	var (
		jsonOutput  bool
		timeout     int
		concurrency int
	)
	return &ucli.Command{
		Name:      "scan",
		Usage:     "Scan the ports of one host",
		ArgsUsage: "HOST PORTS",
		Description: "PORTS is a comma separated list of ports and ranges, e.g. 22,80,8000-8010,\n" +
			"or the keyword common. Results are printed in the order given.",
		Flags: []ucli.Flag{
			&ucli.BoolFlag{
				Name:        "json",
				Usage:       "Output the report as JSON",
				Destination: &jsonOutput,
			},
			&ucli.IntFlag{
				Name:        "timeout",
				Aliases:     []string{"t"},
				Usage:       "Connect timeout per port in milliseconds",
				DefaultText: "1000",
				Destination: &timeout,
			},
			&ucli.IntFlag{
				Name:        "concurrency",
				Aliases:     []string{"c"},
				Usage:       "Probes in flight at once",
				DefaultText: "10",
				Destination: &concurrency,
			},
		},
		Action: func(c *ucli.Context) error {
			if c.NArg() != 2 {
				_ = ucli.ShowSubcommandHelp(c)
				return errors.New("expected HOST and PORTS")
			}
			ports, err := ParsePortSpec(c.Args().Get(1))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.Logger()
			engine, err := cfg.Engine(logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := engine.Run(ctx, scanner.Request{
				Host:           c.Args().Get(0),
				Ports:          ports,
				TimeoutMillis:  timeout,
				MaxConcurrency: concurrency,
			})
			if err != nil {
				return fmt.Errorf("scan %s: %w", c.Args().Get(0), err)
			}

			if jsonOutput {
				return outputJSON(stdout, report)
			}
			outputPlainText(stdout, report)
			return nil
		},
	}
}

func serveCommand(cfg *config.Config) *ucli.Command {
	return &ucli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:        "listen",
				Usage:       "Listen address",
				EnvVars:     env("LISTEN"),
				Value:       cfg.Listen,
				Destination: &cfg.Listen,
			},
			&ucli.StringFlag{
				Name:        "redis-addr",
				Usage:       "Redis address for shared rate limiting (default: in-memory)",
				EnvVars:     env("REDIS_ADDR"),
				Destination: &cfg.RedisAddr,
			},
			&ucli.StringFlag{
				Name:        "api-key",
				Usage:       "Bearer key required on scan requests",
				EnvVars:     env("API_KEY"),
				Destination: &cfg.APIKey,
			},
			&ucli.IntFlag{
				Name:        "rate-limit",
				Usage:       "Scan requests per client and window, 0 disables",
				EnvVars:     env("RATE_LIMIT"),
				Value:       cfg.RateLimit,
				Destination: &cfg.RateLimit,
			},
			&ucli.DurationFlag{
				Name:        "rate-window",
				Usage:       "Rate limit window",
				EnvVars:     env("RATE_WINDOW"),
				Value:       cfg.RateWindow,
				Destination: &cfg.RateWindow,
			},
			&ucli.IntFlag{
				Name:        "max-active-scans",
				Usage:       "Scans running at once; further requests get 503",
				EnvVars:     env("MAX_ACTIVE_SCANS"),
				Value:       cfg.MaxActiveScans,
				Destination: &cfg.MaxActiveScans,
			},
		},
		Action: func(c *ucli.Context) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.Logger()
			logger.Debug("configuration", zap.Any("config", redacted(*cfg)))
			return api.Run(ctx, *cfg, logger)
		},
	}
}

func redacted(cfg config.Config) config.Config {
	if cfg.APIKey != "" {
		cfg.APIKey = "***"
	}
	return cfg
}
