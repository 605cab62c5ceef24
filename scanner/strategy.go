package scanner

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probing strategies selectable at composition time.
const (
	StrategyConnect = "connect"
	StrategyNmap    = "nmap"
)

var (
	nmapInitOnce sync.Once
	nmapInitErr  error
	nmapResolved string
)

// ProberOptions configures the probers built by NewProber.
type ProberOptions struct {
	// BannerTimeout bounds the banner exchange after a successful connect. Zero selects the
	// default; a negative value disables banner grabbing.
	BannerTimeout time.Duration
	// BannerLimit caps the banner length in bytes.
	BannerLimit int
	// BlockLoopback refuses connections to loopback addresses after name resolution.
	BlockLoopback bool
	Probes        *ProbeSet
	Dialer        Dialer

	NmapPath     string
	NmapOverhead time.Duration
	Runner       CommandRunner

	Logger *zap.Logger
}

func (o ProberOptions) withDefaults() ProberOptions {
	if o.BannerTimeout == 0 {
		o.BannerTimeout = 800 * time.Millisecond
	}
	if o.BannerLimit <= 0 {
		o.BannerLimit = 256
	}
	if o.Probes == nil {
		o.Probes = DefaultProbes()
	}
	if o.NmapPath == "" {
		o.NmapPath = "nmap"
	}
	if o.NmapOverhead <= 0 {
		o.NmapOverhead = 5 * time.Second
	}
	if o.Runner == nil {
		o.Runner = execRunner
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Overhead is the time a probe may spend beyond its connect timeout.
func (o ProberOptions) Overhead(strategy string) time.Duration {
	o = o.withDefaults()
	if strings.ToLower(strategy) == StrategyNmap {
		return o.NmapOverhead
	}
	if o.BannerTimeout < 0 {
		return 0
	}
	return o.BannerTimeout
}

// NewProber returns the Prober for strategy.
func NewProber(strategy string, opts ProberOptions) (Prober, error) {
	switch strings.ToLower(strategy) {
	case StrategyNmap:
		path, err := InitNmap(opts.NmapPath)
		if err != nil {
			return nil, err
		}
		opts.NmapPath = path
		return NewNmapProber(opts), nil
	case StrategyConnect, "":
		return NewConnectProber(opts), nil
	default:
		return nil, fmt.Errorf("unknown probing strategy %q", strategy)
	}
}

// InitNmap checks once per process that the nmap binary can be found and returns its path.
func InitNmap(binary string) (string, error) {
	if binary == "" {
		binary = "nmap"
	}
	nmapInitOnce.Do(func() {
		nmapResolved, nmapInitErr = exec.LookPath(binary)
		if nmapInitErr != nil {
			nmapInitErr = fmt.Errorf("nmap strategy requires the nmap binary: %w", nmapInitErr)
		}
	})
	return nmapResolved, nmapInitErr
}
