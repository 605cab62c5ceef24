package scanner

import (
	"net"
	"regexp"
	"strings"
	"time"
)

var (
	ipv4Pattern = regexp.MustCompile(`^((25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])\.){3}(25[0-5]|2[0-4][0-9]|1[0-9][0-9]|[1-9]?[0-9])$`)
	dnsPattern  = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
)

// Limits are the resource bands a Validator enforces. Values outside a band are clamped,
// never rejected.
type Limits struct {
	MaxPorts int

	DefaultTimeout time.Duration
	MinTimeout     time.Duration
	MaxTimeout     time.Duration

	DefaultConcurrency int
	MinConcurrency     int
	MaxConcurrency     int
}

// DefaultLimits returns the bands used when nothing else is configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPorts:           100,
		DefaultTimeout:     time.Second,
		MinTimeout:         100 * time.Millisecond,
		MaxTimeout:         10 * time.Second,
		DefaultConcurrency: 10,
		MinConcurrency:     1,
		MaxConcurrency:     10,
	}
}

// Validator turns raw request fields into a ScanTarget.
type Validator struct {
	limits Limits
}

// NewValidator creates a Validator. Zero fields in limits fall back to DefaultLimits.
func NewValidator(limits Limits) *Validator {
	def := DefaultLimits()
	if limits.MaxPorts <= 0 {
		limits.MaxPorts = def.MaxPorts
	}
	if limits.MinTimeout <= 0 {
		limits.MinTimeout = def.MinTimeout
	}
	if limits.MaxTimeout <= 0 {
		limits.MaxTimeout = def.MaxTimeout
	}
	if limits.DefaultTimeout <= 0 {
		limits.DefaultTimeout = def.DefaultTimeout
	}
	if limits.MinConcurrency <= 0 {
		limits.MinConcurrency = def.MinConcurrency
	}
	if limits.MaxConcurrency <= 0 {
		limits.MaxConcurrency = def.MaxConcurrency
	}
	if limits.DefaultConcurrency <= 0 {
		limits.DefaultConcurrency = def.DefaultConcurrency
	}
	return &Validator{limits: limits}
}

// Limits returns the effective bands.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Validate checks the raw request and returns the target plus the number of ports dropped by
// the port ceiling. A zero timeout or concurrency selects the default value.
func (v *Validator) Validate(rawHost string, rawPorts []int, rawTimeoutMillis, rawConcurrency int) (ScanTarget, int, error) {
	host := strings.ToLower(strings.TrimSpace(rawHost))
	if host == "" {
		return ScanTarget{}, 0, validationErrorf(KindInvalidHost, "host is required")
	}
	if isForbiddenHost(host) {
		return ScanTarget{}, 0, validationErrorf(KindForbiddenTarget, "scanning %q is not allowed", host)
	}
	if !ipv4Pattern.MatchString(host) && !(len(host) <= 253 && dnsPattern.MatchString(host)) {
		return ScanTarget{}, 0, validationErrorf(KindInvalidHost, "%q is neither an IPv4 address nor a domain name", rawHost)
	}

	if len(rawPorts) == 0 {
		return ScanTarget{}, 0, validationErrorf(KindMissingPorts, "at least one port is required")
	}
	for _, port := range rawPorts {
		if port < 1 || port > 65535 {
			return ScanTarget{}, 0, validationErrorf(KindInvalidPort, "port %d is outside 1-65535", port)
		}
	}

	truncated := 0
	kept := rawPorts
	if len(kept) > v.limits.MaxPorts {
		truncated = len(kept) - v.limits.MaxPorts
		kept = kept[:v.limits.MaxPorts]
	}
	ports := make([]int, len(kept))
	copy(ports, kept)

	return ScanTarget{
		Host:           host,
		Ports:          ports,
		Timeout:        v.timeout(rawTimeoutMillis),
		MaxConcurrency: v.concurrency(rawConcurrency),
	}, truncated, nil
}

func (v *Validator) timeout(millis int) time.Duration {
	if millis == 0 {
		return v.limits.DefaultTimeout
	}
	d := time.Duration(millis) * time.Millisecond
	if d < v.limits.MinTimeout {
		return v.limits.MinTimeout
	}
	if d > v.limits.MaxTimeout {
		return v.limits.MaxTimeout
	}
	return d
}

func (v *Validator) concurrency(n int) int {
	if n == 0 {
		return v.limits.DefaultConcurrency
	}
	if n < v.limits.MinConcurrency {
		return v.limits.MinConcurrency
	}
	if n > v.limits.MaxConcurrency {
		return v.limits.MaxConcurrency
	}
	return n
}

// isForbiddenHost reports whether host names the scanner's own machine.
func isForbiddenHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return isSelfAddress(ip)
	}
	return false
}

func isSelfAddress(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsUnspecified()
}
