package scanner

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Prober performs one probe against a (host, port) pair. Implementations never fail: every
// transport error is folded into the returned outcome's State.
type Prober interface {
	Probe(ctx context.Context, host string, port int, timeout time.Duration) PortOutcome
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, host string, port int, timeout time.Duration) PortOutcome

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, host string, port int, timeout time.Duration) PortOutcome {
	return f(ctx, host, port, timeout)
}

// Dialer opens transport connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// errSelfTarget is returned by the loopback guard.
var errSelfTarget = errors.New("refusing to connect to a loopback or unspecified address")

// ConnectProber determines port state with a full TCP handshake and grabs a banner from open
// ports.
type ConnectProber struct {
	dialer        Dialer
	probes        *ProbeSet
	bannerTimeout time.Duration
	bannerLimit   int
	logger        *zap.Logger
}

// NewConnectProber creates a TCP connect prober from opts.
func NewConnectProber(opts ProberOptions) *ConnectProber {
	opts = opts.withDefaults()

	dialer := opts.Dialer
	if dialer == nil {
		d := &net.Dialer{}
		if opts.BlockLoopback {
			d.Control = guardSelfAddress
		}
		dialer = d
	}

	return &ConnectProber{
		dialer:        dialer,
		probes:        opts.Probes,
		bannerTimeout: opts.BannerTimeout,
		bannerLimit:   opts.BannerLimit,
		logger:        opts.Logger.With(zap.String("component", "connect-prober")),
	}
}

// guardSelfAddress runs after name resolution, so names pointing at this machine are caught
// as well as literals.
func guardSelfAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); ip != nil && isSelfAddress(ip) {
		return errSelfTarget
	}
	return nil
}

// Probe implements Prober.
// - Open: handshake completed
// - Closed: connection actively refused (RST received)
// - Filtered: timeout, or any other failure such as DNS or an unreachable network
func (p *ConnectProber) Probe(ctx context.Context, host string, port int, timeout time.Duration) PortOutcome {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	outcome := PortOutcome{Port: port, Service: Label(port)}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", address)
	outcome.ObservedAt = time.Now().UTC()
	if err != nil {
		outcome.State = classifyDialError(err)
		p.logger.Debug("probe failed",
			zap.String("address", address),
			zap.String("state", string(outcome.State)),
			zap.String("reason", dialFailureReason(err)),
			zap.Error(err),
		)
		return outcome
	}
	defer conn.Close()

	outcome.State = StateOpen
	outcome.Banner, outcome.Fingerprint = p.grabBanner(ctx, conn, port)
	p.logger.Debug("port open",
		zap.String("address", address),
		zap.String("fingerprint", outcome.Fingerprint),
		zap.Int("banner_bytes", len(outcome.Banner)),
	)
	return outcome
}

// grabBanner first waits for the peer to talk on its own, then sends one payload probe and
// reads again. The whole exchange is bounded by bannerTimeout and by ctx.
func (p *ConnectProber) grabBanner(ctx context.Context, conn net.Conn, port int) (string, string) {
	if p.bannerTimeout <= 0 {
		return "", ""
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	deadline := time.Now().Add(p.bannerTimeout)
	buffer := make([]byte, 2048)

	_ = conn.SetReadDeadline(time.Now().Add(p.bannerTimeout / 2))
	n, err := conn.Read(buffer)
	if n == 0 && isTimeout(err) && ctx.Err() == nil {
		probe, ok := p.probes.PayloadFor(port)
		if !ok {
			return "", ""
		}
		_ = conn.SetDeadline(deadline)
		// the cancel hook may have fired before the deadline above replaced its own
		if ctx.Err() != nil {
			return "", ""
		}
		if _, err := conn.Write(probe.Data); err != nil {
			return "", ""
		}
		n, _ = conn.Read(buffer)
	}
	if n == 0 {
		return "", ""
	}

	response := buffer[:n]
	fingerprint, _ := p.probes.Identify(response)
	return sanitizeBanner(response, p.bannerLimit), fingerprint
}

// classifyDialError maps a dial failure onto a port state.
func classifyDialError(err error) PortState {
	if isConnectionRefused(err) {
		return StateClosed
	}
	return StateFiltered
}

// dialFailureReason names the failure for logs only; the state enum does not carry it.
func dialFailureReason(err error) string {
	var dnsErr *net.DNSError
	switch {
	case isConnectionRefused(err):
		return "refused"
	case errors.Is(err, errSelfTarget):
		return "self-target"
	case errors.As(err, &dnsErr):
		return "dns"
	case isTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return "unreachable"
	default:
		return "other"
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionRefused checks if the error is a connection refused error.
func isConnectionRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Windows reports WSAECONNREFUSED with a different errno.
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "actively refused")
}

// sanitizeBanner keeps printable ASCII, folds line breaks to "\n" and caps the length.
func sanitizeBanner(raw []byte, limit int) string {
	var b strings.Builder
	for _, c := range raw {
		switch {
		case c == '\r':
			continue
		case c == '\n' || c == '\t' || (c >= 0x20 && c < 0x7f):
			b.WriteByte(c)
		default:
			b.WriteByte('.')
		}
	}
	banner := strings.TrimSpace(b.String())
	if limit > 0 && len(banner) > limit {
		banner = banner[:limit]
	}
	return banner
}
