package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandRunner runs an external command and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// NmapProber delegates a single-port probe to the nmap binary and reads its grepable output.
type NmapProber struct {
	binary   string
	overhead time.Duration
	run      CommandRunner
	logger   *zap.Logger
}

// NewNmapProber creates an nmap-backed prober. It does not check that the binary exists; use
// NewProber or InitNmap for that.
func NewNmapProber(opts ProberOptions) *NmapProber {
	opts = opts.withDefaults()
	return &NmapProber{
		binary:   opts.NmapPath,
		overhead: opts.NmapOverhead,
		run:      opts.Runner,
		logger:   opts.Logger.With(zap.String("component", "nmap-prober")),
	}
}

// Probe implements Prober. The process gets timeout plus a fixed overhead for start-up and
// version detection; it is killed when that budget or ctx runs out.
func (p *NmapProber) Probe(ctx context.Context, host string, port int, timeout time.Duration) PortOutcome {
	outcome := PortOutcome{Port: port, Service: Label(port), State: StateFiltered}

	runCtx, cancel := context.WithTimeout(ctx, timeout+p.overhead)
	defer cancel()

	args := []string{
		"-Pn", "-sT", "-sV",
		"-p", strconv.Itoa(port),
		"--max-rtt-timeout", fmt.Sprintf("%dms", timeout.Milliseconds()),
		"-oG", "-",
		host,
	}
	out, err := p.run(runCtx, p.binary, args...)
	outcome.ObservedAt = time.Now().UTC()
	if err != nil {
		p.logger.Debug("nmap run failed", zap.String("host", host), zap.Int("port", port), zap.Error(err))
		return outcome
	}

	entry, ok := findGrepablePort(out, port)
	if !ok {
		p.logger.Debug("nmap output has no entry for port", zap.String("host", host), zap.Int("port", port))
		return outcome
	}
	outcome.State = entry.state
	outcome.Fingerprint = entry.service
	outcome.Banner = entry.version
	return outcome
}

type grepablePort struct {
	port    int
	state   PortState
	service string
	version string
}

// findGrepablePort scans nmap -oG output for port. A host line looks like:
// Host: 8.8.8.8 (dns.google)	Ports: 53/open/tcp//domain//ISC BIND 9.x/, 81/closed/tcp//hosts2-ns///
func findGrepablePort(out []byte, port int) (grepablePort, bool) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		_, portsField, found := strings.Cut(line, "Ports:")
		if !found {
			continue
		}
		// further tab-separated fields (Ignored State, ...) follow the port list
		portsField, _, _ = strings.Cut(portsField, "\t")
		for _, item := range strings.Split(portsField, ",") {
			entry, ok := parseGrepablePort(strings.TrimSpace(item))
			if ok && entry.port == port {
				return entry, true
			}
		}
	}
	return grepablePort{}, false
}

// parseGrepablePort parses "port/state/proto/owner/service/rpc/version/".
func parseGrepablePort(item string) (grepablePort, bool) {
	fields := strings.Split(item, "/")
	if len(fields) < 5 {
		return grepablePort{}, false
	}
	port, err := strconv.Atoi(fields[0])
	if err != nil {
		return grepablePort{}, false
	}

	entry := grepablePort{port: port, state: StateFiltered, service: fields[4]}
	switch fields[1] {
	case "open":
		entry.state = StateOpen
	case "closed":
		entry.state = StateClosed
	}
	if len(fields) > 6 {
		entry.version = strings.TrimSpace(fields[6])
	}
	return entry, true
}
