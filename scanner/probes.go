package scanner

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

//go:embed service-probes.txt
var defaultProbeRules string

// Probe is one banner elicitation payload in the nmap-service-probes format.
type Probe struct {
	Protocol string  // TCP or UDP
	Name     string  // e.g. "GetRequest"
	Data     []byte  // payload sent after connect, empty for the NULL probe
	Ports    []int   // ports the payload targets; empty means any port
	Matches  []Match // response patterns
}

// Match is a single service detection rule.
type Match struct {
	ServiceName string
	Pattern     *regexp.Regexp
}

// LoadStats summarises a probe file parse.
type LoadStats struct {
	Probes     int
	Matches    int
	ErrorLines []int
}

// LoadProbes reads and parses a probe file.
func LoadProbes(filePath string) (*ProbeSet, LoadStats, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("cannot open file %s: %w", filePath, err)
	}
	defer file.Close()

	return ParseProbes(file)
}

// DefaultProbes returns the embedded probe set.
func DefaultProbes() *ProbeSet {
	set, _, err := ParseProbes(strings.NewReader(defaultProbeRules))
	if err != nil {
		panic(fmt.Sprintf("embedded probe rules: %v", err))
	}
	return set
}

// ParseProbes parses probe definitions. Malformed lines are skipped and reported in
// LoadStats.ErrorLines; only read failures return an error.
func ParseProbes(r io.Reader) (*ProbeSet, LoadStats, error) {
	var (
		probes  []Probe
		current *Probe
		stats   LoadStats
	)

	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Probe "):
			probe, err := parseProbe(line)
			if err != nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				current = nil
				continue
			}
			probes = append(probes, probe)
			current = &probes[len(probes)-1]

		case strings.HasPrefix(line, "ports "):
			if current == nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			ports, err := parsePortsDirective(strings.TrimPrefix(line, "ports "))
			if err != nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			current.Ports = append(current.Ports, ports...)

		case strings.HasPrefix(line, "match "), strings.HasPrefix(line, "softmatch "):
			if current == nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			match, err := parseMatch(line)
			if err != nil {
				stats.ErrorLines = append(stats.ErrorLines, lineNum)
				continue
			}
			current.Matches = append(current.Matches, match)
			stats.Matches++

		default:
			// rarity, totalwaitms and friends carry no meaning for this scanner
		}
	}
	if err := sc.Err(); err != nil {
		return nil, stats, fmt.Errorf("error reading probes: %w", err)
	}

	stats.Probes = len(probes)
	return NewProbeSet(probes), stats, nil
}

// parseProbe parses a line like:
// Probe TCP GetRequest q|GET / HTTP/1.0\r\n\r\n|
func parseProbe(line string) (Probe, error) {
	line = strings.TrimPrefix(line, "Probe ")

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return Probe{}, fmt.Errorf("invalid Probe format")
	}

	protocol := strings.ToUpper(parts[0])
	if protocol != "TCP" && protocol != "UDP" {
		return Probe{}, fmt.Errorf("unsupported probe protocol %q", parts[0])
	}

	data, err := parseProbeData(parts[2])
	if err != nil {
		return Probe{}, fmt.Errorf("cannot parse probe data: %w", err)
	}

	return Probe{
		Protocol: protocol,
		Name:     parts[1],
		Data:     data,
	}, nil
}

// parseProbeData converts q|...| into bytes, honouring \r, \n, \xHH style escapes.
func parseProbeData(dataStr string) ([]byte, error) {
	if len(dataStr) < 3 || dataStr[0] != 'q' {
		return nil, fmt.Errorf("probe data must be in format q|...|")
	}
	delim := dataStr[1]
	end := strings.IndexByte(dataStr[2:], delim)
	if end < 0 {
		return nil, fmt.Errorf("unterminated probe data")
	}
	content := dataStr[2 : 2+end]

	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(content, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("cannot unquote probe data: %w", err)
	}
	return []byte(unquoted), nil
}

// parsePortsDirective parses "80,8000-8010".
func parsePortsDirective(s string) ([]int, error) {
	var ports []int
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(token, "-")
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(hi); err != nil {
				return nil, err
			}
		}
		if start < 1 || end > 65535 || start > end {
			return nil, fmt.Errorf("invalid port token %q", token)
		}
		for p := start; p <= end; p++ {
			ports = append(ports, p)
		}
	}
	return ports, nil
}

// parseMatch parses a line like:
// match service m|pattern|flags
// Any delimiter character may follow the leading m.
func parseMatch(line string) (Match, error) {
	_, rest, _ := strings.Cut(line, " ")
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) < 2 {
		return Match{}, fmt.Errorf("invalid match format")
	}

	serviceName := parts[0]
	patternStr := parts[1]
	if len(patternStr) < 3 || patternStr[0] != 'm' {
		return Match{}, fmt.Errorf("invalid match pattern format: %s", patternStr)
	}
	delim := patternStr[1]
	end := strings.IndexByte(patternStr[2:], delim)
	if end < 0 {
		return Match{}, fmt.Errorf("unterminated match pattern: %s", patternStr)
	}
	pattern := patternStr[2 : 2+end]
	flags := patternStr[2+end+1:]
	if i := strings.IndexByte(flags, ' '); i >= 0 {
		// version info templates (p/.../ v/.../) follow the flags
		flags = flags[:i]
	}

	regexStr := pattern
	if strings.Contains(flags, "i") {
		regexStr = "(?i)" + regexStr
	}
	if strings.Contains(flags, "s") {
		regexStr = "(?s)" + regexStr
	}

	regex, err := regexp.Compile(regexStr)
	if err != nil {
		return Match{}, fmt.Errorf("cannot compile regex: %w", err)
	}

	return Match{ServiceName: serviceName, Pattern: regex}, nil
}

// ProbeSet indexes TCP probes for banner elicitation.
type ProbeSet struct {
	null    []Probe
	byPort  map[int][]Probe
	generic []Probe
	all     []Probe
}

// NewProbeSet indexes probes. UDP probes are kept for matching but never sent.
func NewProbeSet(probes []Probe) *ProbeSet {
	set := &ProbeSet{byPort: make(map[int][]Probe), all: probes}
	for _, probe := range probes {
		if probe.Protocol != "TCP" {
			continue
		}
		switch {
		case len(probe.Data) == 0:
			set.null = append(set.null, probe)
		case len(probe.Ports) == 0:
			set.generic = append(set.generic, probe)
		default:
			for _, port := range probe.Ports {
				set.byPort[port] = append(set.byPort[port], probe)
			}
		}
	}
	return set
}

// Len returns the number of probes in the set.
func (ps *ProbeSet) Len() int {
	return len(ps.all)
}

// PayloadFor returns the payload probe to send to port once the peer stayed silent:
// a port-specific probe if one exists, otherwise the first generic one.
func (ps *ProbeSet) PayloadFor(port int) (Probe, bool) {
	if probes := ps.byPort[port]; len(probes) > 0 {
		return probes[0], true
	}
	if len(ps.generic) > 0 {
		return ps.generic[0], true
	}
	return Probe{}, false
}

// Identify matches a response against every TCP rule, NULL probe rules first.
func (ps *ProbeSet) Identify(response []byte) (string, bool) {
	for _, group := range [][]Probe{ps.null, ps.generic} {
		if name, ok := matchAny(group, response); ok {
			return name, true
		}
	}
	for _, probe := range ps.all {
		if probe.Protocol != "TCP" || len(probe.Ports) == 0 {
			continue
		}
		if name, ok := matchAny([]Probe{probe}, response); ok {
			return name, true
		}
	}
	return "", false
}

func matchAny(probes []Probe, response []byte) (string, bool) {
	for _, probe := range probes {
		for _, match := range probe.Matches {
			if match.Pattern.Match(response) {
				return match.ServiceName, true
			}
		}
	}
	return "", false
}
