package scanner

import (
	"time"
)

// PortState is the three-valued reachability result of a probe.
type PortState string

const (
	// StateOpen means the peer completed the TCP handshake.
	StateOpen PortState = "Open"
	// StateClosed means the peer actively refused the connection (RST).
	StateClosed PortState = "Closed"
	// StateFiltered means the probe timed out or failed without an explicit refusal.
	StateFiltered PortState = "Filtered"
)

// ScanTarget is a validated scan request. Only the Validator builds one and nothing
// mutates it afterwards.
type ScanTarget struct {
	Host           string
	Ports          []int
	Timeout        time.Duration
	MaxConcurrency int
}

// PortOutcome represents the result of a single probe.
type PortOutcome struct {
	Port        int       `json:"port"`
	State       PortState `json:"state"`
	Service     string    `json:"service,omitempty"`
	Banner      string    `json:"banner,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	// Abandoned is set when the scan-wide deadline expired before the probe settled.
	Abandoned  bool      `json:"abandoned,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

// ScanReport is the final, ordered result of one scan request.
type ScanReport struct {
	ID               string        `json:"id"`
	Host             string        `json:"host"`
	Outcomes         []PortOutcome `json:"outcomes"`
	TotalScanned     int           `json:"totalScanned"`
	OpenCount        int           `json:"openCount"`
	ClosedCount      int           `json:"closedCount"`
	FilteredCount    int           `json:"filteredCount"`
	Truncated        int           `json:"truncated,omitempty"`
	Abandoned        int           `json:"abandonedCount,omitempty"`
	DeadlineExceeded bool          `json:"deadlineExceeded,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	DurationMillis   int64         `json:"durationMillis"`
}

// Request is the raw, unvalidated scan request accepted by the Engine.
type Request struct {
	Host           string `json:"host" example:"scanme.nmap.org"`
	Ports          []int  `json:"ports" example:"22,80,443"`
	TimeoutMillis  int    `json:"timeoutMillis,omitempty" example:"1000"`
	MaxConcurrency int    `json:"maxConcurrency,omitempty" example:"10"`
}
