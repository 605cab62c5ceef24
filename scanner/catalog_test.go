package scanner

import (
	"sort"
	"testing"
)

func TestLookup(t *testing.T) {
	cases := map[int]string{
		21:    "FTP",
		22:    "SSH",
		25:    "SMTP",
		53:    "DNS",
		80:    "HTTP",
		443:   "HTTPS",
		3306:  "MySQL",
		5432:  "PostgreSQL",
		6379:  "Redis",
		27017: "MongoDB",
	}
	for port, want := range cases {
		got, ok := Lookup(port)
		if !ok || got != want {
			t.Errorf("Lookup(%d) = %q, %v; want %q, true", port, got, ok, want)
		}
	}
}

func TestLookup_Unrecognized(t *testing.T) {
	if name, ok := Lookup(65000); ok || name != "" {
		t.Fatalf("Lookup(65000) = %q, %v; want unrecognized", name, ok)
	}
	if got := Label(65000); got != Unknown {
		t.Fatalf("Label(65000) = %q, want %q", got, Unknown)
	}
	if got := Label(443); got != "HTTPS" {
		t.Fatalf("Label(443) = %q, want HTTPS", got)
	}
}

func TestCommonPorts(t *testing.T) {
	ports := CommonPorts()
	if len(ports) < 60 || len(ports) > 90 {
		t.Fatalf("catalog has %d ports, expected between 60 and 90", len(ports))
	}
	if !sort.IntsAreSorted(ports) {
		t.Fatalf("CommonPorts is not sorted: %v", ports)
	}
	for _, port := range ports {
		if _, ok := Lookup(port); !ok {
			t.Fatalf("CommonPorts returned %d which Lookup does not know", port)
		}
	}
}
