package cli

import (
	"fmt"
	"strconv"
	"strings"

	"portwarden/scanner"
)

// ParsePortSpec expands a port expression such as "22,80,8000-8010" in the order written.
// Duplicates are kept. The keyword "common" selects the catalog ports. Range checks against
// 1-65535 are left to the validator so the error kinds stay the same for every front end.
func ParsePortSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if strings.EqualFold(spec, "common") {
		return scanner.CommonPorts(), nil
	}

	var ports []int
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(token, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("port %q is not a number", lo)
		}
		if !isRange {
			ports = append(ports, start)
			continue
		}

		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("port %q is not a number", hi)
		}
		if start > end {
			return nil, fmt.Errorf("range %q runs backwards", token)
		}
		if end-start >= 65535 {
			return nil, fmt.Errorf("range %q is wider than the port space", token)
		}
		for port := start; port <= end; port++ {
			ports = append(ports, port)
		}
	}
	return ports, nil
}
