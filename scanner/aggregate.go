package scanner

import "time"

// Aggregate builds the report for target from outcomes in any order. Outcomes come back in
// the order of target.Ports; repeated ports take their outcomes first in, first out. A port
// without an outcome was abandoned at the scan deadline and is reported as Filtered.
func Aggregate(target ScanTarget, outcomes []PortOutcome) ScanReport {
	pending := make(map[int][]PortOutcome, len(outcomes))
	for _, outcome := range outcomes {
		pending[outcome.Port] = append(pending[outcome.Port], outcome)
	}

	report := ScanReport{
		Host:     target.Host,
		Outcomes: make([]PortOutcome, 0, len(target.Ports)),
	}
	now := time.Now().UTC()
	for _, port := range target.Ports {
		var outcome PortOutcome
		if queue := pending[port]; len(queue) > 0 {
			outcome = queue[0]
			pending[port] = queue[1:]
		} else {
			outcome = PortOutcome{
				Port:       port,
				State:      StateFiltered,
				Service:    Label(port),
				Abandoned:  true,
				ObservedAt: now,
			}
			report.Abandoned++
		}

		switch outcome.State {
		case StateOpen:
			report.OpenCount++
		case StateClosed:
			report.ClosedCount++
		default:
			outcome.State = StateFiltered
			report.FilteredCount++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.TotalScanned = len(report.Outcomes)
	report.DeadlineExceeded = report.Abandoned > 0
	return report
}
