package pcapx

import (
	"fmt"
	"sort"
	"strings"
)

// Summary aggregates an extracted transaction stream.
type Summary struct {
	Total      int
	Reads      int
	Writes     int
	Timeouts   int
	Faults     int
	Unexpected int
	Stations   map[int]int
}

// Summarize builds a Summary from a transaction stream.
func Summarize(txs []Transaction) *Summary {
	s := &Summary{Stations: make(map[int]int)}
	for _, tx := range txs {
		s.Total++
		switch tx.Kind {
		case "read":
			s.Reads++
		case "write":
			s.Writes++
		case "timeout":
			s.Timeouts++
		case "unexpected":
			s.Unexpected++
			continue
		}
		if tx.Err != "" && tx.Kind != "timeout" {
			s.Faults++
		}
		s.Stations[tx.Station]++
	}
	return s
}

// Format renders the summary for terminal output.
func (s *Summary) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transactions: %d (%d reads, %d writes, %d timeouts, %d faults",
		s.Total, s.Reads, s.Writes, s.Timeouts, s.Faults)
	if s.Unexpected > 0 {
		fmt.Fprintf(&b, ", %d unexpected", s.Unexpected)
	}
	b.WriteString(")\n")

	stations := make([]int, 0, len(s.Stations))
	for station := range s.Stations {
		stations = append(stations, station)
	}
	sort.Ints(stations)
	for _, station := range stations {
		fmt.Fprintf(&b, "  station %2d: %d transactions\n", station, s.Stations[station])
	}
	return b.String()
}
