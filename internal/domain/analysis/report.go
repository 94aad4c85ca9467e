package analysis

import (
	"sort"
	"time"
)

// FileFailure records a file whose analysis failed inside a directory run
type FileFailure struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// Report aggregates the results of a directory analysis
type Report struct {
	Root     string        `json:"root"`
	Results  []*Result     `json:"results"`
	Failures []FileFailure `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Sort orders results and failures by path
func (r *Report) Sort() {
	sort.Slice(r.Results, func(i, j int) bool { return r.Results[i].Path < r.Results[j].Path })
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
}

// Summary holds report-wide totals
type Summary struct {
	Files      int              `json:"files"`
	Failed     int              `json:"failed"`
	Degraded   int              `json:"degraded"`
	Findings   int              `json:"findings"`
	BySeverity map[Severity]int `json:"by_severity"`
	Tokens     int64            `json:"tokens"`
}

// Summarize computes totals over all results
func (r *Report) Summarize() Summary {
	s := Summary{
		Files:      len(r.Results),
		Failed:     len(r.Failures),
		BySeverity: make(map[Severity]int, 3),
	}
	for _, res := range r.Results {
		if res.Degraded {
			s.Degraded++
		}
		s.Findings += len(res.Findings)
		s.Tokens += res.Usage.TotalTokens
		for sev, n := range res.CountBySeverity() {
			s.BySeverity[sev] += n
		}
	}
	return s
}
