package collector

import "time"

// TableOutcome is the result of one table's write in a cycle.
type TableOutcome struct {
	Table    string `json:"table"`
	Rows     int    `json:"rows"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Error    string `json:"error,omitempty"`
}

// CycleReport summarizes one cycle. Tables lists only tables that had rows,
// in write order.
type CycleReport struct {
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	Fetched     []string          `json:"fetched"`
	Skipped     []string          `json:"skipped"`
	FetchErrors map[string]string `json:"fetchErrors"`
	Tables      []TableOutcome    `json:"tables"`
	Aborted     string            `json:"aborted,omitempty"`
}

func newReport(started time.Time) *CycleReport {
	return &CycleReport{
		StartedAt:   started,
		FetchErrors: make(map[string]string),
	}
}

// OK reports whether every attempted table write succeeded. Per-symbol fetch
// failures do not count against the cycle.
func (r *CycleReport) OK() bool {
	if r == nil || r.Aborted != "" {
		return false
	}
	for _, t := range r.Tables {
		if t.Error != "" {
			return false
		}
	}
	return true
}

// Table returns the outcome for name, if it was written this cycle.
func (r *CycleReport) Table(name string) (TableOutcome, bool) {
	for _, t := range r.Tables {
		if t.Table == name {
			return t, true
		}
	}
	return TableOutcome{}, false
}

// FailedTables lists the tables whose write failed.
func (r *CycleReport) FailedTables() []string {
	var out []string
	for _, t := range r.Tables {
		if t.Error != "" {
			out = append(out, t.Table)
		}
	}
	return out
}

func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
