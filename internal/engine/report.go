package engine

import (
	"fmt"
	"io"
	"sort"
)

// Report summarizes a run.
type Report struct {
	RunID  string `json:"run_id"`
	Rule   string `json:"rule"`
	DryRun bool   `json:"dry_run"`

	// Steps is the number of steps the dispatcher executed.
	Steps int `json:"steps"`
	// MaxSteps is the step limit of the run.
	MaxSteps int `json:"max_steps"`

	Created int `json:"created"`
	Fetched int `json:"fetched"`
	Updated int `json:"updated"`
	// Planned counts creations skipped by a dry run.
	Planned int `json:"planned"`

	Items []ItemResult `json:"items"`
}

// ItemResult is the final state of one item.
type ItemResult struct {
	Key     string `json:"key"`
	Status  Status `json:"status"`
	Planned bool   `json:"planned,omitempty"`
	Steps   int    `json:"steps"`
	Error   string `json:"error,omitempty"`
}

// Counts returns the number of items per final status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, it := range r.Items {
		counts[it.Status]++
	}
	return counts
}

// Synced returns the number of items that ended StatusSynced.
func (r *Report) Synced() int { return r.Counts()[StatusSynced] }

// Failed returns the number of items that ended StatusFailed.
func (r *Report) Failed() int { return r.Counts()[StatusFailed] }

// Unfinished returns the number of items that did not reach a terminal
// status, which only happens when a run was aborted.
func (r *Report) Unfinished() int {
	n := 0
	for _, it := range r.Items {
		if !it.Status.Terminal() {
			n++
		}
	}
	return n
}

// WriteText writes a human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	if _, err := fmt.Fprintf(w, "rule %s%s: %d items, %d steps\n", r.Rule, mode, len(r.Items), r.Steps); err != nil {
		return err
	}
	fmt.Fprintf(w, "  created=%d fetched=%d updated=%d planned=%d\n", r.Created, r.Fetched, r.Updated, r.Planned)

	counts := r.Counts()
	statuses := make([]Status, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	for _, s := range statuses {
		fmt.Fprintf(w, "  %s=%d\n", s, counts[s])
	}
	for _, it := range r.Items {
		if it.Error != "" {
			fmt.Fprintf(w, "  item %s: %s\n", it.Key, it.Error)
		}
	}
	return nil
}

func newItemResult(it *Item) ItemResult {
	res := ItemResult{Key: it.Key, Status: it.Status, Planned: it.Planned, Steps: it.Steps}
	if it.Err != nil {
		res.Error = it.Err.Error()
	}
	return res
}
