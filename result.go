package studiosync

import (
	"fmt"
	"time"

	"github.com/agentstation/studiosync/pkg/aggregator"
	"github.com/agentstation/studiosync/pkg/catalog"
	"github.com/agentstation/studiosync/pkg/reconciler"
)

// Status is the outcome of reconciling one studio.
type Status string

const (
	// StatusUpdated means the plan had changes; applied unless dry-run.
	StatusUpdated Status = "updated"
	// StatusComplete means registries matched but nothing needed changing.
	StatusComplete Status = "complete"
	// StatusNoMatch means no registry accepted a candidate.
	StatusNoMatch Status = "no-match"
	// StatusFailed means an error stopped the studio.
	StatusFailed Status = "failed"
	// StatusSkipped means the studio was already processed in this run.
	StatusSkipped Status = "skipped"
)

// Result is the outcome for one studio.
type Result struct {
	Studio  catalog.Studio     `json:"studio" yaml:"studio"`
	Status  Status             `json:"status" yaml:"status"`
	Matches []aggregator.Match `json:"matches,omitempty" yaml:"matches,omitempty"`
	Plan    *reconciler.Plan   `json:"plan,omitempty" yaml:"plan,omitempty"`
	Applied bool               `json:"applied" yaml:"applied"`
	DryRun  bool               `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	Err     error              `json:"-" yaml:"-"`
	Error   string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r *Result) fail(err error) *Result {
	r.Status = StatusFailed
	r.Err = err
	r.Error = err.Error()
	return r
}

// Report summarizes a batch run.
type Report struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
	Force     bool          `json:"force" yaml:"force"`
	Total     int           `json:"total" yaml:"total"`
	Updated   int           `json:"updated" yaml:"updated"`
	Complete  int           `json:"complete" yaml:"complete"`
	NoMatch   int           `json:"no_match" yaml:"no_match"`
	Failed    int           `json:"failed" yaml:"failed"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Results   []*Result     `json:"results" yaml:"results"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
}

func (r *Report) count(res *Result) {
	switch res.Status {
	case StatusUpdated:
		r.Updated++
	case StatusComplete:
		r.Complete++
	case StatusNoMatch:
		r.NoMatch++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// String returns the one-line summary.
func (r *Report) String() string {
	verb := "updated"
	if r.DryRun {
		verb = "would update"
	}
	return fmt.Sprintf("%d studios: %d %s, %d complete, %d no match, %d failed, %d skipped in %s",
		r.Total, r.Updated, verb, r.Complete, r.NoMatch, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
}
