package derive

import (
	"go.uber.org/zap"
)

// maxSamples caps the respondent IDs kept per issue.
const maxSamples = 5

// Issue is a per-row data-quality gap that was nulled rather than raised.
type Issue struct {
	Module  string
	Kind    string
	Count   int
	Samples []string // first respondent IDs affected
}

// Quality collects issues across modules for the run summary.
type Quality struct {
	issues []Issue
}

// Issues returns the collected issues in the order they were reported.
func (q *Quality) Issues() []Issue {
	if q == nil {
		return nil
	}
	out := make([]Issue, len(q.issues))
	copy(out, q.issues)
	return out
}

// Total returns the number of affected rows over all issues.
func (q *Quality) Total() int {
	if q == nil {
		return 0
	}
	n := 0
	for _, is := range q.issues {
		n += is.Count
	}
	return n
}

type tally struct {
	Issue
}

func newTally(module, kind string) *tally {
	return &tally{Issue{Module: module, Kind: kind}}
}

func (t *tally) add(id string) {
	t.Count++
	if len(t.Samples) < maxSamples {
		t.Samples = append(t.Samples, id)
	}
}

// flush logs the issue once and records it on q. Empty tallies are ignored.
func (t *tally) flush(q *Quality) {
	if t.Count == 0 {
		return
	}
	zap.L().With(zap.String("component", "derive")).Warn("data quality issue",
		zap.String("module", t.Module),
		zap.String("issue", t.Kind),
		zap.Int("count", t.Count),
		zap.Strings("sample_ids", t.Samples),
	)
	if q != nil {
		q.issues = append(q.issues, t.Issue)
	}
}
