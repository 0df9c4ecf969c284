package domain

import "fmt"

// OutcomeKind separates data-validation skips from real failures.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of visiting one process node.
type Outcome struct {
	Kind   OutcomeKind
	Key    string
	Reason string
	Err    error
}

func Ok(key string) Outcome { return Outcome{Kind: OutcomeOK, Key: key} }

func Skipped(key, reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Key: key, Reason: reason}
}

func Failed(key string, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Key: key, Reason: err.Error(), Err: err}
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return fmt.Sprintf("%s %s", o.Kind, o.Key)
	}
	return fmt.Sprintf("%s %s: %s", o.Kind, o.Key, o.Reason)
}

// BuildReport lists what happened to every node the builder looked at.
type BuildReport struct {
	Outcomes []Outcome
}

// Record appends an outcome.
func (r *BuildReport) Record(o Outcome) { r.Outcomes = append(r.Outcomes, o) }

// Count returns the number of outcomes of the given kind.
func (r *BuildReport) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Complete reports whether no branch was aborted by a failure.
func (r *BuildReport) Complete() bool { return r.Count(OutcomeFailed) == 0 }

// SyncReport aggregates the synchronization of one tree.
type SyncReport struct {
	Created  int
	Reused   int
	Skipped  int
	Failed   int
	Archived int
	Outcomes []Outcome
}

// Record appends an outcome and updates the skip/failure counters.
func (r *SyncReport) Record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Kind {
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}
