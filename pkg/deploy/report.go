package deploy

// Outcome classifies what happened to one mapping entry during deploy.
type Outcome string

const (
	// OutcomeCreated means the symlink was newly created
	OutcomeCreated Outcome = "created"
	// OutcomeAlreadyCorrect means the link already pointed at the
	// resolved stored file
	OutcomeAlreadyCorrect Outcome = "uptodate"
	// OutcomeReplaced means pre-existing content was overwritten
	// because --force was given
	OutcomeReplaced Outcome = "replaced"
	// OutcomeConflictSkipped means unmanaged content pre-empted the
	// target and the entry was left untouched
	OutcomeConflictSkipped Outcome = "conflict"
	// OutcomeFailed means the entry could not be processed
	OutcomeFailed Outcome = "failed"
)

// EntryResult is the per-entry outcome of a deploy run.
type EntryResult struct {
	LogicalName string
	LocalPath   string
	StoredName  string
	Outcome     Outcome
	Err         error
}

// Report aggregates all entry results. One bad entry never blocks the
// others; the report is how partial failure reaches the caller.
type Report struct {
	Entries []EntryResult
}

// HasProblems reports whether any entry failed or conflicted, which
// drives the command's non-zero exit.
func (r *Report) HasProblems() bool {
	for _, e := range r.Entries {
		if e.Outcome == OutcomeFailed || e.Outcome == OutcomeConflictSkipped {
			return true
		}
	}
	return false
}

// Counts tallies entries per outcome for summary output.
func (r *Report) Counts() map[Outcome]int {
	counts := map[Outcome]int{}
	for _, e := range r.Entries {
		counts[e.Outcome]++
	}
	return counts
}
