// Package pipeline runs the trending refresh: it fetches, normalizes and
// deduplicates candidates round by round until enough genuinely new records
// are found, then commits them to the trending and catalog stores.
package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/dedup"
)

// StoreTally counts insert outcomes for one store.
type StoreTally struct {
	Added    int `json:"added"`
	Existing int `json:"existing"`
	Errors   int `json:"errors"`
}

// PerStore holds the tallies of both stores.
type PerStore struct {
	Trending StoreTally `json:"trending"`
	Catalog  StoreTally `json:"catalog"`
}

// Result is what a refresh reports to its caller. A run that finds fewer
// records than requested still succeeds; compare NewRecordCount with
// TargetCount or check Shortfall.
type Result struct {
	RunID                 string   `json:"runId"`
	Success               bool     `json:"success"`
	TargetCount           int      `json:"targetCount"`
	NewRecordCount        int      `json:"newRecordCount"`
	Shortfall             int      `json:"shortfall"`
	Attempts              int      `json:"attempts"`
	PerStore              PerStore `json:"perStore"`
	ProcessingTimeSeconds float64  `json:"processingTimeSeconds"`
	Error                 string   `json:"error,omitempty"`

	// Records are the new records committed by this run.
	Records []catalog.Record `json:"-"`
}

// PipelineRun is the state of one refresh. Nothing in it outlives the run.
type PipelineRun struct {
	ID        uuid.UUID
	Target    int
	StartedAt time.Time

	rounds     int
	fetched    int
	rejected   int
	existing   int
	candidates []catalog.Record
	seen       *dedup.Deduper
}

func newRun(target int, startedAt time.Time) *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New(),
		Target:    target,
		StartedAt: startedAt,
		seen:      dedup.New(),
	}
}

// Remaining is how many more new records the run needs.
func (r *PipelineRun) Remaining() int {
	return max(r.Target-len(r.candidates), 0)
}

// Done reports whether the target has been reached.
func (r *PipelineRun) Done() bool {
	return len(r.candidates) >= r.Target
}

// accept appends rec unless it duplicates an earlier candidate.
func (r *PipelineRun) accept(rec catalog.Record) bool {
	if r.Done() || r.seen.SeenAndRecord(rec) {
		return false
	}
	r.candidates = append(r.candidates, rec)
	return true
}

// Candidates returns the accepted records in the order they were found.
func (r *PipelineRun) Candidates() []catalog.Record {
	return r.candidates
}

func (r *PipelineRun) result() Result {
	return Result{
		RunID:          r.ID.String(),
		TargetCount:    r.Target,
		NewRecordCount: len(r.candidates),
		Shortfall:      r.Remaining(),
		Attempts:       r.rounds,
		Records:        r.candidates,
	}
}
