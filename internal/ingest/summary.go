package ingest

import (
	"fmt"
	"sort"
	"time"

	"reelscout/internal/store"
	"reelscout/pkg/filter"
	"reelscout/pkg/models"
)

// SourceResult counts what happened to one source's records
type SourceResult struct {
	SourceID uint
	Kind     models.SourceKind
	Key      string
	Attempts int
	Fetched  int
	Filtered map[filter.Reason]int
	Invalid  int
	Inserted int
	Skipped  int
	Duration time.Duration
	Err      error

	// Interrupted is set when cancellation stopped the source part way
	Interrupted bool
}

// Failed reports whether the source was skipped for this run
func (r *SourceResult) Failed() bool {
	return r.Err != nil && !r.Interrupted
}

// FilteredTotal is the number of this source's records the filter rejected
func (r *SourceResult) FilteredTotal() int {
	n := 0
	for _, v := range r.Filtered {
		n += v
	}
	return n
}

func (r *SourceResult) counts() map[string]int {
	return map[string]int{
		"attempts": r.Attempts,
		"fetched":  r.Fetched,
		"filtered": r.FilteredTotal(),
		"invalid":  r.Invalid,
		"inserted": r.Inserted,
		"skipped":  r.Skipped,
	}
}

func (r *SourceResult) record(outcome store.Outcome) {
	switch outcome {
	case store.OutcomeInserted:
		r.Inserted++
	case store.OutcomeSkipped:
		r.Skipped++
	}
}

// Summary is the user-visible result of one ingest run
type Summary struct {
	RunID            string
	ProjectID        uint
	ProjectName      string
	StartedAt        time.Time
	FinishedAt       time.Time
	SourcesProcessed   int
	SourcesFailed      int
	SourcesInterrupted int
	Fetched          int
	Filtered         map[filter.Reason]int
	Invalid          int
	Inserted         int
	Skipped          int
	Sources          []SourceResult
	Errors           []string
}

func newSummary(runID string, pctx models.ProjectContext) *Summary {
	return &Summary{
		RunID:       runID,
		ProjectID:   pctx.ProjectID,
		ProjectName: pctx.ProjectName,
		StartedAt:   pctx.Time(),
		Filtered:    make(map[filter.Reason]int),
	}
}

// add folds a finished source into the totals. Callers hold the lock.
func (s *Summary) add(r SourceResult) {
	s.Sources = append(s.Sources, r)
	switch {
	case r.Interrupted:
		s.SourcesInterrupted++
	case r.Failed():
		s.SourcesFailed++
		s.Errors = append(s.Errors, fmt.Sprintf("%s/%s: %v", r.Kind, r.Key, r.Err))
	default:
		s.SourcesProcessed++
	}
	s.Fetched += r.Fetched
	for reason, n := range r.Filtered {
		s.Filtered[reason] += n
	}
	s.Invalid += r.Invalid
	s.Inserted += r.Inserted
	s.Skipped += r.Skipped
}

// FilteredTotal is the number of records rejected by the quality filter
func (s *Summary) FilteredTotal() int {
	n := 0
	for _, v := range s.Filtered {
		n += v
	}
	return n
}

// Duration of the run
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// sortSources orders per-source results by source ID for stable output
func (s *Summary) sortSources() {
	sort.Slice(s.Sources, func(i, j int) bool {
		return s.Sources[i].SourceID < s.Sources[j].SourceID
	})
}

// Stats flattens the summary for structured logging
func (s *Summary) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"project":             s.ProjectName,
		"sources_processed":   s.SourcesProcessed,
		"sources_failed":      s.SourcesFailed,
		"sources_interrupted": s.SourcesInterrupted,
		"fetched":             s.Fetched,
		"filtered":            s.FilteredTotal(),
		"invalid":             s.Invalid,
		"inserted":            s.Inserted,
		"skipped":             s.Skipped,
	}
	for reason, n := range s.Filtered {
		stats["filtered_"+string(reason)] = n
	}
	return stats
}
