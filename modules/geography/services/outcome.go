package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/geo-migrate/modules/geography/domain/geography"
)

type Phase string

const (
	PhaseRoots     Phase = "roots"
	PhaseChildren  Phase = "children"
	PhaseStates    Phase = "states"
	PhaseNormalize Phase = "normalize_city"
	PhaseAssign    Phase = "assign"
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

type SkipReason string

const (
	SkipAlreadyExists          SkipReason = "already_exists"
	SkipDuplicateInBatch       SkipReason = "duplicate_in_batch"
	SkipMissingKey             SkipReason = "missing_key"
	SkipMissingParent          SkipReason = "missing_parent"
	SkipMissingParentGeography SkipReason = "missing_parent_geography"
	SkipNoGeographyMatch       SkipReason = "no_geography_match"
	SkipLinkExists             SkipReason = "link_exists"
	SkipPairExists             SkipReason = "pair_exists"
	SkipInsertFailed           SkipReason = "insert_failed"
	SkipUpdateFailed           SkipReason = "update_failed"
)

// Unresolved reports whether the skip leaves work that a later run or an
// operator has to pick up.
func (r SkipReason) Unresolved() bool {
	switch r {
	case SkipMissingKey, SkipMissingParent, SkipMissingParentGeography,
		SkipNoGeographyMatch, SkipInsertFailed, SkipUpdateFailed:
		return true
	default:
		return false
	}
}

// PhaseReport tallies the row outcomes of a single pass.
type PhaseReport struct {
	Phase      Phase
	StartedAt  time.Time
	FinishedAt time.Time

	Created      int
	Updated      int
	Skipped      map[SkipReason]int
	RowsAffected int64
	CapReached   bool

	CreatedIDs []uuid.UUID
	UpdatedIDs []uuid.UUID

	// Err is the read or batch-write failure that cut the pass short.
	Err error
}

func newPhaseReport(phase Phase) *PhaseReport {
	return &PhaseReport{
		Phase:     phase,
		StartedAt: time.Now().UTC(),
		Skipped:   map[SkipReason]int{},
	}
}

func (r *PhaseReport) created(id uuid.UUID) {
	r.Created++
	r.CreatedIDs = append(r.CreatedIDs, id)
	recordRow(r.Phase, string(OutcomeCreated))
}

func (r *PhaseReport) updated(id uuid.UUID) {
	r.Updated++
	r.UpdatedIDs = append(r.UpdatedIDs, id)
	recordRow(r.Phase, string(OutcomeUpdated))
}

func (r *PhaseReport) skipped(reason SkipReason) {
	r.Skipped[reason]++
	recordRow(r.Phase, string(reason))
}

func (r *PhaseReport) fail(err error) {
	r.Err = err
	recordPhaseError(r.Phase)
}

func (r *PhaseReport) finish() *PhaseReport {
	r.FinishedAt = time.Now().UTC()
	return r
}

func (r *PhaseReport) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

func (r *PhaseReport) Unresolved() int {
	n := 0
	for reason, c := range r.Skipped {
		if reason.Unresolved() {
			n += c
		}
	}
	return n
}

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFatal     Status = "fatal"
)

type RunReport struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Inventory  geography.Inventory
	Phases     []*PhaseReport

	// Err is set only for failures that aborted the run.
	Err error
}

func newRunReport() *RunReport {
	return &RunReport{RunID: uuid.New(), StartedAt: time.Now().UTC()}
}

func (r *RunReport) add(p *PhaseReport) {
	r.Phases = append(r.Phases, p)
}

func (r *RunReport) Phase(phase Phase) *PhaseReport {
	for _, p := range r.Phases {
		if p.Phase == phase {
			return p
		}
	}
	return nil
}

func (r *RunReport) Status() Status {
	if r.Err != nil {
		return StatusFatal
	}
	for _, p := range r.Phases {
		if p.Err != nil || p.Unresolved() > 0 {
			return StatusPartial
		}
	}
	return StatusSucceeded
}
