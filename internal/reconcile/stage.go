package reconcile

import (
	"fmt"

	"kal/internal/model"
)

// Stage names one step of a reconciliation pass.
type Stage string

// Read-only stages run before any destination mutation, so that feed,
// configuration and data errors always abort with the destination intact.
const (
	StageInit                   Stage = "INIT"
	StageFetchDestinationFuture Stage = "FETCH_DESTINATION_FUTURE"
	StageIdentifyManaged        Stage = "IDENTIFY_MANAGED"
	StageFetchSource            Stage = "FETCH_SOURCE"
	StageFilterFuture           Stage = "FILTER_FUTURE"
	StageApplyRules             Stage = "APPLY_RULES"
	StageTagOwnership           Stage = "TAG_OWNERSHIP"
	StageDeleteManaged          Stage = "DELETE_MANAGED"
	StageInsert                 Stage = "INSERT"
	StageDone                   Stage = "DONE"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageInit,
	StageFetchDestinationFuture,
	StageIdentifyManaged,
	StageFetchSource,
	StageFilterFuture,
	StageApplyRules,
	StageTagOwnership,
	StageDeleteManaged,
	StageInsert,
	StageDone,
}

// Mutates reports whether the stage writes to the destination.
func (s Stage) Mutates() bool {
	return s == StageDeleteManaged || s == StageInsert
}

// ErrMissingTime is the data error raised for an event that lacks a start or
// end time.
var ErrMissingTime = model.ErrMissingTime

// StageError reports which stage of which mirror failed.
type StageError struct {
	Mirror string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("mirror %q: %s: %v", e.Mirror, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
