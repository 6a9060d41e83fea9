package domain

import "fmt"

// Stage is the progress of a single optimization run.
type Stage string

const (
	StageValidating     Stage = "VALIDATING"
	StageClustering     Stage = "CLUSTERING"
	StageMatrixBuilding Stage = "MATRIX_BUILDING"
	StageSolving        Stage = "SOLVING"
	StageReconciling    Stage = "RECONCILING"
	StageDone           Stage = "DONE"
	StageError          Stage = "ERROR"
)

var nextStage = map[Stage]Stage{
	StageValidating:     StageClustering,
	StageClustering:     StageMatrixBuilding,
	StageMatrixBuilding: StageSolving,
	StageSolving:        StageReconciling,
	StageReconciling:    StageDone,
}

func (s Stage) Terminal() bool { return s == StageDone || s == StageError }

// CanTransition reports whether from -> to is a legal move.
// Any non-terminal stage may fail into ERROR. A run without orders finishes
// straight from VALIDATING.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageError || (from == StageValidating && to == StageDone) {
		return true
	}
	return nextStage[from] == to
}

// StageTracker records the stages a run passed through.
type StageTracker struct {
	current Stage
	history []Stage
}

func NewStageTracker() *StageTracker {
	return &StageTracker{current: StageValidating, history: []Stage{StageValidating}}
}

func (t *StageTracker) Current() Stage { return t.current }

func (t *StageTracker) History() []Stage { return append([]Stage(nil), t.history...) }

func (t *StageTracker) Advance(to Stage) error {
	if !CanTransition(t.current, to) {
		return fmt.Errorf("stage: illegal transition %s -> %s", t.current, to)
	}
	t.current = to
	t.history = append(t.history, to)
	return nil
}
