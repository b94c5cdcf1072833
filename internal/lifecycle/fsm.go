// Package lifecycle implements the per-file stage state machine of a session.
package lifecycle

import (
	"fmt"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.FileStage][]types.FileStage{
	types.StageIncoming: {types.StageCleaned, types.StageFailed},
	types.StageCleaned:  {types.StageEnriched, types.StageFailed},
	types.StageEnriched: {types.StageDegraded, types.StageFailed},
	types.StageDegraded: {types.StageArchived, types.StageFailed},
	types.StageArchived: {},
	types.StageFailed:   {},
}

// CanTransition checks if moving a file from one stage to another is valid.
func CanTransition(from, to types.FileStage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new stage, or an error if the transition is invalid.
func Transition(from, to types.FileStage) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the stage is final.
func IsTerminal(stage types.FileStage) bool {
	return stage == types.StageArchived || stage == types.StageFailed
}

// Tracker follows one file through its stages.
type Tracker struct {
	stage   types.FileStage
	history []types.FileStage
}

// NewTracker starts a file in the incoming stage.
func NewTracker() *Tracker {
	return &Tracker{stage: types.StageIncoming, history: []types.FileStage{types.StageIncoming}}
}

// Stage returns the current stage.
func (t *Tracker) Stage() types.FileStage { return t.stage }

// History returns every stage visited, in order.
func (t *Tracker) History() []types.FileStage {
	out := make([]types.FileStage, len(t.history))
	copy(out, t.history)
	return out
}

// Advance moves to the given stage.
func (t *Tracker) Advance(to types.FileStage) error {
	if err := Transition(t.stage, to); err != nil {
		return err
	}
	t.stage = to
	t.history = append(t.history, to)
	return nil
}

// Fail moves to the failed stage unless the file is already terminal.
func (t *Tracker) Fail() {
	if !IsTerminal(t.stage) {
		t.stage = types.StageFailed
		t.history = append(t.history, types.StageFailed)
	}
}
