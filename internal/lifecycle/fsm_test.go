package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from  types.FileStage
		to    types.FileStage
		valid bool
	}{
		{types.StageIncoming, types.StageCleaned, true},
		{types.StageIncoming, types.StageFailed, true},
		{types.StageIncoming, types.StageEnriched, false},
		{types.StageCleaned, types.StageEnriched, true},
		{types.StageCleaned, types.StageDegraded, false},
		{types.StageEnriched, types.StageDegraded, true},
		{types.StageEnriched, types.StageFailed, true},
		{types.StageDegraded, types.StageArchived, true},
		{types.StageDegraded, types.StageCleaned, false},
		{types.StageArchived, types.StageFailed, false},
		{types.StageFailed, types.StageIncoming, false},
		{types.FileStage("BOGUS"), types.StageCleaned, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransition(tt.from, tt.to))
			err := Transition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(types.StageArchived))
	assert.True(t, IsTerminal(types.StageFailed))
	assert.False(t, IsTerminal(types.StageIncoming))
	assert.False(t, IsTerminal(types.StageCleaned))
	assert.False(t, IsTerminal(types.StageDegraded))
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, types.StageIncoming, tr.Stage())

	require.NoError(t, tr.Advance(types.StageCleaned))
	// Skipping a stage fails and leaves the tracker where it was
	assert.Error(t, tr.Advance(types.StageDegraded))
	assert.Equal(t, types.StageCleaned, tr.Stage())

	tr.Fail()
	assert.Equal(t, types.StageFailed, tr.Stage())
	tr.Fail()
	assert.Equal(t, []types.FileStage{types.StageIncoming, types.StageCleaned, types.StageFailed}, tr.History())
}
