package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligibleAcceptsOrdinaryGame(t *testing.T) {
	t.Parallel()

	assert.True(t, Eligible("Chrono Trigger (USA).smc"))
}

func TestEligibleRejectsExtensionMatch(t *testing.T) {
	t.Parallel()

	assert.False(t, Eligible("Chrono Trigger (USA).bin"))
	assert.False(t, Eligible("Chrono Trigger (USA).cue"))
}

func TestEligibleRejectsBracketedTerm(t *testing.T) {
	t.Parallel()

	assert.False(t, Eligible("Game Guide (Manual).pdf"))
	assert.False(t, Eligible("Patch [Update].zip"))
}

func TestEligibleRejectsTrailingWord(t *testing.T) {
	t.Parallel()

	assert.False(t, Eligible("System Firmware BIOS"))
}

func TestEligibleIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.False(t, Eligible("Game (MANUAL).PDF"))
}

func TestEligibleDoesNotFalsePositiveOnSubstring(t *testing.T) {
	t.Parallel()

	assert.True(t, Eligible("Bioshock Collection (USA).iso"))
}
