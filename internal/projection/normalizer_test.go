package projection_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/hoopsight/projection-engine/internal/projection"
)

func testNormalizer() *projection.TeamMinutesNormalizer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return projection.NewTeamMinutesNormalizer(projection.DefaultModelConfig(), log)
}

func uniformCandidates(n int, minutes float64) []projection.RotationCandidate {
	candidates := make([]projection.RotationCandidate, n)
	for i := range candidates {
		candidates[i] = projection.RotationCandidate{
			PlayerID:        uint(i + 1),
			BaselineMinutes: minutes,
			Last5Avg:        minutes,
			SeasonAvg:       minutes,
		}
	}
	return candidates
}

func TestNormalizer_AbsorbsAbsenceAboveBaseline(t *testing.T) {
	tn := testNormalizer()

	// Seven uniform 30-minute players after a 32-minute starter went down;
	// the injury step handed the survivors his redistributed minutes.
	candidates := uniformCandidates(7, 30)
	share := 32.0 * 0.75 / 7
	for i := range candidates {
		candidates[i].MinutesDelta = share
	}

	result := tn.Normalize(candidates)
	assert.Len(t, result, 7)

	total := 0.0
	raised := false
	for _, minutes := range result {
		total += minutes
		assert.LessOrEqual(t, minutes, 38.0+1e-9)
		if minutes > 30.0 {
			raised = true
		}
	}
	assert.InDelta(t, 240.0, total, 0.1)
	assert.True(t, raised, "someone must absorb the missing starter's minutes")
}

func TestNormalizer_FullRosterBudgetAndBounds(t *testing.T) {
	tn := testNormalizer()

	baselines := []float64{36, 34, 33, 30, 28, 24, 20, 15, 10, 8, 6, 5}
	candidates := make([]projection.RotationCandidate, len(baselines))
	for i, m := range baselines {
		candidates[i] = projection.RotationCandidate{
			PlayerID:        uint(i + 1),
			BaselineMinutes: m,
			Last5Avg:        m,
			SeasonAvg:       m,
		}
	}

	result := tn.Normalize(candidates)

	total := 0.0
	for _, minutes := range result {
		assert.GreaterOrEqual(t, minutes, 0.0)
		assert.LessOrEqual(t, minutes, 38.0+1e-9)
		total += minutes
	}
	assert.InDelta(t, 240.0, total, 0.5)

	// Deep-bench players never crack the rotation.
	assert.Equal(t, 0.0, result[10])
	assert.Equal(t, 0.0, result[11])
	assert.Equal(t, 0.0, result[12])

	// The star keeps a floor near his established workload.
	assert.GreaterOrEqual(t, result[1], 35.0)
}

func TestNormalizer_CapRespectedUnderScarcity(t *testing.T) {
	tn := testNormalizer()

	// Six players cannot legally fill 240 under the per-player cap
	// (6 x 38 = 228). Everything pins at the cap and the shortfall is logged.
	candidates := uniformCandidates(6, 30)
	result := tn.Normalize(candidates)

	for _, minutes := range result {
		assert.LessOrEqual(t, minutes, 38.0+1e-9)
	}
}

func TestNormalizer_EmptyRoster(t *testing.T) {
	tn := testNormalizer()
	assert.Empty(t, tn.Normalize(nil))
}
