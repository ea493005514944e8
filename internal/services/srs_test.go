package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleFirstCorrect(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rep, ease, next := Schedule(0, 2.5, true, now)
	assert.Equal(t, 1, rep)
	assert.InDelta(t, 2.5, ease, 1e-9) // q=4 leaves the factor unchanged
	assert.Equal(t, now.Add(24*time.Hour), next)
}

func TestScheduleSecondCorrect(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	rep, ease, next := Schedule(1, 2.5, true, now)
	assert.Equal(t, 2, rep)
	assert.InDelta(t, 2.5, ease, 1e-9)
	assert.Equal(t, now.Add(6*24*time.Hour), next)
}

func TestScheduleIncorrectResets(t *testing.T) {
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)

	rep, ease, next := Schedule(2, 2.5, false, now)
	assert.Equal(t, 0, rep)
	assert.InDelta(t, 1.70, ease, 1e-9) // 2.5 + 0.1 - 0.5 - 0.4
	assert.Equal(t, now.Add(24*time.Hour), next)
}

func TestScheduleLaterIntervalsGrow(t *testing.T) {
	now := time.Now().UTC()

	// Third correct: floor(6 * ef^(n-1)) with prior n=2.
	_, _, next := Schedule(2, 2.5, true, now)
	assert.Equal(t, now.Add(15*24*time.Hour), next) // floor(6*2.5) = 15

	_, _, next = Schedule(3, 2.5, true, now)
	assert.Equal(t, now.Add(37*24*time.Hour), next) // floor(6*6.25) = 37
}

func TestScheduleEasinessFloor(t *testing.T) {
	_, ease, _ := Schedule(0, 1.35, false, time.Now())
	assert.Equal(t, 1.3, ease)
}

func TestScheduleZeroEaseDefaults(t *testing.T) {
	rep, ease, _ := Schedule(0, 0, true, time.Now())
	assert.Equal(t, 1, rep)
	assert.InDelta(t, 2.5, ease, 1e-9)
}
