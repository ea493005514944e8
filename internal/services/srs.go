package services

import (
	"math"
	"time"
)

// Spaced-repetition scheduling for puzzle review, an SM-2 variant. Correct
// answers grade as q=4, incorrect as q=0; the interval grows off the
// repetition count the attempt started from.

const (
	srsDefaultEase = 2.5
	srsMinEase     = 1.3
)

// Schedule computes the next review from the prior repetition state. It
// returns the new repetition count, the new easiness factor, and the review
// time. Pass repetition 0 and easiness 2.5 for a first attempt.
func Schedule(repetition int, easiness float64, correct bool, now time.Time) (int, float64, time.Time) {
	if easiness == 0 {
		easiness = srsDefaultEase
	}

	q := 0.0
	if correct {
		q = 4.0
	}
	d := 5.0 - q
	easiness = easiness + 0.1 - 0.02*d*d - 0.08*d
	if easiness < srsMinEase {
		easiness = srsMinEase
	}

	if !correct {
		return 0, easiness, now.Add(24 * time.Hour)
	}

	var days int
	switch repetition {
	case 0:
		days = 1
	case 1:
		days = 6
	default:
		days = int(math.Floor(6 * math.Pow(easiness, float64(repetition-1))))
	}
	return repetition + 1, easiness, now.Add(time.Duration(days) * 24 * time.Hour)
}
