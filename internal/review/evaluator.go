package review

import (
	"time"
	"unicode/utf8"
)

const (
	// Share of the word length allowed as mistakes and as hints
	tolerance = 0.25
	// Time budget per letter
	perLetter = 2500 * time.Millisecond
)

// Evaluation is the verdict on one letter-arrangement attempt
type Evaluation struct {
	Passed      bool
	Mistakes    int
	TookTooLong bool
	MaxMistakes int
	MaxHints    int
	Expected    time.Duration
}

// Limits returns the mistake and hint budgets and the expected time for a word
func Limits(target string) (maxMistakes, maxHints int, expected time.Duration) {
	n := utf8.RuneCountInString(target)
	allowed := int(float64(n) * tolerance)
	return allowed, allowed, time.Duration(n) * perLetter
}

// Mistakes counts positions where the attempt differs from the target.
// Words of different length count as wrong everywhere.
func Mistakes(target, attempt string) int {
	t, a := []rune(target), []rune(attempt)
	if len(t) != len(a) {
		if len(t) > len(a) {
			return len(t)
		}
		return len(a)
	}
	mistakes := 0
	for i := range t {
		if t[i] != a[i] {
			mistakes++
		}
	}
	return mistakes
}

// Evaluate judges a finished attempt
func Evaluate(target, attempt string, hints int, elapsed time.Duration) Evaluation {
	maxMistakes, maxHints, expected := Limits(target)
	mistakes := Mistakes(target, attempt)
	tooLong := elapsed > expected
	return Evaluation{
		Passed:      mistakes <= maxMistakes && hints <= maxHints && !tooLong,
		Mistakes:    mistakes,
		TookTooLong: tooLong,
		MaxMistakes: maxMistakes,
		MaxHints:    maxHints,
		Expected:    expected,
	}
}
