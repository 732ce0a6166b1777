package service

// ScorePercent converts a raw score to a whole percentage, rounding halves up
// (1/8 = 12.5% scores 13%, 2/3 = 66.67% scores 67%). Integer arithmetic keeps
// the result exact at the threshold boundary.
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (correct*200 + total) / (2 * total)
}

// Passed reports whether a percentage meets the passing threshold.
func Passed(scorePercent, passingScorePercent int) bool {
	return scorePercent >= passingScorePercent
}
