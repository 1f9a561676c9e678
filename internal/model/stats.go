package model

// MeanRuntime computes the mean runtime across a set of successful Run
// outcomes — the Go equivalent of the original's otherStats summary
// statistic. Resolves Design Notes §9 Open Question 2: the original
// divides by the length of the (possibly empty) list of successful
// runs, which raises when no run succeeded; here an empty input
// returns (0, false) instead, so the caller can log a warning and omit
// the field rather than emit NaN/Inf into the JSON summary.
func MeanRuntime(successfulRuns []RunOutcome) (mean float64, ok bool) {
	if len(successfulRuns) == 0 {
		return 0, false
	}
	var sum float64
	for _, r := range successfulRuns {
		sum += r.Runtime
	}
	return sum / float64(len(successfulRuns)), true
}
