package verification

import (
	"fmt"
	"sort"
)

// consensusFactor maps the consensus ratio to a confidence multiplier.
func consensusFactor(ratio float64) float64 {
	switch {
	case ratio >= 0.8:
		return 1.0
	case ratio >= 0.6:
		return 0.8
	case ratio >= 0.4:
		return 0.6
	default:
		return 0.4
	}
}

// aggregate derives a single verdict and confidence from the strategy
// outcomes. It is deterministic given the same multiset of outcomes:
// plurality wins, ties resolve in the fixed strategy priority order, and a
// plurality short of strict majority across distinct verdicts yields
// Contradictory.
func aggregate(outcomes []StrategyOutcome) (Verdict, float64, []string, []string, []string) {
	valid := make([]StrategyOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Verdict != VerdictUnverified {
			valid = append(valid, o)
		}
	}

	if len(valid) == 0 {
		reasoning := []string{
			fmt.Sprintf("Consensus verdict: %s", VerdictUnverified),
			fmt.Sprintf("%d verification methods applied", len(outcomes)),
		}
		for _, o := range outcomes {
			reasoning = append(reasoning, fmt.Sprintf("%s: %s", o.Strategy, o.Reasoning))
		}
		return VerdictUnverified, 0, reasoning, nil, nil
	}

	type tally struct {
		verdict  Verdict
		count    int
		bestRank int
	}
	counts := make(map[Verdict]*tally)
	for _, o := range valid {
		t, ok := counts[o.Verdict]
		if !ok {
			t = &tally{verdict: o.Verdict, bestRank: strategyRank(o.Strategy)}
			counts[o.Verdict] = t
		}
		t.count++
		if r := strategyRank(o.Strategy); r < t.bestRank {
			t.bestRank = r
		}
	}

	tallies := make([]*tally, 0, len(counts))
	for _, t := range counts {
		tallies = append(tallies, t)
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].count != tallies[j].count {
			return tallies[i].count > tallies[j].count
		}
		return tallies[i].bestRank < tallies[j].bestRank
	})

	top := tallies[0]
	verdict := top.verdict
	if len(tallies) > 1 && top.count*2 <= len(valid) {
		verdict = VerdictContradictory
	}

	var confidenceSum float64
	for _, o := range valid {
		confidenceSum += o.Confidence
	}
	avgConfidence := confidenceSum / float64(len(valid))
	ratio := float64(top.count) / float64(len(valid))
	confidence := clampConfidence(avgConfidence * consensusFactor(ratio))

	reasoning := make([]string, 0, len(outcomes)+2)
	reasoning = append(reasoning, fmt.Sprintf("Consensus verdict: %s", verdict))
	reasoning = append(reasoning, fmt.Sprintf("%d verification methods applied", len(outcomes)))
	for _, o := range outcomes {
		reasoning = append(reasoning, fmt.Sprintf("%s: %s", o.Strategy, o.Reasoning))
	}

	var supporting, contradicting []string
	for _, o := range valid {
		if o.Verdict == top.verdict {
			supporting = append(supporting, fmt.Sprintf("%s: %s", o.Strategy, o.Reasoning))
		} else {
			contradicting = append(contradicting, fmt.Sprintf("%s: %s", o.Strategy, o.Reasoning))
		}
	}

	return verdict, confidence, reasoning, supporting, contradicting
}
