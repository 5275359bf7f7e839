package strategies

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent)`)

var numericPattern = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d+)?`)

// StatisticalValidation checks numeric claims for plausibility: percentage
// bounds, suspicious over-precision, and impossible aggregates.
type StatisticalValidation struct {
	health *healthTracker
}

func NewStatisticalValidation() *StatisticalValidation {
	return &StatisticalValidation{health: newHealthTracker()}
}

func (s *StatisticalValidation) Kind() verification.StrategyKind {
	return verification.StrategyStatisticalValidation
}

func (s *StatisticalValidation) IsAvailable() bool { return s.health.available() }

func (s *StatisticalValidation) Health() verification.StrategyHealth { return s.health.snapshot() }

func (s *StatisticalValidation) Verify(ctx context.Context, req *verification.Request) (*verification.StrategyOutcome, error) {
	start := time.Now()

	percents := parsePercentages(req.Content)
	numbers := numericPattern.FindAllString(req.Content, -1)

	if len(percents) == 0 && len(numbers) == 0 {
		s.health.record(time.Since(start), true)
		return &verification.StrategyOutcome{
			Strategy:         s.Kind(),
			Verdict:          verification.VerdictInsufficientData,
			Confidence:       0.3,
			Reasoning:        "No numeric claims to validate",
			ProcessingTimeMs: elapsedMs(start),
		}, nil
	}

	var problems []string

	for _, p := range percents {
		if p < 0 || p > 100 {
			problems = append(problems, fmt.Sprintf("percentage %.1f outside [0,100]", p))
		}
	}

	// Percentages described as parts of one whole must not exceed 100.
	lower := strings.ToLower(req.Content)
	if len(percents) > 1 && (strings.Contains(lower, "of the") || strings.Contains(lower, "split")) {
		var sum float64
		for _, p := range percents {
			sum += p
		}
		if sum > 100.5 {
			problems = append(problems, fmt.Sprintf("component percentages sum to %.1f", sum))
		}
	}

	overPrecise := 0
	for _, n := range numbers {
		if i := strings.Index(n, "."); i >= 0 && len(n)-i-1 > 4 {
			overPrecise++
		}
	}
	if overPrecise > 0 {
		problems = append(problems, fmt.Sprintf("%d suspiciously over-precise values", overPrecise))
	}

	var verdict verification.Verdict
	var confidence float64
	var reasoning string
	switch {
	case len(problems) > 0:
		verdict = verification.VerdictVerifiedFalse
		confidence = 0.7
		reasoning = "Implausible statistics: " + strings.Join(problems, "; ")
	default:
		verdict = verification.VerdictPartiallyTrue
		confidence = 0.55
		reasoning = fmt.Sprintf("%d numeric values pass plausibility checks", len(numbers)+len(percents))
	}

	s.health.record(time.Since(start), true)
	return &verification.StrategyOutcome{
		Strategy:         s.Kind(),
		Verdict:          verdict,
		Confidence:       confidence,
		Reasoning:        reasoning,
		ProcessingTimeMs: elapsedMs(start),
		EvidenceCount:    len(numbers) + len(percents),
	}, nil
}

func parsePercentages(content string) []float64 {
	matches := percentPattern.FindAllStringSubmatch(content, -1)
	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			values = append(values, v)
		}
	}
	return values
}

var _ verification.Strategy = (*StatisticalValidation)(nil)
