package strategies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

// knowledgeEntry is a known fact pattern with its truth value.
type knowledgeEntry struct {
	patterns []string
	truth    bool
}

// baseKnowledge seeds the fact checker with uncontested facts so common
// claims resolve without an external call.
var baseKnowledge = []knowledgeEntry{
	{patterns: []string{"earth", "orbits", "sun"}, truth: true},
	{patterns: []string{"sun", "orbits", "earth"}, truth: false},
	{patterns: []string{"water", "boils", "100"}, truth: true},
	{patterns: []string{"earth", "flat"}, truth: false},
	{patterns: []string{"humans", "landed", "moon"}, truth: true},
	{patterns: []string{"speed", "light", "299"}, truth: true},
	{patterns: []string{"vaccines", "cause", "autism"}, truth: false},
}

// hedgeWords lower confidence: the claim itself is uncertain.
var hedgeWords = []string{"might", "maybe", "possibly", "allegedly", "reportedly", "some say", "could be"}

// absoluteWords flag overclaiming, which correlates with false claims.
var absoluteWords = []string{"always", "never", "everyone", "nobody", "all", "none", "guaranteed", "impossible"}

// FactChecking scores a claim against the seeded knowledge patterns and
// linguistic plausibility signals.
type FactChecking struct {
	knowledge []knowledgeEntry
	health    *healthTracker
}

func NewFactChecking() *FactChecking {
	return &FactChecking{
		knowledge: baseKnowledge,
		health:    newHealthTracker(),
	}
}

func (s *FactChecking) Kind() verification.StrategyKind {
	return verification.StrategyFactChecking
}

func (s *FactChecking) IsAvailable() bool { return s.health.available() }

func (s *FactChecking) Health() verification.StrategyHealth { return s.health.snapshot() }

func (s *FactChecking) Verify(ctx context.Context, req *verification.Request) (*verification.StrategyOutcome, error) {
	start := time.Now()
	lower := strings.ToLower(req.Content)

	// Knowledge-pattern match first: a direct hit decides the verdict.
	for _, entry := range s.knowledge {
		if matchesAll(lower, entry.patterns) {
			verdict := verification.VerdictVerifiedTrue
			if !entry.truth {
				verdict = verification.VerdictVerifiedFalse
			}
			s.health.record(time.Since(start), true)
			return &verification.StrategyOutcome{
				Strategy:   s.Kind(),
				Verdict:    verdict,
				Confidence: 0.9,
				Reasoning: fmt.Sprintf("Matched known fact pattern: %s",
					strings.Join(entry.patterns, " ")),
				ProcessingTimeMs: elapsedMs(start),
				EvidenceCount:    1,
			}, nil
		}
	}

	// Linguistic plausibility scoring.
	score := 0.5
	var signals []string

	hedges := countContains(lower, hedgeWords)
	if hedges > 0 {
		score -= 0.1 * float64(hedges)
		signals = append(signals, fmt.Sprintf("%d hedge terms", hedges))
	}

	absolutes := countContains(lower, absoluteWords)
	if absolutes > 0 {
		score -= 0.08 * float64(absolutes)
		signals = append(signals, fmt.Sprintf("%d absolute terms", absolutes))
	}

	if numberPattern.MatchString(req.Content) {
		score += 0.1
		signals = append(signals, "contains quantified detail")
	}
	if len(ExtractSources(req.Content)) > 0 {
		score += 0.15
		signals = append(signals, "cites sources")
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	var verdict verification.Verdict
	switch {
	case score >= 0.7:
		verdict = verification.VerdictPartiallyTrue
	case score <= 0.25:
		verdict = verification.VerdictVerifiedFalse
	default:
		verdict = verification.VerdictInsufficientData
	}

	reasoning := "No knowledge pattern matched; plausibility signals: none"
	if len(signals) > 0 {
		reasoning = "No knowledge pattern matched; plausibility signals: " + strings.Join(signals, ", ")
	}

	s.health.record(time.Since(start), true)
	return &verification.StrategyOutcome{
		Strategy:         s.Kind(),
		Verdict:          verdict,
		Confidence:       score,
		Reasoning:        reasoning,
		ProcessingTimeMs: elapsedMs(start),
	}, nil
}

func matchesAll(text string, patterns []string) bool {
	for _, p := range patterns {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

func countContains(text string, terms []string) int {
	count := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			count++
		}
	}
	return count
}

var _ verification.Strategy = (*FactChecking)(nil)
