package strategies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

// negationMarkers flag a negated restatement of an earlier sentence.
var negationMarkers = []string{"not", "never", "no", "isn't", "aren't", "wasn't", "weren't", "doesn't", "don't", "didn't", "cannot", "can't"}

// contrastMarkers connect sentences that may contradict each other.
var contrastMarkers = []string{"however", "but", "although", "on the other hand", "contrary", "despite", "yet"}

// ConsistencyCheck scans a claim for internal contradictions: sentence
// pairs that share their significant terms while one side is negated.
type ConsistencyCheck struct {
	health *healthTracker
}

func NewConsistencyCheck() *ConsistencyCheck {
	return &ConsistencyCheck{health: newHealthTracker()}
}

func (s *ConsistencyCheck) Kind() verification.StrategyKind {
	return verification.StrategyConsistencyCheck
}

func (s *ConsistencyCheck) IsAvailable() bool { return s.health.available() }

func (s *ConsistencyCheck) Health() verification.StrategyHealth { return s.health.snapshot() }

func (s *ConsistencyCheck) Verify(ctx context.Context, req *verification.Request) (*verification.StrategyOutcome, error) {
	start := time.Now()

	sentences := splitSentences(req.Content)
	if len(sentences) < 2 {
		s.health.record(time.Since(start), true)
		return &verification.StrategyOutcome{
			Strategy:         s.Kind(),
			Verdict:          verification.VerdictInsufficientData,
			Confidence:       0.3,
			Reasoning:        "Single statement, nothing to cross-check internally",
			ProcessingTimeMs: elapsedMs(start),
		}, nil
	}

	contradictions := 0
	contrastCount := 0
	for i := 0; i < len(sentences); i++ {
		a := strings.ToLower(strings.TrimSpace(sentences[i]))
		if containsAny(a, contrastMarkers) {
			contrastCount++
		}
		for j := i + 1; j < len(sentences); j++ {
			b := strings.ToLower(strings.TrimSpace(sentences[j]))
			if contradicts(a, b) {
				contradictions++
			}
		}
	}

	var verdict verification.Verdict
	var confidence float64
	var reasoning string
	switch {
	case contradictions > 0:
		verdict = verification.VerdictContradictory
		confidence = 0.7 + 0.05*float64(contradictions)
		if confidence > 0.9 {
			confidence = 0.9
		}
		reasoning = fmt.Sprintf("%d contradicting sentence pairs found across %d sentences",
			contradictions, len(sentences))
	case contrastCount > 1:
		verdict = verification.VerdictPartiallyTrue
		confidence = 0.5
		reasoning = fmt.Sprintf("%d contrast markers suggest qualified statements", contrastCount)
	default:
		verdict = verification.VerdictVerifiedTrue
		confidence = 0.6
		reasoning = fmt.Sprintf("No internal contradictions across %d sentences", len(sentences))
	}

	s.health.record(time.Since(start), true)
	return &verification.StrategyOutcome{
		Strategy:         s.Kind(),
		Verdict:          verdict,
		Confidence:       confidence,
		Reasoning:        reasoning,
		ProcessingTimeMs: elapsedMs(start),
		EvidenceCount:    contradictions,
	}, nil
}

// contradicts reports whether b negates a (or vice versa): the sentences
// share most significant terms but differ in negation.
func contradicts(a, b string) bool {
	aTerms := termSet(a)
	bTerms := termSet(b)
	if len(aTerms) == 0 || len(bTerms) == 0 {
		return false
	}

	shared := 0
	for t := range aTerms {
		if bTerms[t] {
			shared++
		}
	}
	smaller := len(aTerms)
	if len(bTerms) < smaller {
		smaller = len(bTerms)
	}
	if float64(shared)/float64(smaller) < 0.6 {
		return false
	}

	return negated(a) != negated(b)
}

func negated(sentence string) bool {
	for _, w := range strings.Fields(sentence) {
		for _, marker := range negationMarkers {
			if w == marker {
				return true
			}
		}
	}
	return false
}

func termSet(sentence string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(sentence) {
		w = strings.Trim(w, ".,;:!?\"'")
		if len(w) < 4 {
			continue
		}
		isNegation := false
		for _, marker := range negationMarkers {
			if w == marker {
				isNegation = true
				break
			}
		}
		if !isNegation {
			set[w] = true
		}
	}
	return set
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

var _ verification.Strategy = (*ConsistencyCheck)(nil)
