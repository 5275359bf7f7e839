package strategies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

// fallacyPattern flags common informal fallacies by their markers.
type fallacyPattern struct {
	name    string
	markers []string
}

var fallacyPatterns = []fallacyPattern{
	{name: "appeal to popularity", markers: []string{"everyone knows", "everybody agrees", "most people believe"}},
	{name: "appeal to authority", markers: []string{"experts say", "scientists agree", "they say"}},
	{name: "false dichotomy", markers: []string{"either", "or else", "the only option"}},
	{name: "slippery slope", markers: []string{"will inevitably", "leads directly to", "next thing you know"}},
	{name: "circular reasoning", markers: []string{"because it is", "by definition true"}},
}

// conclusionMarkers indicate an argument structure worth examining.
var conclusionMarkers = []string{"therefore", "thus", "hence", "consequently", "so it follows", "which proves"}

var premiseMarkers = []string{"because", "since", "given that", "as shown by", "due to"}

// LogicalValidation inspects the argumentative structure of a claim and
// penalizes detectable fallacies.
type LogicalValidation struct {
	health *healthTracker
}

func NewLogicalValidation() *LogicalValidation {
	return &LogicalValidation{health: newHealthTracker()}
}

func (s *LogicalValidation) Kind() verification.StrategyKind {
	return verification.StrategyLogicalValidation
}

func (s *LogicalValidation) IsAvailable() bool { return s.health.available() }

func (s *LogicalValidation) Health() verification.StrategyHealth { return s.health.snapshot() }

func (s *LogicalValidation) Verify(ctx context.Context, req *verification.Request) (*verification.StrategyOutcome, error) {
	start := time.Now()
	lower := strings.ToLower(req.Content)

	var fallacies []string
	for _, fp := range fallacyPatterns {
		if containsAny(lower, fp.markers) {
			fallacies = append(fallacies, fp.name)
		}
	}

	hasConclusion := containsAny(lower, conclusionMarkers)
	hasPremise := containsAny(lower, premiseMarkers)

	var verdict verification.Verdict
	var confidence float64
	var reasoning string
	switch {
	case len(fallacies) > 0:
		verdict = verification.VerdictPartiallyTrue
		confidence = 0.4 - 0.05*float64(len(fallacies))
		if confidence < 0.2 {
			confidence = 0.2
		}
		reasoning = fmt.Sprintf("Detected fallacies: %s", strings.Join(fallacies, ", "))
	case hasConclusion && !hasPremise:
		verdict = verification.VerdictInsufficientData
		confidence = 0.35
		reasoning = "Conclusion drawn without supporting premises"
	case hasConclusion && hasPremise:
		verdict = verification.VerdictVerifiedTrue
		confidence = 0.65
		reasoning = "Argument carries both premises and conclusion with no detected fallacies"
	default:
		verdict = verification.VerdictInsufficientData
		confidence = 0.4
		reasoning = "No argumentative structure to validate"
	}

	s.health.record(time.Since(start), true)
	return &verification.StrategyOutcome{
		Strategy:         s.Kind(),
		Verdict:          verdict,
		Confidence:       confidence,
		Reasoning:        reasoning,
		ProcessingTimeMs: elapsedMs(start),
		EvidenceCount:    len(fallacies),
	}, nil
}

var _ verification.Strategy = (*LogicalValidation)(nil)
