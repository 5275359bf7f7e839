package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

func TestFactCheckingKnownTrue(t *testing.T) {
	s := NewFactChecking()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "fc-1",
		Content: "The Earth orbits the Sun",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictVerifiedTrue, outcome.Verdict)
	assert.InDelta(t, 0.9, outcome.Confidence, 0.001)
}

func TestFactCheckingKnownFalse(t *testing.T) {
	s := NewFactChecking()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "fc-2",
		Content: "Everyone knows the Earth is flat",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictVerifiedFalse, outcome.Verdict)
}

func TestFactCheckingUnknownClaim(t *testing.T) {
	s := NewFactChecking()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "fc-3",
		Content: "The committee reviewed the proposal last week",
	})
	require.NoError(t, err)
	assert.NotEqual(t, verification.VerdictVerifiedTrue, outcome.Verdict)
	assert.GreaterOrEqual(t, outcome.Confidence, 0.0)
	assert.LessOrEqual(t, outcome.Confidence, 1.0)
}

func TestConsistencyDetectsContradiction(t *testing.T) {
	s := NewConsistencyCheck()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "cc-1",
		Content: "The bridge opened in 1995 for public traffic. The bridge never opened in 1995 for public traffic.",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictContradictory, outcome.Verdict)
	assert.Positive(t, outcome.EvidenceCount)
}

func TestConsistencyCleanContent(t *testing.T) {
	s := NewConsistencyCheck()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "cc-2",
		Content: "The bridge opened in 1995. Traffic volumes rose steadily afterwards.",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictVerifiedTrue, outcome.Verdict)
}

func TestConsistencySingleSentence(t *testing.T) {
	s := NewConsistencyCheck()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "cc-3",
		Content: "One lone statement",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictInsufficientData, outcome.Verdict)
}

func TestLogicalDetectsFallacy(t *testing.T) {
	s := NewLogicalValidation()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "lv-1",
		Content: "Everyone knows this is the right approach, therefore we should adopt it",
	})
	require.NoError(t, err)
	assert.Contains(t, outcome.Reasoning, "appeal to popularity")
}

func TestLogicalWellFormedArgument(t *testing.T) {
	s := NewLogicalValidation()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "lv-2",
		Content: "Because the samples degraded, the results are unreliable, therefore the trial must rerun",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictVerifiedTrue, outcome.Verdict)
}

func TestStatisticalImpossiblePercentage(t *testing.T) {
	s := NewStatisticalValidation()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "sv-1",
		Content: "Exactly 140 percent of respondents agreed",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictVerifiedFalse, outcome.Verdict)
}

func TestStatisticalPlausibleNumbers(t *testing.T) {
	s := NewStatisticalValidation()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "sv-2",
		Content: "About 62 percent of the 1500 participants completed the survey",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictPartiallyTrue, outcome.Verdict)
}

func TestStatisticalNoNumbers(t *testing.T) {
	s := NewStatisticalValidation()
	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "sv-3",
		Content: "A purely qualitative statement",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictInsufficientData, outcome.Verdict)
}
