package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
)

func TestExtractSources(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "full URLs",
			text: "See https://www.nasa.gov/mission and http://example.com/page.",
			want: []string{"https://www.nasa.gov/mission", "http://example.com/page"},
		},
		{
			name: "bare domain",
			text: "According to reuters.com the figure is accurate",
			want: []string{"reuters.com"},
		},
		{
			name: "short word false positive skipped",
			text: "apples and.com oranges",
			want: nil,
		},
		{
			name: "no sources",
			text: "A claim with no citations at all",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSources(tt.text))
		})
	}
}

func TestExtractSourcesCap(t *testing.T) {
	text := ""
	for i := 0; i < 15; i++ {
		text += " https://example.com/page-" + string(rune('a'+i))
	}
	assert.Len(t, ExtractSources(text), maxSourcesPerRequest)
}

func TestAnalyzeDeterministicAndCached(t *testing.T) {
	s := NewSourceCredibility(24 * time.Hour)
	t.Cleanup(s.Close)

	first := s.Analyze("https://www.nasa.gov/artemis")
	second := s.Analyze("https://www.nasa.gov/artemis")

	assert.Equal(t, first.CredibilityScore, second.CredibilityScore)
	assert.Same(t, first, second, "second analysis must come from cache")
}

func TestAnalyzeScoresByDomainClass(t *testing.T) {
	s := NewSourceCredibility(time.Hour)
	t.Cleanup(s.Close)

	gov := s.Analyze("https://www.nih.gov/research")
	social := s.Analyze("https://twitter.com/somebody/status/1")
	suspicious := s.Analyze("http://free-money.tk/offer")

	assert.Greater(t, gov.CredibilityScore, social.CredibilityScore)
	assert.Greater(t, social.CredibilityScore, suspicious.CredibilityScore)
	assert.GreaterOrEqual(t, gov.CredibilityScore, 0.8)
	assert.Less(t, suspicious.CredibilityScore, 0.5)
}

func TestCredibilityVerify(t *testing.T) {
	s := NewSourceCredibility(time.Hour)
	t.Cleanup(s.Close)

	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "cred-1",
		Content: "Per https://www.nasa.gov/ and https://www.nih.gov/ the results hold",
	})
	require.NoError(t, err)

	assert.Equal(t, verification.StrategySourceCredibility, outcome.Strategy)
	assert.Contains(t, []verification.Verdict{
		verification.VerdictVerifiedTrue, verification.VerdictPartiallyTrue,
	}, outcome.Verdict)
	assert.Equal(t, 2, outcome.EvidenceCount)
	assert.GreaterOrEqual(t, outcome.ProcessingTimeMs, int64(1))
}

func TestCredibilityVerifyNoSources(t *testing.T) {
	s := NewSourceCredibility(time.Hour)
	t.Cleanup(s.Close)

	outcome, err := s.Verify(context.Background(), &verification.Request{
		ID:      "cred-2",
		Content: "A claim citing nothing",
	})
	require.NoError(t, err)
	assert.Equal(t, verification.VerdictInsufficientData, outcome.Verdict)
}

func TestHealthTrackerErrorRate(t *testing.T) {
	tracker := newHealthTracker()

	for i := 0; i < 10; i++ {
		tracker.record(5*time.Millisecond, true)
	}
	healthy := tracker.snapshot()
	assert.True(t, healthy.Available)
	assert.Less(t, healthy.ErrorRate, 0.05)

	for i := 0; i < maxConsecutiveFailures; i++ {
		tracker.record(5*time.Millisecond, false)
	}
	assert.False(t, tracker.available())
	assert.Greater(t, tracker.snapshot().ErrorRate, 0.3)

	tracker.record(5*time.Millisecond, true)
	assert.True(t, tracker.available(), "a success resets consecutive failures")
}
