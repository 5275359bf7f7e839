package strategies

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/resilience"
	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
	"github.com/Arbiter-Network/adjudication_layer/internal/verification/search"
)

// CrossReferenceConfig tunes the cross-reference strategy.
type CrossReferenceConfig struct {
	MinConsensus  float64
	MaxClaims     int
	MinReferences int
	MockFallback  bool
}

// DefaultCrossReferenceConfig returns sensible defaults.
func DefaultCrossReferenceConfig() CrossReferenceConfig {
	return CrossReferenceConfig{
		MinConsensus:  0.6,
		MaxClaims:     5,
		MinReferences: 2,
		MockFallback:  true,
	}
}

// CrossReference verifies a claim by querying external search providers and
// measuring how many independent references support it.
type CrossReference struct {
	config    CrossReferenceConfig
	providers []search.Provider
	breakers  map[string]*resilience.Breaker
	retryCfg  resilience.RetryConfig
	mock      *search.MockProvider
	logger    *logging.Logger
	health    *healthTracker
}

// NewCrossReference creates the strategy. providers may be empty, in which
// case every verification uses the deterministic mock.
func NewCrossReference(cfg CrossReferenceConfig, providers []search.Provider, logger *logging.Logger) *CrossReference {
	if cfg.MinConsensus <= 0 || cfg.MinConsensus > 1 {
		cfg.MinConsensus = 0.6
	}
	if cfg.MaxClaims < 1 {
		cfg.MaxClaims = 5
	}
	if cfg.MinReferences < 1 {
		cfg.MinReferences = 2
	}

	breakers := make(map[string]*resilience.Breaker, len(providers))
	for _, p := range providers {
		breakerCfg := resilience.DefaultBreakerConfig(p.Name())
		breakerCfg.Service = "cross-reference"
		breakerCfg.Logger = logger
		breakers[p.Name()] = resilience.NewBreaker(breakerCfg)
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.Service = "cross-reference"
	retryCfg.MaxAttempts = 2
	retryCfg.InitialDelay = 200 * time.Millisecond

	return &CrossReference{
		config:    cfg,
		providers: providers,
		breakers:  breakers,
		retryCfg:  retryCfg,
		mock:      search.NewMockProvider(),
		logger:    logger,
		health:    newHealthTracker(),
	}
}

func (s *CrossReference) Kind() verification.StrategyKind {
	return verification.StrategyCrossReference
}

func (s *CrossReference) IsAvailable() bool { return s.health.available() }

func (s *CrossReference) Health() verification.StrategyHealth { return s.health.snapshot() }

// Verify extracts checkable claims, fans them out to the providers, and
// maps the supporting/contradicting split onto a verdict.
func (s *CrossReference) Verify(ctx context.Context, req *verification.Request) (*verification.StrategyOutcome, error) {
	start := time.Now()

	claims := extractClaims(req.Content, s.config.MaxClaims)
	if len(claims) == 0 {
		claims = []string{req.Content}
	}

	references := s.gatherReferences(ctx, claims)
	if len(references) < s.config.MinReferences {
		s.health.record(time.Since(start), true)
		return &verification.StrategyOutcome{
			Strategy:         s.Kind(),
			Verdict:          verification.VerdictInsufficientData,
			Confidence:       0.2,
			Reasoning:        fmt.Sprintf("Only %d references found, need at least %d", len(references), s.config.MinReferences),
			ProcessingTimeMs: elapsedMs(start),
			EvidenceCount:    len(references),
		}, nil
	}

	supporting := 0
	var confidenceSum float64
	for _, ref := range references {
		if ref.Supports {
			supporting++
		}
		confidenceSum += ref.Confidence
	}
	consensus := float64(supporting) / float64(len(references))
	avgConfidence := confidenceSum / float64(len(references))

	var verdict verification.Verdict
	var confidence float64
	switch {
	case consensus >= s.config.MinConsensus:
		verdict = verification.VerdictVerifiedTrue
		confidence = consensus * avgConfidence
	case consensus <= 1-s.config.MinConsensus:
		verdict = verification.VerdictVerifiedFalse
		confidence = (1 - consensus) * avgConfidence
	default:
		verdict = verification.VerdictContradictory
		confidence = avgConfidence * 0.5
	}

	s.health.record(time.Since(start), true)
	return &verification.StrategyOutcome{
		Strategy:   s.Kind(),
		Verdict:    verdict,
		Confidence: confidence,
		Reasoning: fmt.Sprintf("%d of %d references support the claim (consensus %.2f)",
			supporting, len(references), consensus),
		ProcessingTimeMs: elapsedMs(start),
		EvidenceCount:    len(references),
	}, nil
}

// gatherReferences queries every configured provider for every claim,
// deduplicating by URL. When no provider is configured or all fail, the
// deterministic mock fills in if enabled.
func (s *CrossReference) gatherReferences(ctx context.Context, claims []string) []search.Reference {
	seen := make(map[string]bool)
	var references []search.Reference
	anySuccess := false

	for _, claim := range claims {
		for _, provider := range s.providers {
			refs, err := s.searchWithBreaker(ctx, provider, claim)
			if err != nil {
				if s.logger != nil {
					s.logger.WithError(err).WithFields(map[string]interface{}{
						"provider": provider.Name(),
					}).Debug("search provider failed")
				}
				continue
			}
			anySuccess = true
			for _, ref := range refs {
				if ref.URL == "" || seen[ref.URL] {
					continue
				}
				seen[ref.URL] = true
				references = append(references, ref)
			}
		}
	}

	if !anySuccess && s.config.MockFallback {
		for _, claim := range claims {
			refs, _ := s.mock.Search(ctx, claim)
			for _, ref := range refs {
				if seen[ref.URL] {
					continue
				}
				seen[ref.URL] = true
				references = append(references, ref)
			}
		}
	}

	return references
}

// searchWithBreaker runs one provider query behind its breaker, with a
// bounded retry that honors any Retry-After hint the call surfaced.
func (s *CrossReference) searchWithBreaker(ctx context.Context, provider search.Provider, query string) ([]search.Reference, error) {
	breaker := s.breakers[provider.Name()]
	if breaker == nil {
		return provider.Search(ctx, query)
	}

	retryCfg := s.retryCfg
	retryCfg.Name = provider.Name()

	var refs []search.Reference
	err := resilience.Retry(ctx, retryCfg, func() error {
		return breaker.Execute(ctx, func() error {
			var searchErr error
			refs, searchErr = provider.Search(ctx, query)
			return searchErr
		})
	})
	return refs, err
}

var (
	numberPattern = regexp.MustCompile(`\b\d[\d,.]*\b`)
	datePattern   = regexp.MustCompile(`\b(19|20)\d{2}\b|\b(January|February|March|April|May|June|July|August|September|October|November|December)\b`)
)

// statisticalTerms and factualIndicators flag sentences worth checking.
var statisticalTerms = []string{"percent", "%", "average", "median", "majority", "rate", "ratio", "increase", "decrease"}

var factualIndicators = []string{"is", "are", "was", "were", "has", "have", "contains", "located", "founded", "discovered", "invented", "orbits", "causes"}

// extractClaims pulls up to limit checkable sentences out of content.
func extractClaims(content string, limit int) []string {
	sentences := splitSentences(content)
	claims := make([]string, 0, limit)

	for _, sentence := range sentences {
		if len(claims) >= limit {
			break
		}
		trimmed := strings.TrimSpace(sentence)
		if len(trimmed) < 10 {
			continue
		}
		if isCheckable(trimmed) {
			claims = append(claims, trimmed)
		}
	}
	return claims
}

func isCheckable(sentence string) bool {
	if numberPattern.MatchString(sentence) || datePattern.MatchString(sentence) {
		return true
	}
	lower := strings.ToLower(sentence)
	for _, term := range statisticalTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	for _, word := range strings.Fields(lower) {
		for _, indicator := range factualIndicators {
			if word == indicator {
				return true
			}
		}
	}
	return false
}

func splitSentences(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

func elapsedMs(start time.Time) int64 {
	ms := time.Since(start).Milliseconds()
	if ms < 1 {
		return 1
	}
	return ms
}

var _ verification.Strategy = (*CrossReference)(nil)
