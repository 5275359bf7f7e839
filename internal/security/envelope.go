package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/Arbiter-Network/adjudication_layer/infrastructure/errors"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/ratelimit"
)

const envelopeService = "security-envelope"

// minTokenLength rejects obviously malformed tokens before any parsing.
const minTokenLength = 8

// EnvelopeConfig tunes the security envelope.
type EnvelopeConfig struct {
	// JWTSecret enables HS256 token validation. Empty falls back to the
	// colon-delimited development token format.
	JWTSecret            string
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	BlockedUsers         []string
}

// DefaultEnvelopeConfig returns sensible defaults.
func DefaultEnvelopeConfig() EnvelopeConfig {
	return EnvelopeConfig{
		RateLimitMaxRequests: 100,
		RateLimitWindow:      time.Minute,
	}
}

// tokenClaims are the JWT claims the envelope understands.
type tokenClaims struct {
	TenantID    string   `json:"tenant_id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Envelope wraps every public operation with the pipeline
// authenticate -> authorize -> rate-limit -> validate -> execute -> audit.
// Any stage failure short-circuits to a failure audit event and a typed
// security error.
type Envelope struct {
	config  EnvelopeConfig
	audit   *AuditLog
	limiter *ratelimit.WindowLimiter
	blocked map[string]bool
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewEnvelope creates the envelope. logger and metrics may be nil.
func NewEnvelope(cfg EnvelopeConfig, audit *AuditLog, logger *logging.Logger, m *metrics.Metrics) *Envelope {
	if cfg.RateLimitMaxRequests < 1 {
		cfg.RateLimitMaxRequests = 100
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	blocked := make(map[string]bool, len(cfg.BlockedUsers))
	for _, u := range cfg.BlockedUsers {
		blocked[u] = true
	}

	return &Envelope{
		config:  cfg,
		audit:   audit,
		limiter: ratelimit.NewWindowLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow),
		blocked: blocked,
		logger:  logger,
		metrics: m,
	}
}

// Audit exposes the audit log for query surfaces.
func (e *Envelope) Audit() *AuditLog { return e.audit }

// Limiter exposes the per-identity window limiter, mainly for tests.
func (e *Envelope) Limiter() *ratelimit.WindowLimiter { return e.limiter }

// Authenticate validates a bearer token and derives the security context.
// The tenant always comes from the token; a caller-supplied tenant never
// overrides it. Failures produce exactly one authentication-failure audit
// event.
func (e *Envelope) Authenticate(token, ipAddress, userAgent string) (*Context, error) {
	token = strings.TrimSpace(token)
	if len(token) < minTokenLength {
		e.auditAuthFailure("token missing or too short", ipAddress, userAgent)
		return nil, apperrors.InvalidToken(fmt.Errorf("token shorter than %d characters", minTokenLength))
	}

	var ctx *Context
	var err error
	if e.config.JWTSecret != "" {
		ctx, err = e.authenticateJWT(token)
	} else {
		ctx, err = e.authenticateDev(token)
	}
	if err != nil {
		e.auditAuthFailure(err.Error(), ipAddress, userAgent)
		if e.metrics != nil {
			e.metrics.RecordAuthAttempt(envelopeService, false)
		}
		return nil, err
	}

	ctx.SessionID = uuid.New().String()
	ctx.IPAddress = ipAddress
	ctx.UserAgent = userAgent
	ctx.CreatedAt = time.Now().UTC()

	if e.metrics != nil {
		e.metrics.RecordAuthAttempt(envelopeService, true)
	}
	return ctx, nil
}

func (e *Envelope) authenticateJWT(token string) (*Context, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(e.config.JWTSecret), nil
	})
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	if !parsed.Valid {
		return nil, apperrors.InvalidToken(fmt.Errorf("token rejected"))
	}

	tenant := claims.TenantID
	if tenant == "" {
		tenant = DefaultTenant
	}
	user := claims.UserID
	if user == "" {
		user = claims.Subject
	}
	if user == "" {
		user = AnonymousUser
	}

	return &Context{
		TenantID:    tenant,
		UserID:      user,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}, nil
}

// authenticateDev parses the colon-delimited development token format
// "tenant:user:role1|role2:perm1|perm2". Production deployments configure
// a JWT secret and never reach this path.
func (e *Envelope) authenticateDev(token string) (*Context, error) {
	parts := strings.SplitN(token, ":", 4)

	tenant := DefaultTenant
	if len(parts) > 0 && parts[0] != "" {
		tenant = parts[0]
	}
	user := AnonymousUser
	if len(parts) > 1 && parts[1] != "" {
		user = parts[1]
	}

	var roles, permissions []string
	if len(parts) > 2 && parts[2] != "" {
		roles = strings.Split(parts[2], "|")
	}
	if len(parts) > 3 && parts[3] != "" {
		permissions = strings.Split(parts[3], "|")
	}

	return &Context{
		TenantID:    tenant,
		UserID:      user,
		Roles:       roles,
		Permissions: permissions,
	}, nil
}

// Authorize decides whether ctx may perform action on the resource. Denials
// are audited; cross-tenant attempts are audited as security violations and
// never mutate the resource.
func (e *Envelope) Authorize(ctx *Context, action, resourceType, resourceID string) error {
	if ctx == nil {
		return apperrors.Unauthorized("no security context")
	}

	if e.blocked[ctx.UserID] {
		e.auditDenial(ctx, EventAuthorizationFailure, action, resourceType, resourceID, "user is blocked")
		return apperrors.BlockedUser(ctx.UserID)
	}

	if resourceID != "" {
		if owner, _ := SplitScopedID(resourceID); owner != "" && owner != ctx.TenantID {
			event := e.auditEventFor(ctx, EventSecurityViolation, action, resourceType, resourceID)
			event.Details = map[string]interface{}{
				"reason":          "Cross-tenant access attempt",
				"resource_tenant": owner,
			}
			e.audit.Append(event)
			if e.metrics != nil {
				e.metrics.SecurityDenials.WithLabelValues(envelopeService, "cross_tenant").Inc()
			}
			return apperrors.CrossTenantAccess(ctx.TenantID, owner)
		}
	}

	if !e.CheckRateLimit(ctx, action) {
		e.auditDenial(ctx, EventAuthorizationFailure, action, resourceType, resourceID, "rate limit exceeded")
		if e.metrics != nil {
			e.metrics.RateLimitExceeded.WithLabelValues(envelopeService, action).Inc()
		}
		return apperrors.RateLimitExceeded(e.config.RateLimitMaxRequests, e.config.RateLimitWindow.String())
	}

	required := resourceType + ":" + action
	if !ctx.HasPermission(required) && !ctx.HasRole("admin") {
		e.auditDenial(ctx, EventAuthorizationFailure, action, resourceType, resourceID, "missing permission "+required)
		if e.metrics != nil {
			e.metrics.SecurityDenials.WithLabelValues(envelopeService, "permission").Inc()
		}
		return apperrors.Forbidden("missing permission " + required)
	}

	return nil
}

// CheckRateLimit consumes one request from the identity's operation bucket.
// Buckets are keyed "tenant:user:operation" over a fixed window.
func (e *Envelope) CheckRateLimit(ctx *Context, operation string) bool {
	key := ctx.TenantID + ":" + ctx.UserID + ":" + operation
	return e.limiter.Allow(key)
}

// RecordAccess audits a successful resource operation.
func (e *Envelope) RecordAccess(ctx *Context, eventType EventType, action, resourceType, resourceID string) {
	event := e.auditEventFor(ctx, eventType, action, resourceType, resourceID)
	event.Result = ResultSuccess
	e.audit.Append(event)
}

func (e *Envelope) auditEventFor(ctx *Context, eventType EventType, action, resourceType, resourceID string) Event {
	return Event{
		EventType: eventType,
		Actor: Actor{
			TenantID:  ctx.TenantID,
			UserID:    ctx.UserID,
			SessionID: ctx.SessionID,
		},
		Action:    action,
		Resource:  resourceType + "/" + resourceID,
		Result:    ResultFailure,
		IPAddress: ctx.IPAddress,
		UserAgent: ctx.UserAgent,
	}
}

func (e *Envelope) auditDenial(ctx *Context, eventType EventType, action, resourceType, resourceID, reason string) {
	event := e.auditEventFor(ctx, eventType, action, resourceType, resourceID)
	event.Details = map[string]interface{}{"reason": reason}
	e.audit.Append(event)
}

func (e *Envelope) auditAuthFailure(reason, ipAddress, userAgent string) {
	e.audit.Append(Event{
		EventType: EventAuthenticationFailure,
		Actor:     Actor{TenantID: DefaultTenant, UserID: AnonymousUser},
		Action:    "authenticate",
		Details:   map[string]interface{}{"reason": reason},
		Result:    ResultFailure,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	})
}
