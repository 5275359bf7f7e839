package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Arbiter-Network/adjudication_layer/infrastructure/errors"
)

func newTestEnvelope(t *testing.T, cfg EnvelopeConfig) *Envelope {
	t.Helper()
	audit := NewAuditLog(AuditConfig{MaxEvents: 1000, RetentionDays: 30}, nil, nil)
	t.Cleanup(audit.Stop)
	return NewEnvelope(cfg, audit, nil, nil)
}

func TestAuthenticateDevToken(t *testing.T) {
	envelope := newTestEnvelope(t, DefaultEnvelopeConfig())

	ctx, err := envelope.Authenticate("tenant-a:alice:admin|viewer:observer:read|observer:write", "10.0.0.1", "test-agent")
	require.NoError(t, err)

	assert.Equal(t, "tenant-a", ctx.TenantID)
	assert.Equal(t, "alice", ctx.UserID)
	assert.Equal(t, []string{"admin", "viewer"}, ctx.Roles)
	assert.NotEmpty(t, ctx.SessionID)
	assert.Equal(t, "10.0.0.1", ctx.IPAddress)
	assert.False(t, ctx.CreatedAt.IsZero())
}

func TestAuthenticateDefaultsTenantAndUser(t *testing.T) {
	envelope := newTestEnvelope(t, DefaultEnvelopeConfig())

	ctx, err := envelope.Authenticate("::admin:", "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTenant, ctx.TenantID)
	assert.Equal(t, AnonymousUser, ctx.UserID)
}

func TestAuthenticateRejectsShortToken(t *testing.T) {
	envelope := newTestEnvelope(t, DefaultEnvelopeConfig())

	_, err := envelope.Authenticate("abc", "10.0.0.9", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))

	// Exactly one authentication-failure audit event, nothing else.
	events := envelope.Audit().Events(Query{EventType: EventAuthenticationFailure})
	require.Len(t, events, 1)
	assert.Equal(t, ResultFailure, events[0].Result)
	assert.Equal(t, "10.0.0.9", events[0].IPAddress)
	assert.Equal(t, 1, envelope.Audit().Len())
}

func TestAuthenticateJWT(t *testing.T) {
	cfg := DefaultEnvelopeConfig()
	cfg.JWTSecret = "unit-test-secret"
	envelope := newTestEnvelope(t, cfg)

	claims := jwt.MapClaims{
		"tenant_id":   "tenant-b",
		"user_id":     "bob",
		"roles":       []string{"agent"},
		"permissions": []string{"observer:read"},
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)

	ctx, err := envelope.Authenticate(token, "", "")
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", ctx.TenantID)
	assert.Equal(t, "bob", ctx.UserID)
	assert.True(t, ctx.HasPermission("observer:read"))
}

func TestAuthenticateJWTBadSignature(t *testing.T) {
	cfg := DefaultEnvelopeConfig()
	cfg.JWTSecret = "right-secret"
	envelope := newTestEnvelope(t, cfg)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "mallory",
	}).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	_, err = envelope.Authenticate(token, "", "")
	require.Error(t, err)
	assert.Equal(t, 1, envelope.Audit().Len())
}

func TestAuthorizeCrossTenantDenied(t *testing.T) {
	envelope := newTestEnvelope(t, DefaultEnvelopeConfig())

	ctx, err := envelope.Authenticate("A:alice::agent:read", "", "")
	require.NoError(t, err)

	err = envelope.Authorize(ctx, "read", "agent", "B:agent-42")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCrossTenantAccess))

	violations := envelope.Audit().Events(Query{EventType: EventSecurityViolation})
	require.Len(t, violations, 1)
	assert.Equal(t, "Cross-tenant access attempt", violations[0].Details["reason"])
	assert.Equal(t, "A", violations[0].Actor.TenantID)
}

func TestAuthorizeSameTenantAllowed(t *testing.T) {
	envelope := newTestEnvelope(t, DefaultEnvelopeConfig())

	ctx, err := envelope.Authenticate("A:alice::agent:read", "", "")
	require.NoError(t, err)

	require.NoError(t, envelope.Authorize(ctx, "read", "agent", "A:agent-42"))
}

func TestAuthorizeBlockedUser(t *testing.T) {
	cfg := DefaultEnvelopeConfig()
	cfg.BlockedUsers = []string{"mallory"}
	envelope := newTestEnvelope(t, cfg)

	ctx, err := envelope.Authenticate("A:mallory::agent:read", "", "")
	require.NoError(t, err)

	err = envelope.Authorize(ctx, "read", "agent", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBlockedUser))
}

func TestAuthorizeMissingPermission(t *testing.T) {
	envelope := newTestEnvelope(t, DefaultEnvelopeConfig())

	ctx, err := envelope.Authenticate("A:alice::other:read", "", "")
	require.NoError(t, err)

	err = envelope.Authorize(ctx, "write", "agent", "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))

	denials := envelope.Audit().Events(Query{EventType: EventAuthorizationFailure})
	require.Len(t, denials, 1)
}

func TestAuthorizeAdminRoleBypassesPermission(t *testing.T) {
	envelope := newTestEnvelope(t, DefaultEnvelopeConfig())

	ctx, err := envelope.Authenticate("A:root:admin:", "", "")
	require.NoError(t, err)

	require.NoError(t, envelope.Authorize(ctx, "delete", "agent", "A:agent-1"))
}

func TestRateLimitWindowRecovery(t *testing.T) {
	cfg := DefaultEnvelopeConfig()
	cfg.RateLimitMaxRequests = 2
	cfg.RateLimitWindow = time.Second
	envelope := newTestEnvelope(t, cfg)

	base := time.Unix(1700000000, 0)
	now := base
	envelope.Limiter().SetClock(func() time.Time { return now })

	ctx := &Context{TenantID: "A", UserID: "alice"}

	now = base.Add(0)
	assert.True(t, envelope.CheckRateLimit(ctx, "verify"))
	now = base.Add(10 * time.Millisecond)
	assert.True(t, envelope.CheckRateLimit(ctx, "verify"))
	now = base.Add(20 * time.Millisecond)
	assert.False(t, envelope.CheckRateLimit(ctx, "verify"), "third call inside the window is denied")

	now = base.Add(1100 * time.Millisecond)
	assert.True(t, envelope.CheckRateLimit(ctx, "verify"), "window rolled, call allowed again")

	window, ok := envelope.Limiter().Snapshot("A:alice:verify")
	require.True(t, ok)
	assert.Equal(t, 1, window.Count)
}

func TestRateLimitBucketsAreOperationKeyed(t *testing.T) {
	cfg := DefaultEnvelopeConfig()
	cfg.RateLimitMaxRequests = 1
	envelope := newTestEnvelope(t, cfg)

	ctx := &Context{TenantID: "A", UserID: "alice"}
	assert.True(t, envelope.CheckRateLimit(ctx, "verify"))
	assert.False(t, envelope.CheckRateLimit(ctx, "verify"))
	assert.True(t, envelope.CheckRateLimit(ctx, "query"), "a different operation has its own bucket")
}

func TestScopedIDHelpers(t *testing.T) {
	assert.Equal(t, "A:agent-1", ScopedID("A", "agent-1"))

	tenant, raw := SplitScopedID("A:agent-1")
	assert.Equal(t, "A", tenant)
	assert.Equal(t, "agent-1", raw)

	assert.True(t, OwnedByTenant("A:agent-1", "A"))
	assert.False(t, OwnedByTenant("B:agent-1", "A"))
	assert.False(t, OwnedByTenant("agent-1", "A"))
}
