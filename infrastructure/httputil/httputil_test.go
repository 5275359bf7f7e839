package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusForbidden, "denied")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "denied", envelope.Error)
	assert.Equal(t, http.StatusForbidden, envelope.Status)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok"}`))
	var p payload
	require.True(t, DecodeJSON(rec, req, &p))
	assert.Equal(t, "ok", p.Name)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	require.False(t, DecodeJSON(rec, req, &p))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	require.False(t, DecodeJSON(rec, req, &p), "unknown fields are rejected")
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&cursor=900&flag=true&name=x&bad=zzz", nil)

	assert.Equal(t, 25, QueryInt(req, "limit", 10))
	assert.Equal(t, 10, QueryInt(req, "missing", 10))
	assert.Equal(t, 10, QueryInt(req, "bad", 10))
	assert.Equal(t, int64(900), QueryInt64(req, "cursor", 0))
	assert.Equal(t, "x", QueryString(req, "name", "default"))
	assert.True(t, QueryBool(req, "flag", false))
	assert.False(t, QueryBool(req, "missing", false))
}

func TestCopyHTTPClientWithTimeout(t *testing.T) {
	base := &http.Client{}
	copied := CopyHTTPClientWithTimeout(base, 5*time.Second, false)
	assert.Equal(t, 5*time.Second, copied.Timeout)
	assert.Zero(t, base.Timeout, "base client is never mutated")

	withTimeout := &http.Client{Timeout: time.Second}
	kept := CopyHTTPClientWithTimeout(withTimeout, 5*time.Second, false)
	assert.Equal(t, time.Second, kept.Timeout)

	forced := CopyHTTPClientWithTimeout(withTimeout, 5*time.Second, true)
	assert.Equal(t, 5*time.Second, forced.Timeout)

	fresh := CopyHTTPClientWithTimeout(nil, 2*time.Second, false)
	assert.Equal(t, 2*time.Second, fresh.Timeout)
}
