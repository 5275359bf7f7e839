package observer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/Arbiter-Network/adjudication_layer/infrastructure/errors"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/httputil"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/logging"
	"github.com/Arbiter-Network/adjudication_layer/infrastructure/metrics"
	"github.com/Arbiter-Network/adjudication_layer/internal/health"
	"github.com/Arbiter-Network/adjudication_layer/internal/security"
	"github.com/Arbiter-Network/adjudication_layer/internal/verification"
	"github.com/Arbiter-Network/adjudication_layer/internal/webnav"
)

const observerService = "observer-api"

// ctxKey is the request-context key type for the security context.
type ctxKey int

const securityContextKey ctxKey = iota

// ServerConfig tunes the observer server.
type ServerConfig struct {
	MetricsPath string
}

// Server is the observer HTTP API.
type Server struct {
	envelope  *security.Envelope
	commands  *security.CommandValidator
	engine    *verification.Engine
	navigator *webnav.Navigator
	monitor   *health.Monitor
	arbiter   *Arbiter
	events    *EventStore
	cot       *CoTStore
	tasks     *TaskStore
	logger    *logging.Logger
	metrics   *metrics.Metrics
	startTime time.Time
	config    ServerConfig
}

// NewServer wires the observer API. navigator, monitor, logger, and
// metrics may be nil.
func NewServer(
	cfg ServerConfig,
	envelope *security.Envelope,
	commands *security.CommandValidator,
	engine *verification.Engine,
	navigator *webnav.Navigator,
	monitor *health.Monitor,
	arbiter *Arbiter,
	events *EventStore,
	cot *CoTStore,
	tasks *TaskStore,
	logger *logging.Logger,
	m *metrics.Metrics,
) *Server {
	return &Server{
		envelope:  envelope,
		commands:  commands,
		engine:    engine,
		navigator: navigator,
		monitor:   monitor,
		arbiter:   arbiter,
		events:    events,
		cot:       cot,
		tasks:     tasks,
		logger:    logger,
		metrics:   m,
		startTime: time.Now(),
		config:    cfg,
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/observer/status", s.guard("read", s.handleStatus)).Methods(http.MethodGet)
	r.HandleFunc("/observer/metrics", s.guard("read", s.handleMetrics)).Methods(http.MethodGet)
	r.HandleFunc("/observer/progress", s.guard("read", s.handleProgress)).Methods(http.MethodGet)
	r.HandleFunc("/observer/diagnostics", s.guard("read", s.handleDiagnostics)).Methods(http.MethodGet)
	r.HandleFunc("/observer/logs", s.guard("read", s.handleLogs)).Methods(http.MethodGet)
	r.HandleFunc("/observer/cot", s.guard("read", s.handleCoT)).Methods(http.MethodGet)
	r.HandleFunc("/observer/tasks/{taskId}", s.guard("read", s.handleTaskGet)).Methods(http.MethodGet)
	r.HandleFunc("/observer/tasks/{taskId}/cot", s.guard("read", s.handleTaskCoT)).Methods(http.MethodGet)
	r.HandleFunc("/observer/tasks", s.guard("write", s.handleTaskSubmit)).Methods(http.MethodPost)
	r.HandleFunc("/observer/arbiter/start", s.guard("write", s.handleArbiterStart)).Methods(http.MethodPost)
	r.HandleFunc("/observer/arbiter/stop", s.guard("write", s.handleArbiterStop)).Methods(http.MethodPost)
	r.HandleFunc("/observer/commands", s.guard("write", s.handleCommand)).Methods(http.MethodPost)
	r.HandleFunc("/observer/observations", s.guard("write", s.handleObservation)).Methods(http.MethodPost)
	r.HandleFunc("/observer/events/stream", s.guard("read", s.handleEventStream)).Methods(http.MethodGet)

	metricsPath := s.config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.Handle(metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleLiveness).Methods(http.MethodGet)

	return r
}

// guard wraps a handler with the security pipeline: bearer token
// authentication, then authorization with operation-keyed rate limiting.
func (s *Server) guard(action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		token := bearerToken(r)
		secCtx, err := s.envelope.Authenticate(token, clientIP(r), r.UserAgent())
		if err != nil {
			s.writeServiceError(w, err)
			s.recordRequest(r, http.StatusUnauthorized, start)
			return
		}

		if err := s.envelope.Authorize(secCtx, action, "observer", ""); err != nil {
			s.writeServiceError(w, err)
			s.recordRequest(r, apperrors.HTTPStatusFor(err), start)
			return
		}

		ctx := context.WithValue(r.Context(), securityContextKey, secCtx)
		ctx = logging.WithTenantID(ctx, secCtx.TenantID)
		ctx = logging.WithUserID(ctx, secCtx.UserID)
		next(w, r.WithContext(ctx))
		s.recordRequest(r, http.StatusOK, start)
	}
}

func (s *Server) recordRequest(r *http.Request, status int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordHTTPRequest(observerService, r.Method, r.URL.Path, httpStatusLabel(status), time.Since(start))
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// securityContext returns the authenticated context stored by guard.
func securityContext(r *http.Request) *security.Context {
	if ctx, ok := r.Context().Value(securityContextKey).(*security.Context); ok {
		return ctx
	}
	return nil
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusFor(err)
	message := err.Error()
	if se := apperrors.GetServiceError(err); se != nil {
		message = se.Message
	}
	httputil.WriteError(w, status, message)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.Index(forwarded, ","); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// handleLiveness is the unauthenticated liveness probe.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}
