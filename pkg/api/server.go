package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/collator"
	"github.com/rmax-ai/itops-collator/pkg/ingest"
	"github.com/rmax-ai/itops-collator/pkg/logging"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

const maxBodyBytes = 8 << 20

// Server exposes report ingestion and the query facade over HTTP.
type Server struct {
	collator *collator.Collator
	gateway  *ingest.Gateway
	server   *http.Server
	logger   *zap.Logger

	tlsCertFile string
	tlsKeyFile  string
}

// NewServer wires the routes. An empty addr defaults to :8090.
func NewServer(c *collator.Collator, gw *ingest.Gateway, addr string, logger *zap.Logger) *Server {
	s := &Server{
		collator: c,
		gateway:  gw,
		logger:   logging.OrNop(logger).Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Query facade
	mux.HandleFunc("GET /v1/topology", s.handleTopology)
	mux.HandleFunc("GET /v1/processing-plants", s.handleListProcessingPlants)
	mux.HandleFunc("GET /v1/processing-plants/{id}", s.handleGetProcessingPlant)
	mux.HandleFunc("GET /v1/processing-plants/{id}/workshops", s.handleListWorkshops)
	mux.HandleFunc("GET /v1/processing-plants/{id}/metrics", s.handleMetrics)
	mux.HandleFunc("GET /v1/processing-plants/{id}/pubsub", s.handleProcessingPlantPubSub)
	mux.HandleFunc("GET /v1/work-unit-processors/{id}/metrics", s.handleMetrics)
	mux.HandleFunc("GET /v1/work-unit-processors/{id}/pubsub", s.handleWorkUnitProcessorPubSub)
	mux.HandleFunc("GET /v1/nodes/{id}", s.handleGetNode)
	mux.HandleFunc("GET /v1/audit-events/{id}", s.handleAuditEvents)
	mux.HandleFunc("GET /v1/exports/{kind}", s.handleExport)

	// Ingestion
	mux.HandleFunc("POST /v1/reports", s.handleReport)
	mux.HandleFunc("POST /v1/reports/metrics", s.handleMetricsReport)
	mux.HandleFunc("POST /v1/reports/topology", s.handleTopologyReport)
	mux.HandleFunc("POST /v1/reports/pubsub", s.handlePubSubReport)
	mux.HandleFunc("DELETE /v1/processing-plants/{id}", s.handleRemoveProcessingPlant)

	handler := s.withLogging(s.withRecovery(withSecureHeaders(mux)))

	if addr == "" {
		addr = ":8090"
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// SetTLS configures the server to use TLS
func (s *Server) SetTLS(certFile, keyFile string) {
	s.tlsCertFile = certFile
	s.tlsKeyFile = keyFile
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	var err error
	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		s.logger.Info("server starting", zap.String("addr", s.server.Addr), zap.Bool("tls", true))
		err = s.server.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	} else {
		s.logger.Info("server starting", zap.String("addr", s.server.Addr))
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server stopping")
	return s.server.Shutdown(ctx)
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Collator collator.Status `json:"collator"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Collator: s.collator.Status()})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.String("trace_id", getTraceID(r.Context())), zap.Error(err))
	}
}

// writeError emits {"error": code} with an optional reason.
func writeError(w http.ResponseWriter, status int, code, reason string) {
	body := map[string]string{"error": code}
	if reason != "" {
		body["reason"] = reason
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Middleware: Panic Recovery
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", zap.Any("error", err), zap.String("path", r.URL.Path),
					zap.String("trace_id", getTraceID(r.Context())))
				writeError(w, http.StatusInternalServerError, "internal_server_error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		r = r.WithContext(context.WithValue(r.Context(), traceIDKey, traceID))

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("trace_id", traceID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
