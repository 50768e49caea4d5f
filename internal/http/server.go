package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ConsumerStatus is an interface for checking the route consumer's
// Kafka group-join state.
type ConsumerStatus interface {
	IsJoined() bool
}

// DBChecker abstracts the database health check for testability.
type DBChecker interface {
	Ping(ctx context.Context) error
}

// CLIResult is the transport-neutral shape of internal/cli.Result,
// avoiding an import of internal/cli (which would need internal/rib,
// dragging the rib loop's types across the HTTP boundary).
type CLIResult struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

// CLIDispatcher runs one command line against the RIB loop and returns
// its result. The daemon wires this to a closure that hops onto the RIB
// loop channel, so cmd/ribctl's HTTP calls never touch rib/object state
// directly (SPEC_FULL.md §5).
type CLIDispatcher func(ctx context.Context, line string) CLIResult

// Server exposes /healthz, /readyz, /metrics, and /cli for the daemon.
type Server struct {
	srv           *http.Server
	pool          *pgxpool.Pool
	dbChecker     DBChecker
	routeConsumer ConsumerStatus
	dispatch      CLIDispatcher
	logger        *zap.Logger
}

func NewServer(addr string, pool *pgxpool.Pool, routeConsumer ConsumerStatus, dispatch CLIDispatcher, logger *zap.Logger) *Server {
	s := &Server{
		pool:          pool,
		routeConsumer: routeConsumer,
		dispatch:      dispatch,
		logger:        logger,
	}
	if pool != nil {
		s.dbChecker = pool
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/cli", s.handleCLI)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	if s.dbChecker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.dbChecker.Ping(ctx); err != nil {
			checks["postgres"] = "error"
			allOK = false
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "error"
		allOK = false
	}

	if s.routeConsumer != nil && s.routeConsumer.IsJoined() {
		checks["kafka_routes"] = "ok"
	} else {
		checks["kafka_routes"] = "not_joined"
		allOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}

// handleCLI dispatches one static-route/show command line, submitted as
// the raw request body, against the RIB loop.
func (s *Server) handleCLI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.dispatch == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result := s.dispatch(r.Context(), string(body))

	w.Header().Set("Content-Type", "application/json")
	if result.Code != 0 {
		w.WriteHeader(http.StatusOK) // CmdWarning is still a successful HTTP round trip
	}
	json.NewEncoder(w).Encode(result)
}
