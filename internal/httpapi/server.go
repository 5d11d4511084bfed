// Package httpapi is the REST layer over the import core: bearer-token
// owner identity, SimpleFIN and file-import endpoints, health probes and
// metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/envelopes/internal/buildinfo"
	"github.com/cleared-dev/envelopes/internal/metrics"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 10 << 20

const shutdownTimeout = 10 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router needs.
type Deps struct {
	Service      ImportService
	Auth         *Authenticator
	Store        Pinger
	Metrics      *metrics.Recorder
	Log          zerolog.Logger
	MaxBodyBytes int64
}

// NewRouter builds the full handler tree. API routes require a bearer
// token; health and metrics routes do not.
func NewRouter(d Deps) http.Handler {
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	mux := http.NewServeMux()
	h := &Handler{svc: d.Service, maxBodyBytes: maxBody}
	h.register(mux, func(f http.HandlerFunc) http.Handler {
		return d.Auth.RequireOwner(f)
	})

	health := &healthHandler{store: d.Store, startedAt: time.Now()}
	mux.HandleFunc("GET /healthz", health.liveness)
	mux.HandleFunc("GET /readyz", health.readiness)
	mux.Handle("GET /metrics", d.Metrics.Handler())

	return Recovery(d.Log)(Logger(d.Log)(mux))
}

type healthHandler struct {
	store     Pinger
	startedAt time.Time
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Uptime  string            `json:"uptime,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: buildinfo.Version,
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: buildinfo.Version, Checks: map[string]string{"store": "ok"}}
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		logFrom(r).Warn().Err(err).Msg("store ping failed")
		resp.Status = "unavailable"
		resp.Checks["store"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Server runs the router until its context is cancelled.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, log zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
		},
		log: log,
	}
}

// Run listens until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
