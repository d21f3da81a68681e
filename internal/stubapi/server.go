// Package stubapi is an in-memory stand-in for the bulk-change backend. It
// implements the auth, operation and log stream endpoints with the same
// request and response shapes, and echoes operations instead of applying
// them.
package stubapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/ratelimit"
)

// Options configures a Server.
type Options struct {
	Catalog *catalog.Catalog
	Users   []User
	// Budget throttles submissions per user and operation; nil disables it.
	Budget *ratelimit.Budget
	Logger *slog.Logger
	// KeepAlive is the interval between SSE comment frames; zero disables them.
	KeepAlive time.Duration
}

// Server is the stub backend http.Handler.
type Server struct {
	cat       *catalog.Catalog
	budget    *ratelimit.Budget
	logger    *slog.Logger
	keepAlive time.Duration
	broker    *broker

	mux     *http.ServeMux
	handler http.Handler

	mu       sync.Mutex
	users    map[string]User
	sessions map[string]string
	pending  map[string]bool

	failNext atomic.Int32
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cat:       opts.Catalog,
		budget:    opts.Budget,
		logger:    logger,
		keepAlive: opts.KeepAlive,
		broker:    newBroker(logger),
		mux:       http.NewServeMux(),
		users:     make(map[string]User, len(opts.Users)),
		sessions:  make(map[string]string),
		pending:   make(map[string]bool),
	}
	for _, u := range opts.Users {
		s.users[u.Name] = u
	}
	s.routes()
	s.handler = requestID(logging(logger, s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /auth/token", s.handleToken)
	s.mux.HandleFunc("POST /auth/mfa", s.handleMFA)
	s.mux.HandleFunc("GET /auth/validate", s.handleValidate)
	s.mux.HandleFunc("GET /auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /auth/user", s.handleUser)

	s.mux.Handle("GET /api/logs", s.requireSession(http.HandlerFunc(s.handleLogs)))

	registered := make(map[string]bool)
	for _, op := range s.cat.Operations() {
		if op.Endpoint == "" || registered[op.Endpoint] {
			continue
		}
		registered[op.Endpoint] = true
		s.mux.Handle("POST "+op.Endpoint, s.requireSession(s.handleOperation(op)))
	}
	if shared := s.cat.SharedEndpoint(); shared != "" && !registered[shared] {
		s.mux.Handle("POST "+shared, s.requireSession(http.HandlerFunc(s.handleShared)))
	}
}

// FailNext makes the next operation request fail with status.
func (s *Server) FailNext(status int) {
	s.failNext.Store(int32(status))
}

// Broadcast sends a log event to every open log stream.
func (s *Server) Broadcast(ev LogEvent) {
	s.broker.publish(ev)
}

// BroadcastRaw sends data verbatim as the payload of one log event.
func (s *Server) BroadcastRaw(data string) {
	s.broker.publishRaw(data)
}

// Subscribers returns the number of open log streams.
func (s *Server) Subscribers() int {
	return s.broker.len()
}

// Close ends every open log stream.
func (s *Server) Close() {
	s.broker.close()
}

// ListenAndServe serves handler on addr until ctx is done. A nil handler
// serves s directly.
func (s *Server) ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	if handler == nil {
		handler = s
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the backend failure shape.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
