// Package http serves the bill tracker JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"billtracker/internal/core"
	"billtracker/internal/log"
	"billtracker/internal/metrics"
	"billtracker/internal/middleware/ratelimit"
	"billtracker/internal/middleware/security"
	"billtracker/internal/middleware/trace"
)

type ProfileService interface {
	Create(ctx context.Context, p core.Profile) (core.Profile, error)
	List(ctx context.Context) ([]core.Profile, error)
	Get(ctx context.Context, id string) (core.Profile, error)
	Update(ctx context.Context, id string, patch core.ProfilePatch) (core.Profile, error)
	UpdateColor(ctx context.Context, id, color string) (core.Profile, error)
	Delete(ctx context.Context, id string) error
}

type BillService interface {
	Create(ctx context.Context, profileID string, b core.Bill) (core.Bill, error)
	ListForProfile(ctx context.Context, profileID string) ([]core.Bill, error)
	Get(ctx context.Context, id string) (core.Bill, error)
	Reveal(ctx context.Context, id string) (core.EBill, error)
	Update(ctx context.Context, id string, patch core.BillPatch) (core.Bill, error)
	Delete(ctx context.Context, id string) error
}

type InstanceService interface {
	Create(ctx context.Context, billID string, in core.BillInstance) (core.BillInstance, error)
	ListForBill(ctx context.Context, billID string) ([]core.BillInstance, error)
	ListForOwner(ctx context.Context, month string) ([]core.InstanceView, error)
	ListForProfile(ctx context.Context, profileID string) ([]core.InstanceView, error)
	Update(ctx context.Context, id string, patch core.InstancePatch) (core.BillInstance, error)
	TogglePaid(ctx context.Context, id string) (core.BillInstance, error)
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators of the API server. Logger, Metrics and Ready
// are optional.
type Deps struct {
	Profiles  ProfileService
	Bills     BillService
	Instances InstanceService
	Tokens    TokenValidator
	Logger    *log.Logger
	Metrics   *metrics.Metrics
	// Ready reports whether dependencies such as the database are usable.
	Ready func(ctx context.Context) error
}

type Options struct {
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

func DefaultOptions() Options {
	return Options{
		RateLimitPerMinute: 120,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
	}
}

type Server struct {
	http.Server
	deps        Deps
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	s := &Server{
		deps:        deps,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:    security.NewDetector(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var observe trace.Observer
	if deps.Metrics != nil {
		observe = deps.Metrics.ObserveHTTP
	}

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	if deps.Logger != nil {
		h = log.Middleware(deps.Logger, trace.FromRequest)(h)
	}
	h = trace.NewMiddleware(s.detector.ExtractClientIP, observe).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	api := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.requireAuth(recordRoute(h)))
	}

	api("GET /api/profiles", s.handleListProfiles)
	api("POST /api/profiles", s.handleCreateProfile)
	api("GET /api/profiles/{id}", s.handleGetProfile)
	api("PATCH /api/profiles/{id}", s.handleUpdateProfile)
	api("DELETE /api/profiles/{id}", s.handleDeleteProfile)
	api("PUT /api/profiles/{id}/color", s.handleUpdateProfileColor)
	api("GET /api/profiles/{id}/bills", s.handleListBills)
	api("POST /api/profiles/{id}/bills", s.handleCreateBill)
	api("GET /api/profiles/{id}/instances", s.handleListProfileInstances)

	api("GET /api/bills/{id}", s.handleGetBill)
	api("PATCH /api/bills/{id}", s.handleUpdateBill)
	api("DELETE /api/bills/{id}", s.handleDeleteBill)
	api("GET /api/bills/{id}/credentials", s.handleRevealCredentials)
	api("GET /api/bills/{id}/instances", s.handleListBillInstances)
	api("POST /api/bills/{id}/instances", s.handleCreateInstance)

	api("GET /api/instances", s.handleListInstances)
	api("PATCH /api/instances/{id}", s.handleUpdateInstance)
	api("DELETE /api/instances/{id}", s.handleDeleteInstance)
	api("POST /api/instances/{id}/toggle-paid", s.handleTogglePaid)
}

// recordRoute hands the matched pattern to the trace middleware, which
// only sees a copy of the request once auth has replaced its context.
func recordRoute(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trace.RecordRoute(r)
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
