package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/job-change-tracker/internal/config"
	"github.com/jonathan/job-change-tracker/internal/db"
	"github.com/jonathan/job-change-tracker/internal/metrics"
	"github.com/jonathan/job-change-tracker/internal/server/middleware"
	"github.com/jonathan/job-change-tracker/internal/server/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Store is the read-mostly view of the database the API serves from.
// *db.DB satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	RecentChanges(ctx context.Context, limit int) ([]db.JobChange, error)
	AcknowledgeChanges(ctx context.Context, ids []int64) (int64, error)
	AcknowledgeAll(ctx context.Context) (int64, error)
	GetCompanyByName(ctx context.Context, name string) (*db.Company, error)
	ListCompanies(ctx context.Context, includeInactive bool) ([]db.Company, error)
	CompanyStats(ctx context.Context) ([]db.CompanyStats, error)
	TrendByDateRange(ctx context.Context, start, end time.Time) ([]db.RangeTrend, error)
	CompanyTrend(ctx context.Context, company string, start, end time.Time) ([]db.DailyTrend, error)
	ListScrapeRuns(ctx context.Context, limit int) ([]db.ScrapeRun, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       Store
	tokens      middleware.TokenVerifier
	rateLimiter *ratelimit.Limiter
	now         func() time.Time
}

// Config holds server configuration
type Config struct {
	Port int
	// Token guards POST /changes/ack. A nil or hash-less token disables the route.
	Token *config.TokenConfig
	// RateLimit defaults to ratelimit.DefaultConfig() when nil.
	RateLimit *ratelimit.Config
}

// New creates a new server instance
func New(cfg Config, store Store) *Server {
	s := &Server{
		store: store,
		now:   time.Now,
	}
	if cfg.Token != nil {
		s.tokens = cfg.Token
	}

	rlCfg := cfg.RateLimit
	if rlCfg == nil {
		rlCfg = ratelimit.DefaultConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rlCfg)

	metrics.Register()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /changes/recent", s.handleRecentChanges)
	mux.Handle("POST /changes/ack", middleware.RequireToken(s.tokens)(http.HandlerFunc(s.handleAcknowledge)))

	mux.HandleFunc("GET /companies", s.handleListCompanies)
	mux.HandleFunc("GET /companies/stats", s.handleCompanyStats)
	mux.HandleFunc("GET /companies/{name}/trend", s.handleCompanyTrend)

	mux.HandleFunc("GET /trends", s.handleTrends)
	mux.HandleFunc("GET /scrape-runs", s.handleListScrapeRuns)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withMetrics(s.withCORS(mux)))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.rateLimiter.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics counts requests by matched route pattern and status code.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// ServeMux sets Pattern on the request it dispatches.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failure maps err to a status code and writes it. Server-side failures are logged
// and reported without detail.
func (s *Server) failure(w http.ResponseWriter, op string, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[api] %s failed: %v", op, err)
		s.errorResponse(w, status, http.StatusText(status))
		return
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier (IP address) from the request.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
