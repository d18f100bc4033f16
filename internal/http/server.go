// Package http serves the ledger views as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"

	"cashflow/internal/ai"
	"cashflow/internal/app"
	"cashflow/internal/export"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/storage"
)

// ReportArchiver stores a copy of an exported report.
type ReportArchiver interface {
	Archive(ctx context.Context, uid string, r export.Report) (string, error)
}

// ActivityLister reads the activity log written by the worker.
type ActivityLister interface {
	ListActivity(ctx context.Context, limit int) ([]storage.ActivityEntry, error)
	Ping(ctx context.Context) error
}

type Deps struct {
	Shell   *app.Shell
	Advisor *ai.Advisor
	// Archiver and Activity are optional.
	Archiver ReportArchiver
	Activity ActivityLister

	Logger       *log.Logger
	CORSOrigins  []string
	WriteTimeout time.Duration
	RateLimit    ratelimit.Config
	Now          func() time.Time
}

type Server struct {
	http.Server

	shell    *app.Shell
	advisor  *ai.Advisor
	archiver ReportArchiver
	activity ActivityLister
	logger   *log.Logger
	now      func() time.Time
	started  time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = 90 * time.Second
	}

	s := &Server{
		shell:    deps.Shell,
		advisor:  deps.Advisor,
		archiver: deps.Archiver,
		activity: deps.Activity,
		logger:   deps.Logger.WithComponent(log.ComponentHTTP),
		now:      deps.Now,
		started:  deps.Now(),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	h = cors.New(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// AI analysis is bounded only by this timeout
		WriteTimeout:   deps.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/mode", s.handleGetMode)
	mux.HandleFunc("POST /api/mode/test", s.handleChooseTestMode)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/signout", s.handleSignOut)

	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/mutations", s.handleListMutations)
	mux.HandleFunc("POST /api/mutations/{id}/retry", s.handleRetryMutation)

	mux.HandleFunc("POST /api/ai/analysis", s.handleAnalysis)

	mux.HandleFunc("GET /api/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profile/budget", s.handleUpdateBudget)
	mux.HandleFunc("PUT /api/profile/name", s.handleUpdateName)

	mux.HandleFunc("GET /api/export.csv", s.handleExport)
	mux.HandleFunc("DELETE /api/data", s.handleClearData)
	mux.HandleFunc("GET /api/activity", s.handleListActivity)
}

// Shutdown stops background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
