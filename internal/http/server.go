package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"saldo/internal/attachments"
	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/docstore"
	"saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/records"
	"saldo/internal/session"
)

const (
	defaultMaxUpload = 5 << 20
	readyTimeout     = 5 * time.Second
)

// Records is the record store as seen by the handlers.
type Records interface {
	session.Source
	Create(ctx context.Context, scope string, kind core.Kind, draft core.Draft, file *attachments.File) (records.Created, error)
	UpdateDebtStatus(ctx context.Context, scope, id string, paid bool) error
	Delete(ctx context.Context, scope string, kind core.Kind, id string) error
	SetGoal(ctx context.Context, scope string, goal core.Goal) error
	Goal(ctx context.Context, scope string) (core.Goal, error)
	Snapshot(ctx context.Context, scope string) (core.Ledger, error)
}

// Deps is everything the server needs. Records and Issuer are required.
type Deps struct {
	Records Records
	Issuer  *auth.Issuer
	// Store, when it implements docstore.Pinger, backs /readyz.
	Store docstore.Store
	// Blobs serves attachments under /blobs/ for the in-memory blob store.
	Blobs http.Handler

	Location           *time.Location
	Logger             *log.Logger
	RateLimitPerMinute int
	AllowedOrigins     []string
	TrustedProxies     []string
	MaxUploadBytes     int64
	Now                func() time.Time
}

// Server wraps http.Server with the API routes and live sessions.
type Server struct {
	http.Server

	records   Records
	issuer    *auth.Issuer
	store     docstore.Store
	loc       *time.Location
	logger    *log.Logger
	maxUpload int64
	now       func() time.Time

	tracer   *trace.Middleware
	detector *security.Detector
	limiter  *ratelimit.Limiter
	sessions *registry

	// streams tracks open dashboard streams so Shutdown can end them.
	streams      sync.WaitGroup
	stopStreams  chan struct{}
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		Server:      http.Server{Addr: addr, ReadHeaderTimeout: 10 * time.Second},
		records:     deps.Records,
		issuer:      deps.Issuer,
		store:       deps.Store,
		loc:         deps.Location,
		logger:      deps.Logger,
		maxUpload:   deps.MaxUploadBytes,
		now:         deps.Now,
		tracer:      trace.NewMiddleware(),
		detector:    security.NewDetector(),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		sessions:    newRegistry(),
		stopStreams: make(chan struct{}),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentHTTP)
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/dashboard/stream", s.handleDashboardStream)
	api.HandleFunc("POST /api/sessions/{id}/select", s.handleSessionSelect)
	api.HandleFunc("PATCH /api/sessions/{id}", s.handleSessionUpdate)
	api.HandleFunc("GET /api/debts", s.handleListDebts)
	api.HandleFunc("POST /api/debts", s.handleCreate(core.KindDebt))
	api.HandleFunc("PATCH /api/debts/{id}", s.handleUpdateDebt)
	api.HandleFunc("DELETE /api/debts/{id}", s.handleDelete(core.KindDebt))
	api.HandleFunc("GET /api/incomes", s.handleListIncomes)
	api.HandleFunc("POST /api/incomes", s.handleCreate(core.KindIncome))
	api.HandleFunc("DELETE /api/incomes/{id}", s.handleDelete(core.KindIncome))
	api.HandleFunc("GET /api/goal", s.handleGetGoal)
	api.HandleFunc("PUT /api/goal", s.handleSetGoal)
	api.HandleFunc("GET /api/export.xlsx", s.handleExport)

	onAuthFail := func(w http.ResponseWriter, r *http.Request, err error) { writeError(w, r, err) }
	protected := s.issuer.Middleware(onAuthFail)(security.NoStore(api))

	mux := http.NewServeMux()
	mux.Handle("/api/", protected)
	mux.HandleFunc("POST /auth/anonymous", s.handleAnonymousSignIn)
	if deps.Blobs != nil {
		mux.Handle("GET /blobs/", http.StripPrefix("/blobs", deps.Blobs))
	}

	headers := security.DefaultHeadersConfig()
	headers.AllowedOrigins = deps.AllowedOrigins
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)).WithHTTPRequest(r.Method, r.URL.Path, "", "").ToSlice()...)
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later").Write(w)
	}

	var chain http.Handler = mux
	chain = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(chain)
	chain = s.detector.Middleware(chain)
	chain = security.NewHeadersMiddleware(headers).Middleware(chain)
	chain = log.AccessLog(s.detector.ExtractClientIP)(chain)
	chain = log.RequestIDMiddleware(trace.FromRequest)(chain)
	chain = log.Middleware(s.logger)(chain)
	chain = s.tracer.Middleware(chain)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", chain)
	s.Handler = root
	return s
}

// Shutdown ends open dashboard streams, stops the limiter and then shuts the
// HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopStreams)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		done := make(chan struct{})
		go func() {
			s.streams.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if shutdownErr == nil {
				shutdownErr = ctx.Err()
			}
		}
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readyJSON struct {
	Status    string                    `json:"status"`
	Error     string                    `json:"error,omitempty"`
	Sessions  int                       `json:"sessions"`
	Clients   int                       `json:"rate_limited_clients"`
	Requests  trace.Metrics             `json:"requests"`
	Detection security.DetectionMetrics `json:"detection"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	body := readyJSON{
		Status:    "ready",
		Sessions:  s.sessions.Len(),
		Clients:   s.limiter.ActiveClients(),
		Requests:  s.tracer.GetMetrics(),
		Detection: s.detector.GetMetrics(),
	}
	status := http.StatusOK
	if p, ok := s.store.(docstore.Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
			body.Status, body.Error = "unavailable", err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	NewJSONResponse().Status(status).Body(body).Write(w)
}
