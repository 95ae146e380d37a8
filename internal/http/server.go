package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"budget/internal/cache"
	"budget/internal/editor"
	"budget/internal/log"
	"budget/internal/markdown"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	appweb "budget/web"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Session  *editor.Session
	Renderer *markdown.Renderer
	// Ready reports whether the backing store answers. Nil means always ready.
	Ready  func(context.Context) error
	Logger *log.Logger

	RateLimitPerMinute int
	TrustedProxies     []string
}

type appMetrics struct {
	itemsCreated atomic.Int64
	fieldsSaved  atomic.Int64
	itemsDeleted atomic.Int64
	saveFailures atomic.Int64
	started      time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	session   *editor.Session
	renderer  *markdown.Renderer
	ready     func(context.Context) error
	logger    *log.Logger
	events    *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Session == nil {
		return nil, errors.New("http: session is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	renderer := deps.Renderer
	if renderer == nil {
		renderer = markdown.NewRenderer(markdown.DefaultCacheSize, markdown.DefaultCacheTTL)
	}

	t, err := appweb.ParseTemplates(templateFuncs())
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	limiterCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		templates:        t,
		session:          deps.Session,
		renderer:         renderer,
		ready:            deps.Ready,
		logger:           logger,
		events:           log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		securityDetector: security.NewDetector(logger),
		cacheManager:     cache.NewManager(logger),
	}
	s.appMetrics.started = time.Now()
	for _, cidr := range deps.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ClientIP)

	s.cacheManager.Register(renderer.Cache())
	s.cacheManager.StartCleanup(context.Background(), time.Minute)

	mux := http.NewServeMux()

	sub, err := appweb.Static()
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(sub)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /detail", s.handleDetail)

	// UI partials
	mux.Handle("GET /ui/items", security.NoStore(http.HandlerFunc(s.handleTable)))
	mux.HandleFunc("POST /ui/sort", s.handleSort)
	mux.HandleFunc("POST /ui/reload", s.handleReload)
	mux.HandleFunc("POST /ui/preview", s.handlePreview)

	mux.HandleFunc("POST /items", s.handleAddRow)
	mux.HandleFunc("POST /items/{key}/edit", s.handleBeginEdit)
	mux.HandleFunc("POST /items/{key}/done", s.handleDone)
	mux.HandleFunc("POST /items/{key}/cancel", s.handleCancel)
	mux.HandleFunc("POST /items/{key}/fields/{field}", s.handleCommitField)
	mux.HandleFunc("POST /items/{key}/markdown", s.handleSaveMarkdown)
	mux.HandleFunc("DELETE /items/{key}", s.handleDelete)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ClientIP, s.onRateLimited)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops background workers and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
	})
	return s.Server.Shutdown(ctx)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		Header("Retry-After", "60").
		TriggerErrorNotification("Too many changes, please wait a minute").
		Write(w)
}

// render executes a named template into a string so a failure never
// produces a half-written response.
func (s *Server) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// writeHTML renders name and writes it through b, falling back to a 500
// when rendering fails.
func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	html, err := s.render(name, data)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		InternalServerError("Failed to render page").Write(w)
		return
	}
	b.BodyHTML(html).Write(w)
}
