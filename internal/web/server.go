package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

const defaultReportDays = 30

type Server struct {
	reports ReportService
	intake  IntakeService
	logger  *zap.Logger
	pages   *pages
	now     func() time.Time

	csrfKey        []byte
	secureCookies  bool
	allowedOrigins []string
}

type Option func(*Server)

// WithCSRF enables gorilla/csrf protection. Key must be 32 bytes.
func WithCSRF(key []byte, secure bool) Option {
	return func(s *Server) {
		s.csrfKey = key
		s.secureCookies = secure
	}
}

func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithClock replaces time.Now when picking the default report range.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func NewServer(reports ReportService, intake IntakeService, logger *zap.Logger, opts ...Option) *Server {
	if reports == nil {
		panic("nil ReportService provided to NewServer")
	}
	if intake == nil {
		panic("nil IntakeService provided to NewServer")
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	s := &Server{
		reports:        reports,
		intake:         intake,
		logger:         logger.Named("http"),
		pages:          mustParsePages(),
		now:            time.Now,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if len(s.csrfKey) > 0 {
			if !s.secureCookies {
				r.Use(plaintextRequests)
			}
			r.Use(csrf.Protect(s.csrfKey,
				csrf.Secure(s.secureCookies),
				csrf.Path("/"),
				csrf.ErrorHandler(http.HandlerFunc(s.handleCSRFFailure)),
			))
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/feedback", http.StatusFound)
		})
		r.Get("/feedback", s.handleForm)
		r.Post("/feedback", s.handleSubmit)
		r.Get("/reports", s.handleReport)
		r.Get("/reports/export", s.handleExport)
	})

	return r
}

// plaintextRequests tells gorilla/csrf the site is served over plain HTTP so
// it skips the HTTPS-only Referer check.
func plaintextRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
