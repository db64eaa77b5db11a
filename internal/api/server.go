package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
	"github.com/MikeSquared-Agency/contextbridge/internal/store"
)

const sessionCookie = "cb_session"

// Extractor runs one extraction. *extractor.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, text string, cred credential.Credential) extractor.Outcome
}

// Publisher announces approved handovers. *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

type Options struct {
	Port            int
	Account         string
	HandoverSubject string
	AllowedOrigins  []string
}

type Server struct {
	router    *chi.Mux
	opts      Options
	sessions  *store.Sessions
	extractor Extractor
	publisher Publisher
	pages     *template.Template
	logger    *slog.Logger
}

// NewServer wires the dashboard and JSON API. publisher may be nil, in which
// case handover approval is reported as unavailable.
func NewServer(opts Options, sessions *store.Sessions, ext Extractor, pub Publisher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		opts:      opts,
		sessions:  sessions,
		extractor: ext,
		publisher: pub,
		pages:     template.Must(template.ParseFS(templateFS, "templates/*.html")),
		logger:    logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/contextbridge/status", s.status)

	router.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/sales", http.StatusSeeOther)
		})
		r.Get("/sales", s.showPage("sales"))
		r.Post("/sales/analyze", s.analyze)
		r.Get("/manager", s.showPage("manager"))
		r.Post("/manager/approve", s.approvePage)
		r.Get("/cs", s.showPage("cs"))
		r.Post("/auth/key", s.supplyKey)
		r.Post("/auth/logout", s.logout)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   opts.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: false,
				MaxAge:           300,
			}))
			r.Post("/extract", s.wrap(s.handleExtract))
			r.Get("/handover", s.wrap(s.handleGetHandover))
			r.Post("/handover/approve", s.wrap(s.handleApprove))
			r.Get("/credential", s.wrap(s.handleCredentialStatus))
			r.Post("/credential", s.wrap(s.handleSupplyCredential))
			r.Delete("/credential", s.wrap(s.handleClearCredential))
		})
	})

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"agent":      "contextbridge",
		"status":     "online",
		"sessions":   s.sessions.Len(),
		"publishing": s.publisher != nil,
	})
}

// requestLogger writes one structured line per request through logger, in
// place of chi's plain-text middleware.Logger.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"elapsed_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type sessionKey struct{}

// withSession attaches the caller's session, issuing a fresh cookie when the
// presented one is missing or expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
		sess := s.sessions.Get(id)
		if sess.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *store.Session {
	return r.Context().Value(sessionKey{}).(*store.Session)
}
