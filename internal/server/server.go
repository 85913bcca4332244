package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/moodtracker/internal/auth"
	"github.com/dukerupert/moodtracker/internal/handler"
	"github.com/dukerupert/moodtracker/internal/inbound"
	"github.com/dukerupert/moodtracker/internal/middleware"
	"github.com/dukerupert/moodtracker/internal/otp"
	"github.com/dukerupert/moodtracker/internal/phone"
	"github.com/dukerupert/moodtracker/internal/sms"
	"github.com/dukerupert/moodtracker/internal/store"
	ws "github.com/dukerupert/moodtracker/internal/websocket"
	"github.com/dukerupert/moodtracker/web"
)

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// Config carries the settings the HTTP layer needs.
type Config struct {
	Region    string
	BaseURL   string
	SecretKey string
	Location  *time.Location
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	calendarH    *handler.CalendarHandler
	smsH         *handler.SMSHandler
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	origins      []string
	logger       *slog.Logger
}

// New wires stores, handlers and the live-update hub. validator may be nil
// to accept unsigned webhooks.
func New(db *sql.DB, cfg Config, otpStore otp.Store, sender sms.Sender, validator handler.SignatureValidator, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	identityStore := store.NewIdentityStore(db)
	subscriberStore := store.NewSubscriberStore(db)
	moodStore := store.NewMoodStore(db)
	sessionStore := store.NewSessionStore(db)

	normalizer := phone.NewNormalizer(cfg.Region)
	issuer := otp.NewIssuer(otpStore)

	var procOpts []inbound.Option
	procOpts = append(procOpts, inbound.WithNotifier(hub))
	if cfg.Location != nil {
		procOpts = append(procOpts, inbound.WithLocation(cfg.Location))
	}
	processor := inbound.NewProcessor(normalizer, identityStore, subscriberStore, moodStore,
		logger.With("component", "inbound"), procOpts...)

	secure := false
	var origins []string
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		secure = u.Scheme == "https"
		origins = []string{u.Host}
	}

	return &Server{
		db:  db,
		hub: hub,
		authH: handler.NewAuthHandler(normalizer, issuer, identityStore, subscriberStore, sessionStore,
			sender, auth.NewPendingSigner(cfg.SecretKey), secure, logger.With("component", "auth")),
		calendarH:    handler.NewCalendarHandler(subscriberStore, moodStore, sessionStore, cfg.Location, logger.With("component", "calendar")),
		smsH:         handler.NewSMSHandler(processor, validator, cfg.BaseURL, logger.With("component", "sms_webhook")),
		sessionStore: sessionStore,
		rateLimiter:  middleware.NewRateLimiter(),
		origins:      origins,
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /{$}", s.calendarH.Landing)
	mux.HandleFunc("GET /login", s.authH.LoginPage)
	mux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("GET /verify", s.authH.VerifyPage)
	mux.HandleFunc("POST /verify", s.authH.Verify)
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("POST /sms/receive", s.smsH.Receive)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	mux.HandleFunc("GET /health", s.healthHandler)

	// Routes that need a session
	requireAuth := middleware.RequireAuth(s.sessionStore)
	mux.Handle("GET /calendar", requireAuth(http.HandlerFunc(s.calendarH.Calendar)))
	mux.Handle("GET /api/mood_entry/{date}", requireAuth(http.HandlerFunc(s.calendarH.MoodEntry)))
	mux.Handle("GET /ws", requireAuth(ws.HandleWebSocket(s.hub, s.origins, s.logger.With("component", "websocket"))))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, loginRateLimit, loginRateWindow)
	return rl(h).ServeHTTP
}
