// Package console serves the operator-facing pages: login, new ride entry,
// ride search with its reports, and the transient voucher downloads.
package console

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/phillip-england/transitops/internal/backend"
	"github.com/phillip-england/transitops/internal/downloads"
	"github.com/phillip-england/transitops/internal/envutil"
	"github.com/phillip-england/transitops/internal/logger"
	"github.com/phillip-england/transitops/internal/middleware"
	"github.com/phillip-england/transitops/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	themeCookieName = "transitops_theme"
	csrfCookieName  = "transitops_csrf"
	csrfFieldName   = "csrf_token"
)

type Config struct {
	Addr         string
	APIBaseURL   string
	APITimeout   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// CSRFKey is 32 bytes, hex encoded. A random key is used when empty,
	// which invalidates open forms on restart.
	CSRFKey       string
	SecureCookies bool
	Environment   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DownloadTTL   time.Duration
}

//go:embed templates/layout.html templates/login.html templates/new_ride.html templates/search_rides.html assets/app.css assets/app.js
var templatesFS embed.FS

type server struct {
	client     *backend.Client
	downloads  downloads.Store
	gate       session.Gate
	secure     bool
	now        func() time.Time
	loginTmpl  *template.Template
	newTmpl    *template.Template
	searchTmpl *template.Template
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:          envutil.OrDefault("CLIENT_ADDR", ":3000"),
		APIBaseURL:    envutil.OrDefault("API_BASE_URL", "http://localhost:8000"),
		APITimeout:    envutil.Duration("API_TIMEOUT", 8*time.Second),
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  30 * time.Second,
		CSRFKey:       envutil.OrDefault("CSRF_KEY", ""),
		SecureCookies: envutil.Bool("SECURE_COOKIES", false),
		Environment:   envutil.OrDefault("APP_ENV", "development"),
		RedisAddr:     envutil.OrDefault("REDIS_ADDR", ""),
		RedisPassword: envutil.OrDefault("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		DownloadTTL:   envutil.Duration("DOWNLOAD_TTL", downloads.DefaultTTL),
	}
}

func newServer(client *backend.Client, store downloads.Store, secure bool) *server {
	return &server{
		client:     client,
		downloads:  store,
		secure:     secure,
		now:        time.Now,
		loginTmpl:  parsePage("templates/login.html"),
		newTmpl:    parsePage("templates/new_ride.html"),
		searchTmpl: parsePage("templates/search_rides.html"),
	}
}

func parsePage(page string) *template.Template {
	return template.Must(template.New("layout.html").Funcs(templateFuncs).ParseFS(templatesFS, "templates/layout.html", page))
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, s.requireSession)
	}

	mux.Handle("GET /{$}", protected(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/rides/new", http.StatusFound)
	}))
	mux.HandleFunc("GET /login", s.loginPage)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("POST /logout", s.logout)
	mux.HandleFunc("POST /theme", s.toggleTheme)

	mux.Handle("GET /rides/new", protected(s.newRidePage))
	mux.Handle("POST /rides/new", protected(s.newRideSubmit))

	mux.Handle("GET /rides/search", protected(s.searchPage))
	mux.Handle("POST /rides/search/update", protected(s.searchUpdate))
	mux.Handle("POST /rides/search/voucher", protected(s.searchVoucher))
	mux.Handle("POST /rides/search/vouchers", protected(s.searchVouchers))
	mux.Handle("POST /rides/search/email", protected(s.searchEmail))
	mux.Handle("GET /rides/export.csv", protected(s.exportCSV))
	mux.Handle("GET /rides/export.xlsx", protected(s.exportXLSX))

	mux.Handle("GET /downloads/{token}", protected(s.download))

	mux.HandleFunc("GET /assets/app.css", assetFile("assets/app.css", "text/css; charset=utf-8"))
	mux.HandleFunc("GET /assets/app.js", assetFile("assets/app.js", "text/javascript; charset=utf-8"))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *server) handler(csrfKey []byte) http.Handler {
	mux := s.routes()

	csp := strings.Join([]string{
		"default-src 'self'",
		"style-src 'self'",
		"img-src 'self' data:",
		"script-src 'self'",
		"connect-src 'self'",
		"frame-ancestors 'none'",
		"form-action 'self'",
	}, "; ")

	protect := csrf.Protect(csrfKey,
		csrf.Secure(s.secure),
		csrf.Path("/"),
		csrf.CookieName(csrfCookieName),
		csrf.FieldName(csrfFieldName),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)

	return middleware.Chain(
		mux,
		middleware.Recover,
		middleware.RequestID,
		middleware.RequestLogger,
		middleware.Metrics(routeLabel(mux)),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
			ContentSecurityPolicy: csp,
			StrictTransport:       s.secure,
		}),
		s.plaintext,
		protect,
	)
}

// plaintext tells gorilla/csrf the console is served over HTTP, which turns
// off its HTTPS-only Referer check.
func (s *server) plaintext(next http.Handler) http.Handler {
	if s.secure {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	logger.Warn("csrf check failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.RequestIDFrom(r.Context())),
		zap.Error(csrf.FailureReason(r)),
	)
	http.Error(w, "This form has expired. Reload the page and try again.", http.StatusForbidden)
}

// routeLabel maps a request onto its registered pattern so metrics are not
// labelled with tokens or ride identifiers.
func routeLabel(mux *http.ServeMux) func(*http.Request) string {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		if pattern == "" {
			return "unmatched"
		}
		return pattern
	}
}

func csrfKeyFrom(raw string) []byte {
	raw = strings.TrimSpace(raw)
	if key, err := hex.DecodeString(raw); err == nil && len(key) == 32 {
		return key
	}
	if raw != "" {
		logger.Warn("CSRF_KEY must be 64 hex characters; using a random key")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return key
}

func newDownloadStore(ctx context.Context, cfg Config) downloads.Store {
	if cfg.RedisAddr == "" {
		return downloads.NewMemoryStore(cfg.DownloadTTL)
	}
	client, err := downloads.NewRedisClient(ctx, downloads.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable; keeping downloads in memory", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return downloads.NewMemoryStore(cfg.DownloadTTL)
	}
	logger.Info("downloads stored in redis", zap.String("addr", cfg.RedisAddr))
	return downloads.NewRedisStore(client, cfg.DownloadTTL)
}

// closeDownloadStore runs after the HTTP server has shut down.
func closeDownloadStore(store downloads.Store) {
	c, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("could not close download store", zap.Error(err))
	}
}

func Run(ctx context.Context, cfg Config) error {
	client := backend.New(backend.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout})
	store := newDownloadStore(ctx, cfg)
	defer closeDownloadStore(store)
	s := newServer(client, store, cfg.SecureCookies)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler(csrfKeyFrom(cfg.CSRFKey)),
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("console listening",
			zap.String("addr", cfg.Addr),
			zap.String("backend", client.BaseURL()),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
