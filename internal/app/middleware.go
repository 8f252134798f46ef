package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/storebridge/storebridge/internal/auth"
	"github.com/storebridge/storebridge/internal/observability"
	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Metrics        *observability.Metrics
}

type responseWriterWithCommit struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	logger        *slog.Logger
	headerWritten bool
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			w.logger.Error("commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// MiddlewareStack installs the storebridge middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	sessionMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := cfg.SessionManager.Load(ctx, r)
			if err != nil {
				cfg.Logger.Error("failed to load session", slog.Any("error", err))
				httpx.Fail(w, http.StatusInternalServerError, "internal error")
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)

			wrapped := &responseWriterWithCommit{
				ResponseWriter: w,
				sess:           sess,
				manager:        cfg.SessionManager,
				ctx:            ctx,
				logger:         cfg.Logger,
			}
			next.ServeHTTP(wrapped, r.WithContext(ctx))
		})
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	perMinute := 300
	if cfg.Config != nil && cfg.Config.RateLimitPerMin > 0 {
		perMinute = cfg.Config.RateLimitPerMin
	}

	var trusted []string
	if cfg.Config != nil {
		trusted = cfg.Config.TrustedProxyList()
	}

	middlewares := []func(http.Handler) http.Handler{
		trustedRealIP(trusted),
		middleware.RequestID,
		sessionMiddleware,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(perMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// RequireAdmin admits callers holding a configured bearer API key or an
// admin session. Session callers must echo the CSRF token on unsafe methods.
func RequireAdmin(service *auth.Service, csrf *shared.CSRFManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key, ok := bearerToken(r); ok {
				if !service.VerifyAPIKey(key) {
					logger.Warn("api key rejected", slog.String("path", r.URL.Path))
					httpx.Fail(w, http.StatusUnauthorized, "invalid api key")
					return
				}
				next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), auth.Principal(key))))
				return
			}

			sess := shared.SessionFromContext(r.Context())
			user := sess.User()
			if user == "" {
				httpx.Fail(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !safeMethod(r.Method) {
				if err := csrf.VerifyToken(sess, r.Header.Get(shared.CSRFHeader)); err != nil {
					logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.String("user", user))
					httpx.Fail(w, http.StatusForbidden, err.Error())
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), "user:"+user)))
		})
	}
}

// trustedRealIP applies chi's RealIP only for requests arriving from a
// trusted proxy; anyone else has the forwarding headers removed so later
// middleware sees the socket address.
func trustedRealIP(proxies []string) func(http.Handler) http.Handler {
	matcher := shared.NewIPMatcher(proxies)
	return func(next http.Handler) http.Handler {
		forwarded := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matcher.ContainsAddr(r.RemoteAddr) {
				forwarded.ServeHTTP(w, r)
				return
			}
			r.Header.Del("True-Client-IP")
			r.Header.Del("X-Real-IP")
			r.Header.Del("X-Forwarded-For")
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
