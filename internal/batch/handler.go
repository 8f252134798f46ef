package batch

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/shared"
)

// Handler mirrors the CLI over HTTP.
type Handler struct {
	runner *Runner
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(runner *Runner, logger *slog.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// MountRoutes registers POST /{command}. Positional arguments are passed
// as repeated or comma-separated "args" query parameters.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{command}", h.run)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := Options{Args: splitArgs(q["args"])}
	var err error
	if v := q.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if opts.Offset, err = strconv.Atoi(v); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
	}
	command := chi.URLParam(r, "command")
	res := h.runner.Run(r.Context(), command, opts)
	h.logger.Info("batch command", slog.String("command", command), slog.Bool("ok", res.OK))

	status := http.StatusOK
	switch {
	case res.Usage:
		status = http.StatusBadRequest
	case !res.OK:
		status = http.StatusInternalServerError
	}
	if q.Get("format") == "json" {
		httpx.JSON(w, status, httpx.Envelope{Success: res.OK, Data: res, Error: res.Error})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	for _, line := range res.Lines {
		_, _ = w.Write([]byte(line + "\n"))
	}
	if res.Error != "" {
		_, _ = w.Write([]byte("error: " + res.Error + "\n"))
	}
}

func splitArgs(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// AllowIPs admits only requests whose client address is in allowed. It
// reads r.RemoteAddr, which the app stack rewrites from forwarding headers
// only for trusted proxies.
func AllowIPs(allowed []string, logger *slog.Logger) func(http.Handler) http.Handler {
	matcher := shared.NewIPMatcher(allowed)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matcher.ContainsAddr(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("batch request from disallowed address", slog.String("remote", shared.HostOnly(r.RemoteAddr)))
			httpx.Fail(w, http.StatusForbidden, "forbidden")
		})
	}
}
