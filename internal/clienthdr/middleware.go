package clienthdr

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is a private type for context values set by this package.
type contextKey struct{}

var infoKey contextKey

// FromContext returns the client info stashed by Middleware.
// The zero Info (customer role, no version) is returned for requests that
// bypassed the middleware, such as exempt paths.
func FromContext(ctx context.Context) Info {
	if info, ok := ctx.Value(infoKey).(Info); ok {
		return info
	}
	return Info{Role: RoleCustomer}
}

// WithInfo returns a context carrying client info. Exported for tests.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// exemptPaths skip client identification: health probes and protocol
// endpoints that carry their own metadata.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/mcp":     true,
}

// Middleware enforces the Storefront-Client header on API requests.
// Requests with a missing or malformed header receive 400; requests from an
// unsupported client version receive 426. Parsed info is attached to the
// request context for handlers and the catalog client.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(HeaderName)
			info, err := ParseHeader(header)
			if err != nil {
				writeHeaderError(w, http.StatusBadRequest, CodeClientRequired,
					"Storefront-Client header is required, e.g. version=\"1.4.0\"")
				return
			}

			if err := CheckVersion(info.Version); err != nil {
				verErr := err.(*VersionError)
				logger.Warn("unsupported client version",
					slog.String("version", info.Version),
					slog.String("path", r.URL.Path),
				)
				writeHeaderError(w, http.StatusUpgradeRequired, verErr.Code, verErr.Message)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
		})
	}
}

// isExempt reports whether a path skips client identification.
func isExempt(path string) bool {
	if exemptPaths[path] {
		return true
	}
	return strings.HasPrefix(path, "/.well-known/")
}

// writeHeaderError sends the middleware's own error envelope. Kept local to
// avoid an import cycle with the handler package.
func writeHeaderError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
