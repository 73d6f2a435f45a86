package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionguard"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by [Guard].
func AuthResultFromContext(ctx context.Context) (*sessionguard.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*sessionguard.AuthResult)
	return res, ok
}

// Guard rejects requests without a valid access token for a live session.
func Guard(engine *sessionguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if err := engine.Ready(r.Context()); err != nil {
				http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientContext attaches the client IP and User-Agent to the request context.
// Behind a proxy, run it after [RealIP] configured with the proxy's address.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := sessionguard.WithClientIP(r.Context(), clientIP(r.RemoteAddr))
		ctx = sessionguard.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
