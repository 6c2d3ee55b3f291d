package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/clawdhub/clawdhub/internal/registry/auth"
	"github.com/clawdhub/clawdhub/internal/registry/ratelimit"
)

// ClientIP derives the caller's address. Proxy headers are consulted in a
// fixed order before falling back to the socket peer.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := r.Header.Get("Fly-Client-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TrailingSlashMiddleware redirects API requests with trailing slashes to
// their canonical form.
func TrailingSlashMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isAPIRoute := strings.HasPrefix(r.URL.Path, "/api/v1/") ||
			r.URL.Path == "/health" ||
			r.URL.Path == "/ping" ||
			strings.HasPrefix(r.URL.Path, "/docs")

		if isAPIRoute && r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(r.URL.Path, "/")
			http.Redirect(w, r, newURL.String(), http.StatusPermanentRedirect)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	body := map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to write error response: %v", err)
	}
}

// SessionMiddleware authenticates the bearer token (if any) and applies the
// rate limiter to every /api/v1 request. The resulting session rides on the
// request context for the handlers.
func SessionMiddleware(authn *auth.Authenticator, limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		rawToken := auth.ParseBearer(r.Header.Get("Authorization"))
		session, authErr := authn.Authenticate(r.Context(), rawToken)
		if authErr != nil && !errors.Is(authErr, auth.ErrUnauthorized) {
			log.Printf("authentication failed: %v", authErr)
			writeProblem(w, http.StatusInternalServerError, "Authentication backend unavailable")
			return
		}

		class := ratelimit.ClassWrite
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			class = ratelimit.ClassRead
		}
		tokenHash := ""
		if rawToken != "" {
			tokenHash = auth.HashToken(rawToken)
		}
		decision := limiter.Check(class, ClientIP(r), tokenHash)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds()+0.5)))
			writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		if errors.Is(authErr, auth.ErrUnauthorized) {
			writeProblem(w, http.StatusUnauthorized, "Invalid or revoked token")
			return
		}

		if session != nil {
			r = r.WithContext(auth.WithSession(r.Context(), session))
		}
		next.ServeHTTP(w, r)
	})
}
