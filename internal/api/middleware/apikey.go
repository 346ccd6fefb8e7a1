package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
)

// APIKeyAuth is middleware guarding the admin HTTP surface (collections,
// files, websites, QA pairs, embedding configs — spec §6). It is
// deliberately separate from the per-platform callback authentication in
// internal/inbox (spec §4.7): that scheme is signature/secret-based and
// per platform type, this one is a single shared-secret gate in front of
// the whole admin API, the shape spec.md §1 leaves unspecified
// ("authentication middleware... out of scope") beyond requiring one.
//
// When enabled (DESKWISE_API_KEYS is set), all requests must include a
// valid key via:
//   - Authorization: Bearer <key>
//   - X-API-Key: <key>
//
// The following paths are always public, since they authenticate
// themselves by other means or must stay reachable for health checks:
//   - /health, /version
//   - /v1/platforms/callback/{api_key} (per-platform signature auth)
//   - /integrations/wukongim/webhook
//
// API keys are configured via the DESKWISE_API_KEYS environment variable
// as a comma-separated list: "key1,key2,key3". Unset — the zero-config
// default — disables auth entirely.
type APIKeyAuth struct {
	mu      sync.RWMutex
	keys    map[string]bool
	enabled bool
}

// NewAPIKeyAuth creates an API key auth middleware from environment config.
func NewAPIKeyAuth() *APIKeyAuth {
	auth := &APIKeyAuth{
		keys: make(map[string]bool),
	}

	keysEnv := os.Getenv("DESKWISE_API_KEYS")
	if keysEnv == "" {
		// No API keys configured — auth disabled
		auth.enabled = false
		return auth
	}

	for _, key := range strings.Split(keysEnv, ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			auth.keys[key] = true
			auth.enabled = true
		}
	}

	return auth
}

// Enabled returns whether API key auth is active.
func (a *APIKeyAuth) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// AddKey adds a new API key at runtime.
func (a *APIKeyAuth) AddKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[key] = true
	a.enabled = true
}

// RemoveKey removes an API key at runtime.
func (a *APIKeyAuth) RemoveKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.keys, key)
	if len(a.keys) == 0 {
		a.enabled = false
	}
}

// Middleware returns an http.Handler middleware that enforces API key auth.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always allow unauthenticated requests if auth is disabled
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		// Public endpoints — no auth required
		path := r.URL.Path
		if isPublicPath(path) {
			next.ServeHTTP(w, r)
			return
		}

		// Extract API key from request
		apiKey := extractAPIKey(r)
		if apiKey == "" {
			respondUnauthorized(w, "API key required. Set Authorization: Bearer <key> or X-API-Key header.")
			return
		}

		// Validate the key (constant-time comparison)
		if !a.validateKey(apiKey) {
			respondUnauthorized(w, "Invalid API key.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *APIKeyAuth) validateKey(candidate string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for key := range a.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func extractAPIKey(r *http.Request) string {
	// Check Authorization: Bearer <key>
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// Check X-API-Key header
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// Check api_key query parameter (for SSE/WebSocket connections)
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key
	}

	return ""
}

func isPublicPath(path string) bool {
	publicPaths := []string{
		"/health",
		"/version",
	}

	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}

	// Platform callbacks authenticate per-platform (spec §4.7); the
	// WuKongIM webhook is resolved the same way (see internal/api/handlers
	// platform callback handler).
	if strings.HasPrefix(path, "/v1/platforms/callback/") {
		return true
	}
	if strings.HasPrefix(path, "/integrations/wukongim/webhook") {
		return true
	}

	return false
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="deskwise"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
