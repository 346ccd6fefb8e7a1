package middleware

import (
	"net/http"
	"strings"

	pkgmw "github.com/deskwise/deskwise/pkg/middleware"
)

// ProjectExtractor resolves the tenant-scoping project_id for a request
// and stores it in context via pkg/middleware, so every handler and every
// store call downstream can read it with pkgmw.GetProjectID (spec §3's
// project-scoping invariant starts here, at the HTTP boundary).
//
// Resolution order: "project_id" query parameter, then the X-Project-Id
// header. Platform callback routes (spec §4.7) resolve their project
// indirectly through the platform's api_key instead and do not depend on
// this middleware having found one.
func ProjectExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
		if projectID == "" {
			projectID = strings.TrimSpace(r.Header.Get("X-Project-Id"))
		}

		ctx := pkgmw.SetProjectID(r.Context(), projectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetProjectID retrieves the resolved project id from the request context.
func GetProjectID(r *http.Request) string {
	return pkgmw.GetProjectID(r.Context())
}
