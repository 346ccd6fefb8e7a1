// Package middleware provides shared context helpers for tenant (project)
// scoping, used by internal/api/middleware and any embedding caller.
package middleware

import "context"

type contextKey string

const projectKey contextKey = "project_id"

// GetProjectID extracts the project ID from the context. Returns "" if
// none is set — callers must treat that as "no tenant resolved", not a
// valid default project (spec §3: every row is project-scoped).
func GetProjectID(ctx context.Context) string {
	if v, ok := ctx.Value(projectKey).(string); ok {
		return v
	}
	return ""
}

// SetProjectID stores the project ID in the context.
func SetProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectKey, projectID)
}
