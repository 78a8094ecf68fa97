package middleware

import (
	"context"
	"net/http"
)

type MaintenanceStore interface {
	MaintenanceEnabled(ctx context.Context) (bool, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Maintenance blocks non-admin traffic while the global maintenance flag is
// set. A store read failure fails open so a broken settings row cannot lock
// everyone out.
func Maintenance(store MaintenanceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enabled, err := store.MaintenanceEnabled(r.Context())
			if err != nil || !enabled {
				next.ServeHTTP(w, r)
				return
			}
			if userID, ok := UserIDFromContext(r.Context()); ok {
				isAdmin, err := store.IsAdmin(r.Context(), userID)
				if err == nil && isAdmin {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "maintenance_mode", http.StatusServiceUnavailable)
		})
	}
}
