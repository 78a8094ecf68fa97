package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeMaintenanceStore struct {
	enabled    bool
	enabledErr error
	admins     map[string]bool
}

func (f fakeMaintenanceStore) MaintenanceEnabled(context.Context) (bool, error) {
	return f.enabled, f.enabledErr
}

func (f fakeMaintenanceStore) IsAdmin(_ context.Context, userID string) (bool, error) {
	return f.admins[userID], nil
}

func TestMaintenanceDisabledPassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	Maintenance(fakeMaintenanceStore{})(next).ServeHTTP(rr, requestWithUser("user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestMaintenanceBlocksUsers(t *testing.T) {
	store := fakeMaintenanceStore{enabled: true}
	rr := httptest.NewRecorder()
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler should not run")
	})
	Maintenance(store)(next).ServeHTTP(rr, requestWithUser("user-1"))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMaintenanceAdminBypass(t *testing.T) {
	store := fakeMaintenanceStore{enabled: true, admins: map[string]bool{"admin-1": true}}
	rr := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	Maintenance(store)(next).ServeHTTP(rr, requestWithUser("admin-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rr.Code)
	}
}

func TestMaintenanceFailsOpenOnStoreError(t *testing.T) {
	store := fakeMaintenanceStore{enabledErr: errors.New("db down")}
	rr := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	Maintenance(store)(next).ServeHTTP(rr, requestWithUser("user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when the flag cannot be read, got %d", rr.Code)
	}
}
