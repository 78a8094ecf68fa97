package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"fairchain/internal/services"
	"fairchain/internal/store"
)

func TestStartMiningHandler(t *testing.T) {
	startedAt := time.Now().UTC()
	handler := newTestHandler(testDeps{
		service: stubService{
			startMiningFn: func(context.Context, string) (time.Time, error) {
				return startedAt, nil
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/mining/start", nil, "user-1")
	rr := serveAuthed(t, handler.StartMining, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestStartMiningHandlerConflict(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			startMiningFn: func(context.Context, string) (time.Time, error) {
				return time.Time{}, services.ErrMiningInProgress
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/mining/start", nil, "user-1")
	rr := serveAuthed(t, handler.StartMining, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestClaimMiningHandler(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			claimMiningFn: func(context.Context, string) (int64, error) {
				return 200, nil
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/mining/claim", nil, "user-1")
	rr := serveAuthed(t, handler.ClaimMining, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["reward"] != "2.00" {
		t.Fatalf("reward = %q", payload["reward"])
	}
}

func TestClaimMiningHandlerNotReady(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			claimMiningFn: func(context.Context, string) (int64, error) {
				return 0, services.ErrMiningNotReady
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/mining/claim", nil, "user-1")
	rr := serveAuthed(t, handler.ClaimMining, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestMiningStatusHandler(t *testing.T) {
	startedAt := time.Now().UTC().Add(-3 * time.Hour)
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			getByIDFn: func(_ context.Context, userID string) (store.User, error) {
				return store.User{ID: userID, MiningStartedAt: &startedAt}, nil
			},
		},
	})

	req := authedRequest(t, http.MethodGet, "/mining/status", nil, "user-1")
	rr := serveAuthed(t, handler.MiningStatus, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["active"] != true || payload["claimable"] != false {
		t.Fatalf("payload = %v", payload)
	}
}
