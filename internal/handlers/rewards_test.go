package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"fairchain/internal/services"
	"fairchain/internal/store"
)

func TestCheckInHandler(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			checkInFn: func(_ context.Context, userID string) (services.CheckInResult, error) {
				if userID != "user-1" {
					t.Fatalf("unexpected user id %q", userID)
				}
				return services.CheckInResult{Reward: 100, VerifiedBalance: 350, AdAvailable: true}, nil
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/rewards/checkin", nil, "user-1")
	rr := serveAuthed(t, handler.CheckIn, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["reward"] != "1.00" || payload["verified_balance"] != "3.50" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["ad_available"] != true {
		t.Fatalf("ad_available = %v", payload["ad_available"])
	}
}

func TestCheckInHandlerCooldown(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			checkInFn: func(context.Context, string) (services.CheckInResult, error) {
				return services.CheckInResult{}, services.ErrCooldownActive
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/rewards/checkin", nil, "user-1")
	rr := serveAuthed(t, handler.CheckIn, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestCheckInStatusHandler(t *testing.T) {
	lastCheckIn := time.Now().UTC().Add(-2 * time.Hour)
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			getByIDFn: func(_ context.Context, userID string) (store.User, error) {
				return store.User{ID: userID, LastCheckIn: &lastCheckIn}, nil
			},
		},
	})

	req := authedRequest(t, http.MethodGet, "/rewards/checkin/status", nil, "user-1")
	rr := serveAuthed(t, handler.CheckInStatus, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["ready"] != false {
		t.Fatalf("ready = %v, want false inside the window", payload["ready"])
	}
	remaining, ok := payload["remaining_seconds"].(float64)
	if !ok || remaining <= 0 {
		t.Fatalf("remaining_seconds = %v", payload["remaining_seconds"])
	}
}

func TestAdBonusHandlerConflict(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			claimAdBonusFn: func(context.Context, string) (int64, error) {
				return 0, services.ErrAdBonusNotAvailable
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/rewards/ad-bonus", nil, "user-1")
	rr := serveAuthed(t, handler.ClaimAdBonus, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestRedeemCodeHandler(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			redeemCodeFn: func(_ context.Context, _, code string) (int64, error) {
				if code != "sunrise" {
					t.Fatalf("unexpected code %q", code)
				}
				return 120, nil
			},
		},
	})

	body := bytes.NewReader([]byte(`{"code":"sunrise"}`))
	req := authedRequest(t, http.MethodPost, "/rewards/redeem", body, "user-1")
	rr := serveAuthed(t, handler.RedeemCode, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRedeemCodeHandlerExpired(t *testing.T) {
	handler := newTestHandler(testDeps{
		service: stubService{
			redeemCodeFn: func(context.Context, string, string) (int64, error) {
				return 0, services.ErrCodeExpired
			},
		},
	})

	body := bytes.NewReader([]byte(`{"code":"sunrise"}`))
	req := authedRequest(t, http.MethodPost, "/rewards/redeem", body, "user-1")
	rr := serveAuthed(t, handler.RedeemCode, req)
	if rr.Code != http.StatusGone {
		t.Fatalf("expected 410, got %d", rr.Code)
	}
}
