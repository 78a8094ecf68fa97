package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fairchain/internal/auth"
	"fairchain/internal/store"

	"github.com/lib/pq"
)

func TestRegisterSuccess(t *testing.T) {
	var created *store.UserInput
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			createFn: func(_ context.Context, _ store.Execer, input store.UserInput) error {
				created = &input
				return nil
			},
		},
	})

	body := []byte(`{"username":"alice","email":"alice@example.com","password":"pass1234","full_name":"Alice Smith"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Register(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created == nil {
		t.Fatal("expected user to be created")
	}
	if created.VerifyToken == "" {
		t.Fatal("expected a verification token")
	}
	if created.ReferredBy != nil {
		t.Fatalf("unexpected referrer: %v", *created.ReferredBy)
	}
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["status"] != "verification_required" {
		t.Fatalf("status = %q", payload["status"])
	}
}

func TestRegisterWithReferralCreditsReferrer(t *testing.T) {
	var created *store.UserInput
	var balances []int64
	var counts []int
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			createFn: func(_ context.Context, _ store.Execer, input store.UserInput) error {
				created = &input
				return nil
			},
			getForUpdateFn: func(_ context.Context, _ store.Getter, userID string) (store.User, error) {
				return store.User{ID: userID, VerifiedBalance: 100, UnverifiedBalance: 600, VerifiedReferrals: 1, UnverifiedReferrals: 2}, nil
			},
			updateBalancesFn: func(_ context.Context, _ store.Execer, _ string, verified, unverified int64) error {
				balances = []int64{verified, unverified}
				return nil
			},
			setReferralCountsFn: func(_ context.Context, _ store.Execer, _ string, verified, unverified int) error {
				counts = []int{verified, unverified}
				return nil
			},
		},
		settings: stubSettingsStore{
			getTxFn: func(context.Context, store.Getter) (store.Settings, error) {
				return store.Settings{ReferralReward: 300}, nil
			},
		},
	})

	body := []byte(`{"username":"bob","email":"bob@example.com","password":"pass1234","full_name":"Bob Jones","referral_code":"ref-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Register(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created == nil || created.ReferredBy == nil || *created.ReferredBy != "ref-1" {
		t.Fatalf("created = %+v, want referred_by ref-1", created)
	}
	if len(balances) != 2 || balances[0] != 100 || balances[1] != 900 {
		t.Fatalf("referrer balances = %v, want reward in unverified", balances)
	}
	if len(counts) != 2 || counts[0] != 1 || counts[1] != 3 {
		t.Fatalf("referral counts = %v, want unverified incremented", counts)
	}
}

func TestRegisterUnknownReferral(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			getForUpdateFn: func(context.Context, store.Getter, string) (store.User, error) {
				return store.User{}, sql.ErrNoRows
			},
		},
	})

	body := []byte(`{"username":"bob","email":"bob@example.com","password":"pass1234","full_name":"Bob Jones","referral_code":"missing"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Register(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			createFn: func(context.Context, store.Execer, store.UserInput) error {
				return &pq.Error{Code: "23505"}
			},
		},
	})

	body := []byte(`{"username":"alice","email":"alice@example.com","password":"pass1234","full_name":"Alice Smith"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Register(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestVerifyEmail(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			markEmailVerifiedFn: func(_ context.Context, token string) (int64, error) {
				if token == "good-token" {
					return 1, nil
				}
				return 0, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	handler.VerifyEmail(rr, httptest.NewRequest(http.MethodGet, "/auth/verify-email?token=good-token", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.VerifyEmail(rr, httptest.NewRequest(http.MethodGet, "/auth/verify-email?token=bad-token", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown token, got %d", rr.Code)
	}
}

func TestLoginSuccess(t *testing.T) {
	passwordHash, err := auth.HashPassword("pass1234")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			getByEmailFn: func(context.Context, string) (store.User, error) {
				return store.User{ID: "user-1", PasswordHash: passwordHash, EmailVerified: true}, nil
			},
		},
	})

	body := []byte(`{"email":"alice@example.com","password":"pass1234"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Login(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["token"] == "" {
		t.Fatal("expected token")
	}
}

func TestLoginUnverifiedEmail(t *testing.T) {
	passwordHash, err := auth.HashPassword("pass1234")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			getByEmailFn: func(context.Context, string) (store.User, error) {
				return store.User{ID: "user-1", PasswordHash: passwordHash, EmailVerified: false}, nil
			},
		},
	})

	body := []byte(`{"email":"alice@example.com","password":"pass1234"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Login(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			getByEmailFn: func(context.Context, string) (store.User, error) {
				return store.User{}, sql.ErrNoRows
			},
		},
	})

	body := []byte(`{"email":"alice@example.com","password":"pass1234"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.Login(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMe(t *testing.T) {
	handler := newTestHandler(testDeps{
		users: stubUserStore{
			getByIDFn: func(_ context.Context, userID string) (store.User, error) {
				return store.User{ID: userID, Username: "alice", VerifiedBalance: 1234, UnverifiedBalance: 50}, nil
			},
		},
	})

	req := authedRequest(t, http.MethodGet, "/auth/me", nil, "user-1")
	rr := serveAuthed(t, handler.Me, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["verified_balance"] != "12.34" {
		t.Fatalf("verified_balance = %v", payload["verified_balance"])
	}
	if payload["unverified_balance"] != "0.50" {
		t.Fatalf("unverified_balance = %v", payload["unverified_balance"])
	}
}
