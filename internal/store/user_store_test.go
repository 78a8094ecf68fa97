package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestUserStoreCreate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO users") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 7 {
				t.Fatalf("expected 7 args, got %d", len(args))
			}
			if args[0] != "user-1" || args[1] != "alice@example.com" || args[2] != "alice" {
				t.Fatalf("unexpected args: %#v", args)
			}
			if ptr, ok := args[6].(*string); !ok || ptr == nil || *ptr != "ref-1" {
				t.Fatalf("unexpected referred_by arg: %#v", args[6])
			}
			return stubResult{rows: 1}, nil
		},
	}
	referrer := "ref-1"
	store := NewUserStore(stubDB{})
	err := store.Create(ctx, execer, UserInput{
		ID:           "user-1",
		Email:        "alice@example.com",
		Username:     "alice",
		FullName:     "Alice Smith",
		PasswordHash: "hash",
		VerifyToken:  "token",
		ReferredBy:   &referrer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreGetByEmail(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "LOWER(email) = LOWER($1)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "Alice@Example.com" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*User) = User{ID: "user-1"}
			return nil
		},
	})
	row, err := store.GetByEmail(ctx, "Alice@Example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "user-1" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestUserStoreGetForUpdate(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*User) = User{ID: "user-1"}
			return nil
		},
	}
	store := NewUserStore(stubDB{})
	row, err := store.GetForUpdate(ctx, getter, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "user-1" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestUserStoreResolveIDByEmail(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("resolve must not lock: %s", query)
			}
			if len(args) != 1 || args[0] != "bob@example.com" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*string) = "user-2"
			return nil
		},
	}
	store := NewUserStore(stubDB{})
	id, err := store.ResolveIDByEmail(ctx, getter, "bob@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "user-2" {
		t.Fatalf("unexpected id: %s", id)
	}
}

func TestUserStoreUpdateBalances(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET verified_balance = $1, unverified_balance = $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != int64(500) || args[1] != int64(300) || args[2] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.UpdateBalances(ctx, execer, "user-1", 500, 300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreSetMiningStartedAtClearsWithNil(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET mining_started_at = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 {
				t.Fatalf("expected 2 args, got %d", len(args))
			}
			if ptr, ok := args[0].(*time.Time); !ok || ptr != nil {
				t.Fatalf("unexpected timestamp arg: %#v", args[0])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewUserStore(stubDB{})
	if err := store.SetMiningStartedAt(ctx, execer, "user-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserStoreMarkEmailVerified(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "WHERE verify_token = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "token-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	rows, err := store.MarkEmailVerified(ctx, "token-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
}

func TestUserStoreTotals(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "SUM(verified_balance)") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*BalanceTotals) = BalanceTotals{Users: 5, Verified: 1000, Unverified: 200}
			return nil
		},
	})
	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Users != 5 || totals.Verified != 1000 || totals.Unverified != 200 {
		t.Fatalf("unexpected totals: %#v", totals)
	}
}

func TestUserStoreIsAdmin(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "SELECT role FROM users") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*string) = "admin"
			return nil
		},
	})
	isAdmin, err := store.IsAdmin(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isAdmin {
		t.Fatal("expected admin role to be recognized")
	}
}
