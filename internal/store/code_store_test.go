package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestCodeStoreUpsert(t *testing.T) {
	ctx := context.Background()
	validUntil := time.Now().Add(24 * time.Hour)
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "ON CONFLICT (code)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "sunrise" || args[1] != int64(120) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewCodeStore(stubDB{})
	if err := store.Upsert(ctx, execer, "sunrise", 120, validUntil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCodeStoreGetForUpdate(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "sunrise" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*DailyCode) = DailyCode{Code: "sunrise", RewardAmount: 120}
			return nil
		},
	}
	store := NewCodeStore(stubDB{})
	row, err := store.GetForUpdate(ctx, getter, "sunrise")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.Code != "sunrise" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestCodeStoreHasRedeemed(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM redeemed_codes WHERE user_id = $1 AND code = $2") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*int) = 1
			return nil
		},
	}
	store := NewCodeStore(stubDB{})
	redeemed, err := store.HasRedeemed(ctx, getter, "user-1", "sunrise")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !redeemed {
		t.Fatal("expected existing row to count as redeemed")
	}
}

func TestCodeStoreInsertRedemption(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO redeemed_codes") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "user-1" || args[1] != "sunrise" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewCodeStore(stubDB{})
	if err := store.InsertRedemption(ctx, execer, "user-1", "sunrise"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
