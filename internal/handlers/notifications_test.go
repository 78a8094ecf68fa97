package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"fairchain/internal/store"
)

func TestListNotifications(t *testing.T) {
	handler := newTestHandler(testDeps{
		notifications: stubNotificationStore{
			listByUserFn: func(_ context.Context, userID string, limit, offset int) ([]store.Notification, error) {
				if userID != "user-1" || limit != 20 || offset != 0 {
					t.Fatalf("unexpected args: %s %d %d", userID, limit, offset)
				}
				return []store.Notification{
					{ID: "note-1", Type: string(store.NotificationBonus), Title: "Daily Check-in", Amount: 100},
				}, nil
			},
			countUnreadFn: func(context.Context, string) (int, error) {
				return 1, nil
			},
		},
	})

	req := authedRequest(t, http.MethodGet, "/notifications", nil, "user-1")
	rr := serveAuthed(t, handler.ListNotifications, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	notifications := payload["notifications"].([]any)
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].(map[string]any)["amount"] != "1.00" {
		t.Fatalf("amount = %v", notifications[0].(map[string]any)["amount"])
	}
	if payload["unread_count"] != float64(1) {
		t.Fatalf("unread_count = %v", payload["unread_count"])
	}
}

func TestListNotificationsClampsLimit(t *testing.T) {
	var gotLimit int
	handler := newTestHandler(testDeps{
		notifications: stubNotificationStore{
			listByUserFn: func(_ context.Context, _ string, limit, _ int) ([]store.Notification, error) {
				gotLimit = limit
				return nil, nil
			},
		},
	})

	req := authedRequest(t, http.MethodGet, "/notifications?limit=100000", nil, "user-1")
	rr := serveAuthed(t, handler.ListNotifications, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != 100 {
		t.Fatalf("limit = %d, want clamped to 100", gotLimit)
	}
}

func TestMarkNotificationsRead(t *testing.T) {
	var markedUser string
	handler := newTestHandler(testDeps{
		notifications: stubNotificationStore{
			markAllReadFn: func(_ context.Context, _ store.Execer, userID string) error {
				markedUser = userID
				return nil
			},
		},
	})

	req := authedRequest(t, http.MethodPost, "/notifications/read", nil, "user-1")
	rr := serveAuthed(t, handler.MarkNotificationsRead, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if markedUser != "user-1" {
		t.Fatalf("marked user = %q", markedUser)
	}
}
