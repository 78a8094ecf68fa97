package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestTaskStoreCreate(t *testing.T) {
	ctx := context.Background()
	text := "secret phrase"
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO tasks") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[0] != "task-1" || args[2] != int64(75) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTaskStore(stubDB{})
	if err := store.Create(ctx, execer, "task-1", "Follow us", 75, nil, &text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskStoreUpdate(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "UPDATE tasks") || !strings.Contains(query, "WHERE id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 5 || args[0] != "task-1" || args[1] != "Follow us" || args[2] != int64(125) {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTaskStore(stubDB{})
	rows, err := store.Update(ctx, execer, "task-1", "Follow us", 125, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
}

func TestTaskStoreDelete(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM tasks WHERE id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTaskStore(stubDB{})
	rows, err := store.Delete(ctx, execer, "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
}

func TestTaskStoreGetForUpdate(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*Task) = Task{ID: "task-1"}
			return nil
		},
	}
	store := NewTaskStore(stubDB{})
	row, err := store.GetForUpdate(ctx, getter, "task-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "task-1" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestTaskStoreUpsertUserTask(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "ON CONFLICT (user_id, task_id)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[0] != "user-1" || args[1] != "task-1" || args[3] != UserTaskCompleted {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewTaskStore(stubDB{})
	if err := store.UpsertUserTask(ctx, execer, "user-1", "task-1", "Follow us", UserTaskCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskStoreListUserTasks(t *testing.T) {
	ctx := context.Background()
	store := NewTaskStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM user_tasks WHERE user_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*[]UserTask) = []UserTask{{TaskID: "task-1", Status: UserTaskCompleted}}
			return nil
		},
	})
	rows, err := store.ListUserTasks(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].TaskID != "task-1" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}
