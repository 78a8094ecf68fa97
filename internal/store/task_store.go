package store

import (
	"context"
	"time"
)

type TaskStore struct {
	db DB
}

func NewTaskStore(db DB) *TaskStore {
	return &TaskStore{db: db}
}

type Task struct {
	ID               string    `db:"id"`
	Title            string    `db:"title"`
	Reward           int64     `db:"reward"`
	URL              *string   `db:"url"`
	VerificationText *string   `db:"verification_text"`
	CreatedAt        time.Time `db:"created_at"`
}

// UserTask is the completion record; the (user_id, task_id) primary key is
// itself the double-claim guard.
type UserTask struct {
	UserID      string     `db:"user_id"`
	TaskID      string     `db:"task_id"`
	TaskTitle   string     `db:"task_title"`
	Status      string     `db:"status"`
	SubmittedAt *time.Time `db:"submitted_at"`
}

const (
	UserTaskPending   = "pending_verification"
	UserTaskCompleted = "completed"
	UserTaskRejected  = "rejected"
)

func (s *TaskStore) Create(ctx context.Context, tx Execer, id, title string, reward int64, url, verificationText *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, reward, url, verification_text)
		VALUES ($1, $2, $3, $4, $5)
	`, id, title, reward, url, verificationText)
	return err
}

func (s *TaskStore) Update(ctx context.Context, tx Execer, taskID, title string, reward int64, url, verificationText *string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, reward = $3, url = $4, verification_text = $5
		WHERE id = $1
	`, taskID, title, reward, url, verificationText)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TaskStore) Delete(ctx context.Context, tx Execer, taskID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TaskStore) GetForUpdate(ctx context.Context, tx Getter, taskID string) (Task, error) {
	var row Task
	err := tx.GetContext(ctx, &row, `
		SELECT id, title, reward, url, verification_text, created_at
		FROM tasks WHERE id = $1 FOR UPDATE
	`, taskID)
	if err != nil {
		return Task{}, err
	}
	return row, nil
}

func (s *TaskStore) List(ctx context.Context) ([]Task, error) {
	var rows []Task
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, title, reward, url, verification_text, created_at
		FROM tasks ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TaskStore) GetUserTask(ctx context.Context, tx Getter, userID, taskID string) (UserTask, error) {
	var row UserTask
	err := tx.GetContext(ctx, &row, `
		SELECT user_id, task_id, task_title, status, submitted_at
		FROM user_tasks WHERE user_id = $1 AND task_id = $2
	`, userID, taskID)
	if err != nil {
		return UserTask{}, err
	}
	return row, nil
}

func (s *TaskStore) UpsertUserTask(ctx context.Context, tx Execer, userID, taskID, taskTitle, status string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_tasks (user_id, task_id, task_title, status, submitted_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, task_id)
		DO UPDATE SET status = EXCLUDED.status, submitted_at = EXCLUDED.submitted_at
	`, userID, taskID, taskTitle, status)
	return err
}

func (s *TaskStore) ListUserTasks(ctx context.Context, userID string) ([]UserTask, error) {
	var rows []UserTask
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, task_id, task_title, status, submitted_at
		FROM user_tasks WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
