package repository

import (
	"context"
	"fmt"

	"github.com/ad-tracker/engagement-exchange-go/internal/db"
	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskRepository defines operations for persisting tasks. Tasks are never deleted.
type TaskRepository interface {
	// Create inserts a new task and sets its ID.
	Create(ctx context.Context, task *models.Task) error

	// GetByID retrieves a task by ID.
	GetByID(ctx context.Context, id int64) (*models.Task, error)

	// Update saves the mutable fields of a task. A task that is already
	// terminal in storage is not overwritten and models.ErrTaskTerminal is returned.
	Update(ctx context.Context, task *models.Task) error

	// MarkDisputed flags the task as disputed whatever its status.
	MarkDisputed(ctx context.Context, id int64) error

	// GetOpenByUser retrieves the user's non-terminal task, if any.
	GetOpenByUser(ctx context.Context, userID int64) (*models.Task, error)

	// ListOpen retrieves non-terminal tasks, oldest first.
	ListOpen(ctx context.Context, limit int) ([]*models.Task, error)

	// ListOpenAfter retrieves up to limit non-terminal tasks that sort after
	// the cursor in (created_at, id) order.
	ListOpenAfter(ctx context.Context, after models.TaskCursor, limit int) ([]*models.Task, error)

	// CountByUser counts all tasks the user ever took part in.
	CountByUser(ctx context.Context, userID int64) (int, error)

	// CountOpen counts non-terminal tasks.
	CountOpen(ctx context.Context) (int, error)
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, user_a, user_b, video_a_id, video_b_id, proof_a, proof_b, verify_a, verify_b,
	status, resolution, favored_side, disputed, created_at, updated_at, resolved_at`

const openTaskFilter = `status NOT IN ('resolved', 'auto_resolved')`

func scanTask(row pgx.Row) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID,
		&t.UserA,
		&t.UserB,
		&t.VideoAID,
		&t.VideoBID,
		&t.ProofA,
		&t.ProofB,
		&t.VerifyA,
		&t.VerifyB,
		&t.Status,
		&t.Resolution,
		&t.FavoredSide,
		&t.Disputed,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (user_a, user_b, video_a_id, video_b_id, verify_a, verify_b, status, resolution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.pool.QueryRow(ctx, query,
		task.UserA,
		task.UserB,
		task.VideoAID,
		task.VideoBID,
		string(task.VerifyA),
		string(task.VerifyB),
		string(task.Status),
		string(task.Resolution),
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID)
	if err != nil {
		return db.WrapError(err, "create task")
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get task by id")
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET proof_a = $2,
		    proof_b = $3,
		    verify_a = $4,
		    verify_b = $5,
		    status = $6,
		    resolution = $7,
		    favored_side = $8,
		    disputed = $9,
		    updated_at = $10,
		    resolved_at = $11
		WHERE id = $1 AND ` + openTaskFilter

	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		task.ProofA,
		task.ProofB,
		string(task.VerifyA),
		string(task.VerifyB),
		string(task.Status),
		string(task.Resolution),
		string(task.FavoredSide),
		task.Disputed,
		task.UpdatedAt,
		task.ResolvedAt,
	)
	if err != nil {
		return db.WrapError(err, "update task")
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, task.ID); err != nil {
			return err
		}
		return fmt.Errorf("update task: %w", models.ErrTaskTerminal)
	}
	return nil
}

func (r *taskRepository) MarkDisputed(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET disputed = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "mark task disputed")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark task disputed: %w", db.ErrNotFound)
	}
	return nil
}

func (r *taskRepository) GetOpenByUser(ctx context.Context, userID int64) (*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE (user_a = $1 OR user_b = $1) AND ` + openTaskFilter + `
		ORDER BY created_at DESC
		LIMIT 1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, db.WrapError(err, "get open task by user")
	}
	return task, nil
}

func (r *taskRepository) ListOpen(ctx context.Context, limit int) ([]*models.Task, error) {
	return r.ListOpenAfter(ctx, models.TaskCursor{}, limit)
}

func (r *taskRepository) ListOpenAfter(ctx context.Context, after models.TaskCursor, limit int) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE ` + openTaskFilter + ` AND (created_at, id) > ($1::timestamptz, $2::bigint)
		ORDER BY created_at ASC, id ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, after.CreatedAt, after.ID, limit)
	if err != nil {
		return nil, db.WrapError(err, "list open tasks")
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (r *taskRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE user_a = $1 OR user_b = $1`, userID).Scan(&count)
	if err != nil {
		return 0, db.WrapError(err, "count tasks by user")
	}
	return count, nil
}

func (r *taskRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+openTaskFilter).Scan(&count)
	if err != nil {
		return 0, db.WrapError(err, "count open tasks")
	}
	return count, nil
}
