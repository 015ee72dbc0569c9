package repo

import (
	"context"
	"errors"
	"fmt"

	dom "taskmanager/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskRepo persists tasks. It does not check ownership; callers scope by owner.
type TaskRepo interface {
	Create(ctx context.Context, t dom.Task) (dom.Task, error)
	GetByID(ctx context.Context, id string) (dom.Task, error)
	ListByOwner(ctx context.Context, ownerID string, f dom.TaskFilter) ([]dom.Task, error)
	Update(ctx context.Context, t dom.Task) (dom.Task, error)
	Delete(ctx context.Context, id string) error
}

type PGTaskRepo struct {
	db *pgxpool.Pool
}

func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

const taskColumns = `id, title, description, status, deadline, owner_id, created_at, updated_at`

func (r *PGTaskRepo) Create(ctx context.Context, t dom.Task) (dom.Task, error) {
	query := `
		INSERT INTO tasks (id, title, description, status, deadline, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + taskColumns
	out, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, string(t.Status), t.Deadline, t.OwnerID, t.CreatedAt, t.UpdatedAt,
	))
	if err != nil {
		return dom.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return out, nil
}

func (r *PGTaskRepo) GetByID(ctx context.Context, id string) (dom.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, fmt.Errorf("select task: %w", err)
	}
	return t, nil
}

func (r *PGTaskRepo) ListByOwner(ctx context.Context, ownerID string, f dom.TaskFilter) ([]dom.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks WHERE owner_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY ` + orderClause(f)
	rows, err := r.db.Query(ctx, query, ownerID, string(f.Status))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	list := make([]dom.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *PGTaskRepo) Update(ctx context.Context, t dom.Task) (dom.Task, error) {
	query := `
		UPDATE tasks SET title = $2, description = $3, status = $4, deadline = $5, updated_at = $6
		WHERE id = $1
		RETURNING ` + taskColumns
	out, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, string(t.Status), t.Deadline, t.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, fmt.Errorf("update task: %w", err)
	}
	return out, nil
}

func (r *PGTaskRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// orderClause only ever interpolates whitelisted column names.
func orderClause(f dom.TaskFilter) string {
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	if f.SortBy == dom.SortByDeadline {
		return "deadline IS NULL, deadline " + dir + ", created_at ASC, id ASC"
	}
	return "created_at " + dir + ", id ASC"
}

func scanTask(row pgx.Row) (dom.Task, error) {
	var (
		t      dom.Task
		status string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.Deadline,
		&t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	t.Status = dom.Status(status)
	return t, err
}
