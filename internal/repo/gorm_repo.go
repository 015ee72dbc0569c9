package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	dom "taskmanager/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRecord struct {
	ID           string    `gorm:"primaryKey;type:text"`
	Name         string    `gorm:"not null;type:text"`
	Email        string    `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string    `gorm:"not null;type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
}

func (userRecord) TableName() string { return "users" }

type taskRecord struct {
	ID          string  `gorm:"primaryKey;type:text"`
	Title       string  `gorm:"not null;type:text"`
	Description *string `gorm:"type:text"`
	Status      string  `gorm:"not null;type:text;default:pending"`
	Deadline    *time.Time
	OwnerID     string    `gorm:"index;not null;type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (taskRecord) TableName() string { return "tasks" }

// OpenSQLite opens (and migrates) a SQLite database through GORM.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRecord{}, &taskRecord{}); err != nil {
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return db, nil
}

// GormUserRepo implements UserRepo with GORM.
type GormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

func (r *GormUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	rec := userRecord{ID: u.ID, Name: u.Name, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dom.User{}, ErrDuplicate
		}
		return dom.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *GormUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormUserRepo) GetByID(ctx context.Context, id string) (dom.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormUserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	result := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormUserRepo) first(ctx context.Context, cond string, arg any) (dom.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).First(&rec, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return rec.toDomain(), nil
}

func (rec userRecord) toDomain() dom.User {
	return dom.User{ID: rec.ID, Name: rec.Name, Email: rec.Email, PasswordHash: rec.PasswordHash, CreatedAt: rec.CreatedAt}
}

// GormTaskRepo implements TaskRepo with GORM.
type GormTaskRepo struct {
	db *gorm.DB
}

func NewGormTaskRepo(db *gorm.DB) *GormTaskRepo {
	return &GormTaskRepo{db: db}
}

func (r *GormTaskRepo) Create(ctx context.Context, t dom.Task) (dom.Task, error) {
	rec := taskToRecord(t)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dom.Task{}, ErrDuplicate
		}
		return dom.Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *GormTaskRepo) GetByID(ctx context.Context, id string) (dom.Task, error) {
	var rec taskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, fmt.Errorf("failed to find task: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *GormTaskRepo) ListByOwner(ctx context.Context, ownerID string, f dom.TaskFilter) ([]dom.Task, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var recs []taskRecord
	if err := q.Order(orderClause(f)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	list := make([]dom.Task, len(recs))
	for i := range recs {
		list[i] = recs[i].toDomain()
	}
	return list, nil
}

func (r *GormTaskRepo) Update(ctx context.Context, t dom.Task) (dom.Task, error) {
	result := r.db.WithContext(ctx).Model(&taskRecord{}).Where("id = ?", t.ID).Updates(map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"deadline":    t.Deadline,
		"updated_at":  t.UpdatedAt,
	})
	if result.Error != nil {
		return dom.Task{}, fmt.Errorf("failed to update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return dom.Task{}, ErrNotFound
	}
	return r.GetByID(ctx, t.ID)
}

func (r *GormTaskRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func taskToRecord(t dom.Task) taskRecord {
	return taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Deadline:    t.Deadline,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (rec taskRecord) toDomain() dom.Task {
	return dom.Task{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Status:      dom.Status(rec.Status),
		Deadline:    rec.Deadline,
		OwnerID:     rec.OwnerID,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}
