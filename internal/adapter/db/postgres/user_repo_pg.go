package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-crud-service/internal/domain/user"
	"user-crud-service/pkg/logger"
)

// UserRepoPG implements the user Repository on top of GORM. It is exercised
// against PostgreSQL in production and SQLite in local mode and tests.
type UserRepoPG struct {
	db  *gorm.DB    // GORM database connection
	log *zap.Logger // Structured logger for database operations
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID     int64   `gorm:"primaryKey;autoIncrement"`                 // Client supplied or auto-increment identifier
	Name   string  `gorm:"not null;uniqueIndex"`                     // Unique user name
	Age    int     `gorm:"not null;default:0"`                       // Age in years
	Salary float64 `gorm:"type:double precision;not null;default:0"` // Salary
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

// AutoMigrate creates or updates the users table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserSchema{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

func toSchema(u *user.User) UserSchema {
	return UserSchema{ID: u.ID, Name: u.Name, Age: u.Age, Salary: u.Salary}
}

func (m UserSchema) toDomain() user.User {
	return user.User{ID: m.ID, Name: m.Name, Age: m.Age, Salary: m.Salary}
}

// List retrieves every user ordered by id.
func (r *UserRepoPG) List(ctx context.Context) ([]user.User, error) {
	var models []UserSchema
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to list users from db", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = model.toDomain()
	}

	return users, nil
}

// GetByID retrieves a user by id. A missing row yields nil, nil.
func (r *UserRepoPG) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var model UserSchema
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithContext(ctx, r.log).Debug("user not found", zap.Int64("id", id))
			return nil, nil
		}
		logger.WithContext(ctx, r.log).Error("failed to get user from db", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u := model.toDomain()
	return &u, nil
}

// ExistsByName reports whether a user with exactly this name is stored.
func (r *UserRepoPG) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserSchema{}).Where("name = ?", name).Count(&count).Error; err != nil {
		logger.WithContext(ctx, r.log).Error("failed to check user name in db", zap.Error(err), zap.String("name", name))
		return false, fmt.Errorf("failed to check user name: %w", err)
	}
	return count > 0, nil
}

// Save inserts the user when its id is zero or unknown and overwrites every
// column otherwise. The returned user carries the stored id.
func (r *UserRepoPG) Save(ctx context.Context, u *user.User) (*user.User, error) {
	if u == nil {
		return nil, errors.New("user cannot be nil")
	}

	model := toSchema(u)
	db := r.db.WithContext(ctx)

	if err := db.Save(&model).Error; err != nil {
		if r.isDuplicateKey(err) {
			logger.WithContext(ctx, r.log).Warn("user name already taken in db", zap.String("name", u.Name))
			return nil, fmt.Errorf("failed to save user: %w", user.ErrDuplicateName)
		}
		logger.WithContext(ctx, r.log).Error("failed to save user in db", zap.Error(err), zap.Int64("id", u.ID))
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	if u.ID != 0 && db.Dialector.Name() == "postgres" {
		r.syncSequence(ctx)
	}

	logger.WithContext(ctx, r.log).Info("user saved in db", zap.Int64("id", model.ID))
	saved := model.toDomain()
	return &saved, nil
}

// isDuplicateKey reports a unique constraint violation, whether or not the
// connection was opened with TranslateError.
func (r *UserRepoPG) isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if t, ok := r.db.Dialector.(gorm.ErrorTranslator); ok {
		return errors.Is(t.Translate(err), gorm.ErrDuplicatedKey)
	}
	return false
}

// syncSequence moves the id sequence past client supplied ids so that later
// auto-assigned ids do not collide with them.
func (r *UserRepoPG) syncSequence(ctx context.Context) {
	const stmt = `SELECT setval(pg_get_serial_sequence('users', 'id'), GREATEST((SELECT MAX(id) FROM users), 1))`
	if err := r.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to sync users id sequence", zap.Error(err))
	}
}

// Delete removes the given user.
func (r *UserRepoPG) Delete(ctx context.Context, u *user.User) error {
	if u == nil {
		return errors.New("user cannot be nil")
	}
	return r.DeleteByID(ctx, u.ID)
}

// DeleteByID removes a user by id. Deleting a missing id is a no-op.
func (r *UserRepoPG) DeleteByID(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&UserSchema{}, id)
	if res.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete user in db", zap.Error(res.Error), zap.Int64("id", id))
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}

	logger.WithContext(ctx, r.log).Info("user deleted in db", zap.Int64("id", id), zap.Int64("rows", res.RowsAffected))
	return nil
}

// DeleteAll removes every user.
func (r *UserRepoPG) DeleteAll(ctx context.Context) error {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&UserSchema{})
	if res.Error != nil {
		logger.WithContext(ctx, r.log).Error("failed to delete all users in db", zap.Error(res.Error))
		return fmt.Errorf("failed to delete all users: %w", res.Error)
	}

	logger.WithContext(ctx, r.log).Info("all users deleted in db", zap.Int64("rows", res.RowsAffected))
	return nil
}

// Ping checks database connectivity.
func (r *UserRepoPG) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
