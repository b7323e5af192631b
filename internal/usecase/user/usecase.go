package user

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	domain "user-crud-service/internal/domain/user"
	"user-crud-service/pkg/errors"
	"user-crud-service/pkg/logger"
)

// Repository defines the interface for user data access operations.
// Absence is reported as a nil user, never as an error, so that callers can
// tell a missing record apart from a failing store.
type Repository interface {
	List(ctx context.Context) ([]domain.User, error)                // All users ordered by id
	GetByID(ctx context.Context, id int64) (*domain.User, error)    // nil, nil when absent
	ExistsByName(ctx context.Context, name string) (bool, error)    // Name uniqueness check
	Save(ctx context.Context, u *domain.User) (*domain.User, error) // Insert or overwrite by id
	Delete(ctx context.Context, u *domain.User) error               // Remove the given user
	DeleteByID(ctx context.Context, id int64) error                 // Remove by id, no-op when absent
	DeleteAll(ctx context.Context) error                            // Remove every user
}

// Service implements the business logic for user management operations.
// Each operation is a single check-then-act sequence against the repository.
type Service struct {
	repo Repository  // Repository for data access
	log  *zap.Logger // Logger for structured logging
}

var _ Usecase = (*Service)(nil)

// New creates a new instance of Service with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Service {
	return &Service{repo: r, log: log}
}

// ListUsers returns every stored user.
func (uc *Service) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("fetching all users")

	domainUsers, err := uc.repo.List(ctx)
	if err != nil {
		log.Error("failed to list users", zap.Error(err))
		return nil, errors.NewInternalError("failed to list users", err)
	}

	users := make([]User, len(domainUsers))
	for i, du := range domainUsers {
		users[i] = toDTO(du)
	}

	return &ListUsersResponse{Users: users}, nil
}

// GetUser retrieves a user by ID.
func (uc *Service) GetUser(ctx context.Context, in GetUserRequest) (*GetUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("fetching user", zap.Int64("id", in.ID))

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, errors.NewInternalError("failed to get user", err)
	}
	if u == nil {
		msg := fmt.Sprintf("User with id %d not found", in.ID)
		log.Warn(msg)
		return nil, errors.NewNotFoundError("user", msg)
	}

	return &GetUserResponse{User: toDTO(*u)}, nil
}

// CreateUser stores a new user after checking that its name is not taken.
// The check is by name only; a client supplied id is passed through to the store.
func (uc *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*CreateUserResponse, error) {
	candidate := domain.User{ID: in.ID, Name: in.Name, Age: in.Age, Salary: in.Salary}

	log := logger.WithContext(ctx, uc.log)
	log.Info("creating user", zap.Stringer("user", candidate))

	exists, err := uc.repo.ExistsByName(ctx, in.Name)
	if err != nil {
		log.Error("failed to check existing name", zap.String("name", in.Name), zap.Error(err))
		return nil, errors.NewInternalError("failed to validate name uniqueness", err)
	}
	if exists {
		return nil, nameTaken(log, "create", in.Name)
	}

	// A concurrent create can take the name between the check and the save;
	// the store's unique index reports that as ErrDuplicateName.
	saved, err := uc.repo.Save(ctx, &candidate)
	if errors.Is(err, domain.ErrDuplicateName) {
		return nil, nameTaken(log, "create", in.Name)
	}
	if err != nil {
		log.Error("failed to create user", zap.Error(err))
		return nil, errors.NewInternalError("failed to create user", err)
	}

	return &CreateUserResponse{ID: saved.ID}, nil
}

// UpdateUser fully replaces the user stored under in.ID. The stored record's id
// wins over any id the caller put in the body.
func (uc *Service) UpdateUser(ctx context.Context, in UpdateUserRequest) (*UpdateUserResponse, error) {
	log := logger.WithContext(ctx, uc.log)
	log.Info("updating user", zap.Int64("id", in.ID))

	current, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, errors.NewInternalError("failed to update user", err)
	}
	if current == nil {
		msg := fmt.Sprintf("Unable to update. User with id %d not found.", in.ID)
		log.Warn(msg)
		return nil, errors.NewNotFoundError("user", msg)
	}

	if in.Name != current.Name {
		taken, err := uc.repo.ExistsByName(ctx, in.Name)
		if err != nil {
			log.Error("failed to check existing name", zap.String("name", in.Name), zap.Error(err))
			return nil, errors.NewInternalError("failed to validate name uniqueness", err)
		}
		if taken {
			return nil, nameTaken(log, "update", in.Name)
		}
	}

	saved, err := uc.repo.Save(ctx, &domain.User{
		ID:     current.ID,
		Name:   in.Name,
		Age:    in.Age,
		Salary: in.Salary,
	})
	if errors.Is(err, domain.ErrDuplicateName) {
		return nil, nameTaken(log, "update", in.Name)
	}
	if err != nil {
		log.Error("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, errors.NewInternalError("failed to update user", err)
	}

	return &UpdateUserResponse{User: toDTO(*saved)}, nil
}

// DeleteUser removes the user stored under in.ID.
func (uc *Service) DeleteUser(ctx context.Context, in DeleteUserRequest) error {
	log := logger.WithContext(ctx, uc.log)
	log.Info("fetching & deleting user", zap.Int64("id", in.ID))

	u, err := uc.repo.GetByID(ctx, in.ID)
	if err != nil {
		log.Error("failed to get user", zap.Int64("id", in.ID), zap.Error(err))
		return errors.NewInternalError("failed to delete user", err)
	}
	if u == nil {
		msg := fmt.Sprintf("Unable to delete. User with id %d not found.", in.ID)
		log.Warn(msg)
		return errors.NewNotFoundError("user", msg)
	}

	if err := uc.repo.Delete(ctx, u); err != nil {
		log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return errors.NewInternalError("failed to delete user", err)
	}

	return nil
}

// DeleteAllUsers removes every stored user.
func (uc *Service) DeleteAllUsers(ctx context.Context) error {
	log := logger.WithContext(ctx, uc.log)
	log.Info("deleting all users")

	if err := uc.repo.DeleteAll(ctx); err != nil {
		log.Error("failed to delete all users", zap.Error(err))
		return errors.NewInternalError("failed to delete all users", err)
	}

	return nil
}

func nameTaken(log *zap.Logger, op, name string) error {
	msg := fmt.Sprintf("Unable to %s. A User with name %s already exist.", op, name)
	log.Warn(msg)
	return errors.NewAlreadyExistsError("user", msg)
}

func toDTO(u domain.User) User {
	return User{
		ID:     u.ID,
		Name:   u.Name,
		Age:    u.Age,
		Salary: u.Salary,
	}
}
