package user

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "user-crud-service/internal/domain/user"
	pkgerrors "user-crud-service/pkg/errors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, u *domain.User) (*domain.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockRepository) DeleteByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func setupTestUsecase(t *testing.T) (*Service, *MockRepository) {
	mockRepo := new(MockRepository)
	uc := New(mockRepo, zaptest.NewLogger(t))
	return uc, mockRepo
}

// ==================== LIST USERS TESTS ====================

func TestListUsers_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return([]domain.User{
		{ID: 1, Name: "Alice", Age: 30, Salary: 5000},
		{ID: 2, Name: "Bob", Age: 25, Salary: 4000},
	}, nil)

	resp, err := uc.ListUsers(ctx)

	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, User{ID: 1, Name: "Alice", Age: 30, Salary: 5000}, resp.Users[0])
	assert.Equal(t, "Bob", resp.Users[1].Name)
	mockRepo.AssertExpectations(t)
}

func TestListUsers_Empty(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return([]domain.User{}, nil)

	resp, err := uc.ListUsers(ctx)

	require.NoError(t, err)
	assert.Empty(t, resp.Users)
}

func TestListUsers_StoreError(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("List", ctx).Return(nil, errors.New("connection refused"))

	resp, err := uc.ListUsers(ctx)

	assert.Nil(t, resp)
	var internal *pkgerrors.InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "failed to list users", internal.Message)
}

// ==================== GET USER TESTS ====================

func TestGetUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Name: "Alice", Age: 30, Salary: 5000}, nil)

	resp, err := uc.GetUser(ctx, GetUserRequest{ID: 1})

	require.NoError(t, err)
	assert.Equal(t, User{ID: 1, Name: "Alice", Age: 30, Salary: 5000}, resp.User)
}

func TestGetUser_NotFound(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(42)).Return(nil, nil)

	resp, err := uc.GetUser(ctx, GetUserRequest{ID: 42})

	assert.Nil(t, resp)
	var notFound *pkgerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "User with id 42 not found", err.Error())
}

func TestGetUser_StoreError(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	cause := errors.New("timeout")
	mockRepo.On("GetByID", ctx, int64(1)).Return(nil, cause)

	_, err := uc.GetUser(ctx, GetUserRequest{ID: 1})

	assert.ErrorIs(t, err, cause)
	var notFound *pkgerrors.NotFoundError
	assert.False(t, errors.As(err, &notFound))
}

// ==================== CREATE USER TESTS ====================

func TestCreateUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	req := CreateUserRequest{ID: 3, Name: "Carol", Age: 40, Salary: 6000}

	mockRepo.On("ExistsByName", ctx, "Carol").Return(false, nil)
	mockRepo.On("Save", ctx, &domain.User{ID: 3, Name: "Carol", Age: 40, Salary: 6000}).
		Return(&domain.User{ID: 3, Name: "Carol", Age: 40, Salary: 6000}, nil)

	resp, err := uc.CreateUser(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.ID)
	mockRepo.AssertExpectations(t)
}

func TestCreateUser_StoreAssignsID(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("ExistsByName", ctx, "Dave").Return(false, nil)
	mockRepo.On("Save", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == 0 && u.Name == "Dave"
	})).Return(&domain.User{ID: 17, Name: "Dave"}, nil)

	resp, err := uc.CreateUser(ctx, CreateUserRequest{Name: "Dave"})

	require.NoError(t, err)
	assert.Equal(t, int64(17), resp.ID)
}

func TestCreateUser_NameConflict(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("ExistsByName", ctx, "Alice").Return(true, nil)

	resp, err := uc.CreateUser(ctx, CreateUserRequest{ID: 3, Name: "Alice"})

	assert.Nil(t, resp)
	var conflict *pkgerrors.AlreadyExistsError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Unable to create. A User with name Alice already exist.", err.Error())
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateUser_ExistsCheckFails(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("ExistsByName", ctx, "Alice").Return(false, errors.New("db down"))

	_, err := uc.CreateUser(ctx, CreateUserRequest{Name: "Alice"})

	var internal *pkgerrors.InternalError
	require.ErrorAs(t, err, &internal)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCreateUser_SaveFails(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("ExistsByName", ctx, "Eve").Return(false, nil)
	mockRepo.On("Save", ctx, mock.Anything).Return(nil, errors.New("write failed"))

	_, err := uc.CreateUser(ctx, CreateUserRequest{Name: "Eve"})

	var internal *pkgerrors.InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "failed to create user", internal.Message)
}

func TestCreateUser_NameTakenConcurrently(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	// The name was free at check time; another create won the unique index.
	mockRepo.On("ExistsByName", ctx, "Alice").Return(false, nil)
	mockRepo.On("Save", ctx, mock.Anything).
		Return(nil, fmt.Errorf("failed to save user: %w", domain.ErrDuplicateName))

	resp, err := uc.CreateUser(ctx, CreateUserRequest{ID: 2, Name: "Alice"})

	assert.Nil(t, resp)
	var conflict *pkgerrors.AlreadyExistsError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Unable to create. A User with name Alice already exist.", err.Error())
}

// ==================== UPDATE USER TESTS ====================

func TestUpdateUser_PreservesStoredID(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(1)).Return(&domain.User{ID: 1, Name: "Alice", Age: 30, Salary: 5000}, nil)
	mockRepo.On("ExistsByName", ctx, "Alicia").Return(false, nil)
	mockRepo.On("Save", ctx, &domain.User{ID: 1, Name: "Alicia", Age: 31, Salary: 5500}).
		Return(&domain.User{ID: 1, Name: "Alicia", Age: 31, Salary: 5500}, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 1, Name: "Alicia", Age: 31, Salary: 5500})

	require.NoError(t, err)
	assert.Equal(t, User{ID: 1, Name: "Alicia", Age: 31, Salary: 5500}, resp.User)
	mockRepo.AssertExpectations(t)
}

func TestUpdateUser_SameNameSkipsUniquenessCheck(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(2)).Return(&domain.User{ID: 2, Name: "Bob", Age: 25, Salary: 4000}, nil)
	mockRepo.On("Save", ctx, mock.Anything).Return(&domain.User{ID: 2, Name: "Bob", Age: 26, Salary: 4100}, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 2, Name: "Bob", Age: 26, Salary: 4100})

	require.NoError(t, err)
	assert.Equal(t, 26, resp.User.Age)
	mockRepo.AssertNotCalled(t, "ExistsByName", mock.Anything, mock.Anything)
}

func TestUpdateUser_NotFound(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(9)).Return(nil, nil)

	resp, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 9, Name: "Nobody"})

	assert.Nil(t, resp)
	var notFound *pkgerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Unable to update. User with id 9 not found.", err.Error())
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateUser_RenameConflict(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(2)).Return(&domain.User{ID: 2, Name: "Bob"}, nil)
	mockRepo.On("ExistsByName", ctx, "Alice").Return(true, nil)

	_, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 2, Name: "Alice"})

	var conflict *pkgerrors.AlreadyExistsError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Unable to update. A User with name Alice already exist.", err.Error())
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateUser_RenameTakenConcurrently(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(2)).Return(&domain.User{ID: 2, Name: "Bob"}, nil)
	mockRepo.On("ExistsByName", ctx, "Alice").Return(false, nil)
	mockRepo.On("Save", ctx, mock.Anything).
		Return(nil, fmt.Errorf("failed to save user: %w", domain.ErrDuplicateName))

	_, err := uc.UpdateUser(ctx, UpdateUserRequest{ID: 2, Name: "Alice"})

	var conflict *pkgerrors.AlreadyExistsError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Unable to update. A User with name Alice already exist.", err.Error())
}

// ==================== DELETE USER TESTS ====================

func TestDeleteUser_Success(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	stored := &domain.User{ID: 1, Name: "Alice"}
	mockRepo.On("GetByID", ctx, int64(1)).Return(stored, nil)
	mockRepo.On("Delete", ctx, stored).Return(nil)

	require.NoError(t, uc.DeleteUser(ctx, DeleteUserRequest{ID: 1}))
	mockRepo.AssertExpectations(t)
}

func TestDeleteUser_NotFound(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("GetByID", ctx, int64(5)).Return(nil, nil)

	err := uc.DeleteUser(ctx, DeleteUserRequest{ID: 5})

	var notFound *pkgerrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Unable to delete. User with id 5 not found.", err.Error())
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteUser_DeleteFails(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	stored := &domain.User{ID: 1, Name: "Alice"}
	mockRepo.On("GetByID", ctx, int64(1)).Return(stored, nil)
	mockRepo.On("Delete", ctx, stored).Return(errors.New("lock timeout"))

	err := uc.DeleteUser(ctx, DeleteUserRequest{ID: 1})

	var internal *pkgerrors.InternalError
	require.ErrorAs(t, err, &internal)
}

// ==================== DELETE ALL USERS TESTS ====================

func TestDeleteAllUsers(t *testing.T) {
	uc, mockRepo := setupTestUsecase(t)
	ctx := context.Background()

	mockRepo.On("DeleteAll", ctx).Return(nil).Once()
	require.NoError(t, uc.DeleteAllUsers(ctx))

	mockRepo.On("DeleteAll", ctx).Return(errors.New("db down")).Once()
	var internal *pkgerrors.InternalError
	require.ErrorAs(t, uc.DeleteAllUsers(ctx), &internal)
}
