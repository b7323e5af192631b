package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	usecase "user-crud-service/internal/usecase/user"
	pkgerrors "user-crud-service/pkg/errors"
)

// MockUserUsecase is a mock implementation of user.Usecase
type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) ListUsers(ctx context.Context) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

func (m *MockUserUsecase) GetUser(ctx context.Context, req usecase.GetUserRequest) (*usecase.GetUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.GetUserResponse), args.Error(1)
}

func (m *MockUserUsecase) CreateUser(ctx context.Context, req usecase.CreateUserRequest) (*usecase.CreateUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.CreateUserResponse), args.Error(1)
}

func (m *MockUserUsecase) UpdateUser(ctx context.Context, req usecase.UpdateUserRequest) (*usecase.UpdateUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.UpdateUserResponse), args.Error(1)
}

func (m *MockUserUsecase) DeleteUser(ctx context.Context, req usecase.DeleteUserRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockUserUsecase) DeleteAllUsers(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func setupTest(t *testing.T) (*gin.Engine, *MockUserUsecase) {
	gin.SetMode(gin.TestMode)
	mockUsecase := new(MockUserUsecase)
	h := NewUserHandler(mockUsecase, zaptest.NewLogger(t))

	r := gin.New()
	r.GET("/api/user/", h.ListUsers)
	r.POST("/api/user/", h.CreateUser)
	r.DELETE("/api/user/", h.DeleteAllUsers)
	r.GET("/api/user/:id", h.GetUser)
	r.PUT("/api/user/:id", h.UpdateUser)
	r.DELETE("/api/user/:id", h.DeleteUser)

	t.Cleanup(func() { mockUsecase.AssertExpectations(t) })
	return r, mockUsecase
}

func perform(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ErrorMessage
}

func TestListUsers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything).Return(&usecase.ListUsersResponse{
			Users: []usecase.User{
				{ID: 1, Name: "Alice", Age: 30, Salary: 5000},
				{ID: 2, Name: "Bob", Age: 25, Salary: 4000},
			},
		}, nil)

		w := perform(r, http.MethodGet, "/api/user/", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[
			{"id":1,"name":"Alice","age":30,"salary":5000},
			{"id":2,"name":"Bob","age":25,"salary":4000}
		]`, w.Body.String())
	})

	t.Run("Empty", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything).Return(&usecase.ListUsersResponse{Users: []usecase.User{}}, nil)

		w := perform(r, http.MethodGet, "/api/user/", nil)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("InternalError", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything).
			Return(nil, pkgerrors.NewInternalError("failed to list users", fmt.Errorf("dial tcp: connection refused")))

		w := perform(r, http.MethodGet, "/api/user/", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "An internal error occurred", decodeError(t, w))
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestGetUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: 1}).
			Return(&usecase.GetUserResponse{User: usecase.User{ID: 1, Name: "Alice", Age: 30, Salary: 5000}}, nil)

		w := perform(r, http.MethodGet, "/api/user/1", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":1,"name":"Alice","age":30,"salary":5000}`, w.Body.String())
	})

	t.Run("NotFound", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: 42}).
			Return(nil, pkgerrors.NewNotFoundError("user", "User with id 42 not found"))

		w := perform(r, http.MethodGet, "/api/user/42", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"errorMessage":"User with id 42 not found"}`, w.Body.String())
	})

	t.Run("InvalidID", func(t *testing.T) {
		r, _ := setupTest(t)

		w := perform(r, http.MethodGet, "/api/user/abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w), "invalid user id")
	})
}

func TestCreateUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, usecase.CreateUserRequest{ID: 7, Name: "Carol", Age: 40, Salary: 6000}).
			Return(&usecase.CreateUserResponse{ID: 7}, nil)

		w := perform(r, http.MethodPost, "/api/user/", UserRequest{ID: 7, Name: "Carol", Age: 40, Salary: 6000})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "http://example.com/api/user/7", w.Header().Get("Location"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("StoreAssignedID", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, usecase.CreateUserRequest{Name: "Dave"}).
			Return(&usecase.CreateUserResponse{ID: 12}, nil)

		w := perform(r, http.MethodPost, "/api/user/", `{"name":"Dave"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "http://example.com/api/user/12", w.Header().Get("Location"))
	})

	t.Run("ForwardedProto", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).Return(&usecase.CreateUserResponse{ID: 3}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/user/", bytes.NewBufferString(`{"id":3,"name":"Eve"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-Proto", "https")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "https://example.com/api/user/3", w.Header().Get("Location"))
	})

	t.Run("ForwardedProtoRejected", func(t *testing.T) {
		for _, proto := range []string{"javascript", "https://evil.test/x?", "ftp"} {
			r, mockUsecase := setupTest(t)
			mockUsecase.On("CreateUser", mock.Anything, mock.Anything).Return(&usecase.CreateUserResponse{ID: 3}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/user/", bytes.NewBufferString(`{"id":3,"name":"Eve"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Forwarded-Proto", proto)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusCreated, w.Code)
			assert.Equal(t, "http://example.com/api/user/3", w.Header().Get("Location"), proto)
		}
	})

	t.Run("Conflict", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewAlreadyExistsError("user", "Unable to create. A User with name Alice already exist."))

		w := perform(r, http.MethodPost, "/api/user/", UserRequest{ID: 3, Name: "Alice"})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Unable to create. A User with name Alice already exist.", decodeError(t, w))
		assert.Empty(t, w.Header().Get("Location"))
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		r, _ := setupTest(t)

		w := perform(r, http.MethodPost, "/api/user/", `{"name":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, decodeError(t, w))
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		// The body id is dropped; the path id is what reaches the usecase.
		mockUsecase.On("UpdateUser", mock.Anything, usecase.UpdateUserRequest{ID: 1, Name: "Alicia", Age: 31, Salary: 5500}).
			Return(&usecase.UpdateUserResponse{User: usecase.User{ID: 1, Name: "Alicia", Age: 31, Salary: 5500}}, nil)

		w := perform(r, http.MethodPut, "/api/user/1", UserRequest{ID: 99, Name: "Alicia", Age: 31, Salary: 5500})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":1,"name":"Alicia","age":31,"salary":5500}`, w.Body.String())
	})

	t.Run("NotFound", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewNotFoundError("user", "Unable to update. User with id 5 not found."))

		w := perform(r, http.MethodPut, "/api/user/5", UserRequest{Name: "Ghost"})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Unable to update. User with id 5 not found.", decodeError(t, w))
	})

	t.Run("RenameConflict", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewAlreadyExistsError("user", "Unable to update. A User with name Bob already exist."))

		w := perform(r, http.MethodPut, "/api/user/1", UserRequest{Name: "Bob"})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		r, _ := setupTest(t)

		w := perform(r, http.MethodPut, "/api/user/1.5", UserRequest{Name: "Alice"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		r, _ := setupTest(t)

		w := perform(r, http.MethodPut, "/api/user/1", `not json`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{ID: 1}).Return(nil)

		w := perform(r, http.MethodDelete, "/api/user/1", nil)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("NotFound", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{ID: 9}).
			Return(pkgerrors.NewNotFoundError("user", "Unable to delete. User with id 9 not found."))

		w := perform(r, http.MethodDelete, "/api/user/9", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"errorMessage":"Unable to delete. User with id 9 not found."}`, w.Body.String())
	})
}

func TestDeleteAllUsers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteAllUsers", mock.Anything).Return(nil)

		w := perform(r, http.MethodDelete, "/api/user/", nil)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("InternalError", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteAllUsers", mock.Anything).
			Return(pkgerrors.NewInternalError("failed to delete all users", fmt.Errorf("timeout")))

		w := perform(r, http.MethodDelete, "/api/user/", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "An internal error occurred", decodeError(t, w))
	})
}
