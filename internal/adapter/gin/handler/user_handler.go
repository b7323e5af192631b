package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-crud-service/internal/usecase/user"
	"user-crud-service/pkg/errors"
	"user-crud-service/pkg/logger"
)

// UserPath is the route prefix of the user resource; created users are
// addressed as UserPath + id.
const UserPath = "/api/user/"

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// UserRequest is the JSON body accepted by create and update.
// On update the id field is ignored in favour of the path id.
type UserRequest struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Age    int     `json:"age"`
	Salary float64 `json:"salary"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Age    int     `json:"age"`
	Salary float64 `json:"salary"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}

func toResponse(u user.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Age: u.Age, Salary: u.Salary}
}

// ListUsers handles GET /api/user/
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	resp, err := h.uc.ListUsers(ctx)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if len(resp.Users) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	users := make([]UserResponse, len(resp.Users))
	for i, u := range resp.Users {
		users[i] = toResponse(u)
	}

	c.JSON(http.StatusOK, users)
}

// GetUser handles GET /api/user/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp.User))
}

// CreateUser handles POST /api/user/
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req UserRequest
	if !h.bindBody(c, &req) {
		return
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		ID:     req.ID,
		Name:   req.Name,
		Age:    req.Age,
		Salary: req.Salary,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Location", location(c, resp.ID))
	c.Status(http.StatusCreated)
}

// UpdateUser handles PUT /api/user/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req UserRequest
	if !h.bindBody(c, &req) {
		return
	}

	resp, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID:     id,
		Name:   req.Name,
		Age:    req.Age,
		Salary: req.Salary,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(resp.User))
}

// DeleteUser handles DELETE /api/user/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id}); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DeleteAllUsers handles DELETE /api/user/
func (h *UserHandler) DeleteAllUsers(c *gin.Context) {
	if err := h.uc.DeleteAllUsers(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.handleError(c, errors.NewValidationError("id", fmt.Sprintf("invalid user id %q", raw)))
		return 0, false
	}
	return id, true
}

func (h *UserHandler) bindBody(c *gin.Context, req *UserRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.handleError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// handleError converts usecase errors to HTTP responses. Internal failures
// never expose their cause to the client.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	log := logger.WithContext(c.Request.Context(), h.log)

	status, message := errors.HTTPStatus(err), errors.PublicMessage(err)

	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		log.Warn("request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.String("reason", message))
	}

	c.AbortWithStatusJSON(status, ErrorResponse{ErrorMessage: message})
}

// location builds the absolute URL of a created user from the request's own
// scheme and host.
func location(c *gin.Context, id int64) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	// Only a well-formed forwarded scheme is trusted into the header.
	switch proto := strings.ToLower(strings.TrimSpace(c.GetHeader("X-Forwarded-Proto"))); proto {
	case "http", "https":
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s%d", scheme, c.Request.Host, UserPath, id)
}
