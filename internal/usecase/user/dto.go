package user

// User represents a user DTO (Data Transfer Object) shared by the transport adapters.
type User struct {
	ID     int64
	Name   string
	Age    int
	Salary float64
}

// CreateUserRequest represents the request payload for creating a new user.
// ID is optional; when zero the store assigns one.
type CreateUserRequest struct {
	ID     int64
	Name   string
	Age    int
	Salary float64
}

// CreateUserResponse carries the id the user was stored under.
type CreateUserResponse struct {
	ID int64
}

// UpdateUserRequest represents a full replacement of the user identified by ID.
type UpdateUserRequest struct {
	ID     int64
	Name   string
	Age    int
	Salary float64
}

// UpdateUserResponse represents the user as stored after the update.
type UpdateUserResponse struct {
	User User
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID int64
}

// GetUserResponse represents the response payload for user details.
type GetUserResponse struct {
	User User
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// ListUsersResponse represents every stored user.
type ListUsersResponse struct {
	Users []User
}
