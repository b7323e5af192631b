package user

import (
	"errors"
	"fmt"
)

// ErrDuplicateName is returned by stores when a write would give two users
// the same name.
var ErrDuplicateName = errors.New("user name already exists")

// User represents a user entity in the system.
type User struct {
	ID     int64   // ID is the unique identifier for the user
	Name   string  // Name is the unique name of the user
	Age    int     // Age of the user in years
	Salary float64 // Salary of the user
}

// String renders the user for log lines.
func (u User) String() string {
	return fmt.Sprintf("User [id=%d, name=%s, age=%d, salary=%g]", u.ID, u.Name, u.Age, u.Salary)
}
