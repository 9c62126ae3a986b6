// Package user exposes the minimal user lookups the order engine needs:
// a shipping-address name fallback and the email ownership check used by
// the public tracking endpoint.
package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no user exists for the given id.
var ErrNotFound = errors.New("user not found")

// User is the slice of the account record the order engine consumes.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

// FullName returns the user's display name for shipping labels.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Repository defines read operations on user accounts.
type Repository interface {
	ByID(ctx context.Context, id string) (*User, error)
}
