package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active admin key matches a hash.
var ErrKeyNotFound = errors.New("admin key not found")

// AdminKeyInfo holds the identity data for a validated admin key.
type AdminKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides lookup of admin keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*AdminKeyInfo, error)
}
