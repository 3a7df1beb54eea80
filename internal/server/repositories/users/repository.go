// Package users declares the credential store contract and its Postgres and
// in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/bookstore/internal/server/models"
)

// Repository stores credential records.
//
// Lookups return common.ErrorNotFound when no record matches; Create returns
// common.ErrorAlreadyExists when the username is taken.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}
