// Package repo is the gorm-backed credential store: clients, users, tokens
// and authorization codes.
package repo

import (
	"errors"

	"gorm.io/gorm"
)

// Lookups return (nil, nil) when nothing matches; errors are reserved for
// the database itself.
type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
