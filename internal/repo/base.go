package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base carries the gorm connection shared by the profile and
// subscription repositories. Embedding it keeps per-query context
// binding in one place.
type Base struct {
	db *gorm.DB
}

// NewBase wraps a gorm connection for embedding in a repository.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB binds the connection to ctx; a nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
