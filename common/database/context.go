// Package database holds helpers shared by the SQL-backed repositories.
package database

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds read queries.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds INSERT, UPDATE and DELETE statements.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMigrateTimeout bounds schema migrations at startup.
	DefaultMigrateTimeout = 60 * time.Second
)

// QueryContext derives a context with DefaultQueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultQueryTimeout)
}

// WriteContext derives a context with DefaultWriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultWriteTimeout)
}

// MigrateContext derives a context with DefaultMigrateTimeout.
func MigrateContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultMigrateTimeout)
}
