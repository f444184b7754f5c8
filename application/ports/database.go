package ports

import (
	"context"
	"database/sql"
)

// Database is the SQL connection used by durable repositories
type Database interface {
	// Execute runs a statement that returns no rows
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Select scans every row into dest, a pointer to a slice
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Transaction runs fn in a transaction, rolled back when fn fails
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Transaction is the statement surface available inside Database.Transaction
type Transaction interface {
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
