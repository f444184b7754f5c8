package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

type baseRepository struct {
	db      ports.Database
	logger  ports.Logger
	metrics ports.Metrics
	table   string
	qb      squirrel.StatementBuilderType
}

func newBaseRepository(db ports.Database, logger ports.Logger, metrics ports.Metrics, table string) *baseRepository {
	return &baseRepository{
		db:      db,
		logger:  logger,
		metrics: metrics,
		table:   table,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// exec builds and runs a statement through exec, counting the operation
func (r *baseRepository) exec(ctx context.Context, op string, stmt squirrel.Sqlizer, exec func(ctx context.Context, query string, args ...interface{}) error) error {
	r.metrics.IncrementCounter(fmt.Sprintf("repository.%s.%s", r.table, op), nil)

	query, args, err := stmt.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", op, err)
	}

	if err := exec(ctx, query, args...); err != nil {
		r.logger.Error("Repository operation failed", "table", r.table, "op", op, "error", err)
		r.metrics.IncrementCounter(fmt.Sprintf("repository.%s.errors", r.table), nil)
		return fmt.Errorf("%s %s: %w", op, r.table, err)
	}

	return nil
}
