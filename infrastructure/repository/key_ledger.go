package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
)

const keyLedgerTable = "attachment_keys"

// KeyLedgerSchema creates the ledger table
const KeyLedgerSchema = `CREATE TABLE IF NOT EXISTS attachment_keys (
	attachment_id BIGINT      NOT NULL,
	position      INTEGER     NOT NULL,
	object_key    TEXT        NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (attachment_id, position)
)`

// SQLKeyLedger stores uploaded keys in PostgreSQL
type SQLKeyLedger struct {
	*baseRepository
	now func() time.Time
}

// NewSQLKeyLedger creates a ledger on db. Migrate must run once before use.
func NewSQLKeyLedger(db ports.Database, obs ports.Observability) (*SQLKeyLedger, error) {
	logger, metrics, err := obs.ComponentsScoped("repository.key_ledger")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability: %w", err)
	}

	return &SQLKeyLedger{
		baseRepository: newBaseRepository(db, logger, metrics, keyLedgerTable),
		now:            time.Now,
	}, nil
}

// Migrate creates the ledger table when missing
func (r *SQLKeyLedger) Migrate(ctx context.Context) error {
	if _, err := r.db.Execute(ctx, KeyLedgerSchema); err != nil {
		return fmt.Errorf("migrate %s: %w", r.table, err)
	}
	return nil
}

// Record replaces the keys stored for attachmentID in one transaction
func (r *SQLKeyLedger) Record(ctx context.Context, attachmentID int64, keys []string) error {
	r.logger.Info("Recording keys", "attachment_id", attachmentID, "count", len(keys))

	return r.db.Transaction(ctx, func(tx ports.Transaction) error {
		execTx := func(ctx context.Context, query string, args ...interface{}) error {
			_, err := tx.Execute(ctx, query, args...)
			return err
		}

		if err := r.exec(ctx, "forget", r.deleteStmt(attachmentID), execTx); err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		return r.exec(ctx, "record", r.insertStmt(attachmentID, keys), execTx)
	})
}

// Lookup returns the keys in the order they were recorded
func (r *SQLKeyLedger) Lookup(ctx context.Context, attachmentID int64) ([]string, error) {
	stmt := r.qb.
		Select("object_key").
		From(r.table).
		Where(squirrel.Eq{"attachment_id": attachmentID}).
		OrderBy("position")

	keys := []string{}
	err := r.exec(ctx, "lookup", stmt, func(ctx context.Context, query string, args ...interface{}) error {
		return r.db.Select(ctx, &keys, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Forget removes every key stored for attachmentID
func (r *SQLKeyLedger) Forget(ctx context.Context, attachmentID int64) error {
	return r.exec(ctx, "forget", r.deleteStmt(attachmentID), func(ctx context.Context, query string, args ...interface{}) error {
		_, err := r.db.Execute(ctx, query, args...)
		return err
	})
}

// Close releases the database connection
func (r *SQLKeyLedger) Close() error {
	return r.db.Close()
}

func (r *SQLKeyLedger) deleteStmt(attachmentID int64) squirrel.DeleteBuilder {
	return r.qb.
		Delete(r.table).
		Where(squirrel.Eq{"attachment_id": attachmentID})
}

func (r *SQLKeyLedger) insertStmt(attachmentID int64, keys []string) squirrel.InsertBuilder {
	recordedAt := r.now().UTC()
	stmt := r.qb.
		Insert(r.table).
		Columns("attachment_id", "position", "object_key", "recorded_at")
	for i, key := range keys {
		stmt = stmt.Values(attachmentID, i, key, recordedAt)
	}
	return stmt
}
