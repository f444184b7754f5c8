package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

const (
	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 5 * time.Minute
)

// DB implements ports.Database on PostgreSQL
type DB struct {
	conn    *sqlx.DB
	logger  ports.Logger
	metrics ports.Metrics
}

// NewPostgresAdapter opens the pool and fails fast when the server is
// unreachable
func NewPostgresAdapter(cfg *config.DatabaseConfig, obs ports.Observability) (*DB, error) {
	logger, metrics, err := obs.ComponentsScoped("database.postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	logger.Info("Connecting to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"sslmode", cfg.SSLMode)

	conn, err := sqlx.Open("postgres", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		logger.Error("PostgreSQL is unreachable", append([]interface{}{"error", err}, errorFields(err)...)...)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	metrics.IncrementCounter("database.connections", map[string]string{"status": "success"})
	return NewFromConn(conn, logger, metrics), nil
}

// NewFromConn wraps an open pool
func NewFromConn(conn *sqlx.DB, logger ports.Logger, metrics ports.Metrics) *DB {
	return &DB{conn: conn, logger: logger, metrics: metrics}
}

// buildDSN renders the connection URL with escaped credentials
func buildDSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

func (d *DB) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := d.observe("execute", query, func() (err error) {
		result, err = d.conn.ExecContext(ctx, query, args...)
		return err
	})
	return result, err
}

func (d *DB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return d.observe("select", query, func() error {
		return d.conn.SelectContext(ctx, dest, query, args...)
	})
}

// Transaction runs fn in a transaction. A panic in fn rolls back and is
// re-raised.
func (d *DB) Transaction(ctx context.Context, fn func(tx ports.Transaction) error) error {
	return d.observe("transaction", "", func() (err error) {
		tx, err := d.conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(&pgTx{tx: tx}); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				d.logger.Warn("Rollback failed", "error", rbErr)
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *DB) Close() error {
	d.logger.Info("Closing PostgreSQL pool")
	return d.conn.Close()
}

// observe times op and logs failures with the server's error code
func (d *DB) observe(op, query string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "success"
	if err != nil {
		status = "error"
		fields := append([]interface{}{"operation", op, "error", err}, errorFields(err)...)
		if query != "" {
			fields = append(fields, "query", query)
		}
		d.logger.Error("Database operation failed", fields...)
	}

	tags := map[string]string{"operation": op, "status": status}
	d.metrics.IncrementCounter("database.operations", tags)
	d.metrics.RecordHistogram("database.duration", time.Since(start).Seconds(), tags)
	return err
}

// errorFields extracts the SQLSTATE of a server error as log fields
func errorFields(err error) []interface{} {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	fields := []interface{}{
		"sqlstate", string(pqErr.Code),
		"sqlstate_class", pqErr.Code.Class().Name(),
	}
	if pqErr.Table != "" {
		fields = append(fields, "table", pqErr.Table)
	}
	if pqErr.Constraint != "" {
		fields = append(fields, "constraint", pqErr.Constraint)
	}
	return fields
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}
