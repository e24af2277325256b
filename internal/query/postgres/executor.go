package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nestquery/nestquery/internal/query"
	"github.com/nestquery/nestquery/internal/sqlguard"
)

// Executor runs statements on a dedicated pooled connection inside a
// read-only transaction, so a statement that slips past the keyword gate
// still cannot write.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
}

func NewExecutor(db *sql.DB, timeout time.Duration) *Executor {
	return &Executor{db: db, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, stmt sqlguard.ValidatedSQL) (query.Result, error) {
	if stmt.IsZero() {
		return query.Result{}, &query.ExecutionError{Op: query.OpValidate, Err: errors.New("statement was not validated")}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	start := time.Now()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpConnect, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpConnect, Err: fmt.Errorf("begin read-only tx: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, stmt.String())
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpExecute, Err: err}
	}
	defer func() { _ = rows.Close() }()

	columns, resultRows, err := query.ScanRows(rows)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}
