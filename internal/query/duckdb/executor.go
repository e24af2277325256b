package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/nestquery/nestquery/internal/listings"
	"github.com/nestquery/nestquery/internal/query"
	"github.com/nestquery/nestquery/internal/sqlguard"
	"github.com/nestquery/nestquery/internal/storage"
)

// Executor answers queries from the latest listings snapshot in object
// storage. Each call downloads the snapshot into a scratch directory, loads
// it as the accommodations table of a throwaway in-memory database, cuts the
// database off from the filesystem and runs the statement there.
type Executor struct {
	store   storage.Reader
	key     string
	timeout time.Duration
}

func NewExecutor(store storage.Reader, snapshotKey string, timeout time.Duration) *Executor {
	return &Executor{store: store, key: snapshotKey, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, stmt sqlguard.ValidatedSQL) (query.Result, error) {
	if stmt.IsZero() {
		return query.Result{}, &query.ExecutionError{Op: query.OpValidate, Err: errors.New("statement was not validated")}
	}
	if e.store == nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpSnapshot, Err: errors.New("object store is required")}
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "nestquery-snapshot-")
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpSnapshot, Err: fmt.Errorf("create scratch dir: %w", err)}
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, listings.TableName+".parquet")
	if err := e.download(ctx, localPath); err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpSnapshot, Err: err}
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpConnect, Err: fmt.Errorf("open duckdb: %w", err)}
	}
	defer func() { _ = db.Close() }()

	conn, err := db.Conn(ctx)
	if err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpConnect, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	defer func() { _ = conn.Close() }()

	loadSQL := fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(listings.TableName), quoteString(localPath))
	if _, err := conn.ExecContext(ctx, loadSQL); err != nil {
		return query.Result{}, &query.ExecutionError{Op: query.OpSnapshot, Err: fmt.Errorf("load listings snapshot: %w", err)}
	}
	for _, setting := range sandboxSettings {
		if _, err := conn.ExecContext(ctx, setting); err != nil {
			return query.Result{}, &query.ExecutionError{Op: query.OpConnect, Err: fmt.Errorf("apply %q: %w", setting, err)}
		}
	}

	rows, err := conn.QueryContext(ctx, stripTrailingSemicolons(stmt.String()))
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

// sandboxSettings run after the snapshot is loaded. Generated SQL then sees
// only in-memory tables: file readers such as read_text, read_csv and glob
// fail, and the settings cannot be changed back.
var sandboxSettings = []string{
	"SET enable_external_access = false",
	"SET lock_configuration = true",
}

func (e *Executor) download(ctx context.Context, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local snapshot %q: %w", localPath, err)
	}
	if _, err := storage.CopyTo(ctx, e.store, e.key, file); err != nil {
		_ = file.Close()
		return fmt.Errorf("get snapshot %q: %w", e.key, err)
	}
	return file.Close()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
