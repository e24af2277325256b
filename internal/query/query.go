// Package query executes validated statements against a listings backend and
// returns rows in column order.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/nestquery/nestquery/internal/sqlguard"
)

type Result struct {
	Columns  []string      `json:"columns"`
	Rows     []Row         `json:"rows"`
	Duration time.Duration `json:"-"`
}

// Executor runs one validated statement. Implementations acquire and release
// their own connection per call.
type Executor interface {
	Execute(ctx context.Context, stmt sqlguard.ValidatedSQL) (Result, error)
}

const (
	OpValidate = "validate"
	OpConnect  = "connect"
	OpSnapshot = "snapshot"
	OpExecute  = "execute"
	OpScan     = "scan"
)

// ExecutionError is a database failure after the statement passed the
// safety gate.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
