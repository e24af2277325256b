package query

import (
	"database/sql"
	"fmt"
)

// ScanRows drains rows into Row values. Byte slices become strings.
func ScanRows(rows *sql.Rows) ([]string, []Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, &ExecutionError{Op: OpScan, Err: fmt.Errorf("query columns: %w", err)}
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, &ExecutionError{Op: OpScan, Err: fmt.Errorf("scan row: %w", err)}
		}
		out = append(out, NewRow(columns, normalizeValues(values)))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &ExecutionError{Op: OpScan, Err: fmt.Errorf("iterate rows: %w", err)}
	}
	return columns, out, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
