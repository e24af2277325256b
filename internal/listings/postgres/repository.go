package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nestquery/nestquery/internal/listings"
)

const insertAccommodationSQL = `
INSERT INTO accommodations
(type, rent, location, distance_from_college_km, furnished, non_alcoholic,
 smoking_allowed, safety_rating, roommates_allowed, available)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping listings db: %w", err)
	}
	return nil
}

// InsertAccommodations writes all rows in one transaction and returns the
// number inserted.
func (r *Repository) InsertAccommodations(ctx context.Context, rows []listings.Accommodation) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertAccommodationSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare accommodation insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.Type,
			row.Rent,
			row.Location,
			row.DistanceFromCollegeKM,
			row.Furnished,
			row.NonAlcoholic,
			row.SmokingAllowed,
			row.SafetyRating,
			row.RoommatesAllowed,
			row.Available,
		); err != nil {
			return 0, fmt.Errorf("insert accommodation %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(rows), nil
}

func (r *Repository) CountAccommodations(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accommodations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accommodations: %w", err)
	}
	return count, nil
}

// ListAvailable returns open listings ordered by id. A limit of zero or less
// returns every row.
func (r *Repository) ListAvailable(ctx context.Context, limit int) ([]listings.Accommodation, error) {
	query := `
SELECT id, type, rent, location, distance_from_college_km, furnished, non_alcoholic,
       smoking_allowed, safety_rating, roommates_allowed, available
FROM accommodations
WHERE available = true
ORDER BY id ASC`
	args := []any{}
	if limit > 0 {
		query += "\nLIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list available accommodations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]listings.Accommodation, 0)
	for rows.Next() {
		var acc listings.Accommodation
		if err := rows.Scan(
			&acc.ID,
			&acc.Type,
			&acc.Rent,
			&acc.Location,
			&acc.DistanceFromCollegeKM,
			&acc.Furnished,
			&acc.NonAlcoholic,
			&acc.SmokingAllowed,
			&acc.SafetyRating,
			&acc.RoommatesAllowed,
			&acc.Available,
		); err != nil {
			return nil, fmt.Errorf("scan accommodation row: %w", err)
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accommodation rows: %w", err)
	}
	return out, nil
}
