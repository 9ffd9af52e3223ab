package postgres

import (
	"context"
	"errors"

	domain "github.com/scootsmagoo/filtersfast-next-sub010/internal/domain"
)

const insertTaxLogSQL = `INSERT INTO tax_calculation_logs (
	id, request, response, status_code, success, error_message, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// TaxLogRepository implements repositories.TaxLogRepository.
type TaxLogRepository struct {
	db DB
}

// NewTaxLogRepository constructs a Postgres-backed tax log repository.
func NewTaxLogRepository(db DB) (*TaxLogRepository, error) {
	if db == nil {
		return nil, errors.New("tax log repository requires a database")
	}
	return &TaxLogRepository{db: db}, nil
}

func (r *TaxLogRepository) Insert(ctx context.Context, log domain.TaxCalculationLog) error {
	var statusCode *int
	if log.StatusCode != 0 {
		statusCode = &log.StatusCode
	}
	_, err := r.db.Exec(ctx, insertTaxLogSQL,
		log.ID, log.Request, nullString(log.Response), statusCode, log.Success,
		nullString(log.ErrorMessage), log.CreatedAt.UTC(),
	)
	return wrapError("tax_calculation_logs.insert", err)
}
