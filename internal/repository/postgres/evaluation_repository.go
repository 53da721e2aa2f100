package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/jmoiron/sqlx"
)

const evaluationColumns = `code, product_name, category, type, closing_inventory, total_sales,
	dsi, abc, xyz, margin, doh`

type evaluationRepository struct {
	db *DB
}

func NewEvaluationRepository(db *DB) repository.EvaluationRepository {
	return &evaluationRepository{db: db}
}

// ReplaceEvaluations swaps the whole table in one transaction.
func (r *evaluationRepository) ReplaceEvaluations(ctx context.Context, runKey string, evals []domain.ProductEvaluation) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_evaluations`); err != nil {
			return fmt.Errorf("failed to clear evaluations: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO product_evaluations (
				run_key, code, product_name, category, type, closing_inventory,
				total_sales, dsi, abc, xyz, margin, doh, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, e := range evals {
			_, err := stmt.ExecContext(ctx,
				runKey, e.Code, e.ProductName, e.Category, e.Type, e.ClosingInventory,
				e.TotalSales, e.DSI, string(e.ABC), string(e.XYZ), e.Margin, e.DOH,
			)
			if err != nil {
				return fmt.Errorf("failed to insert evaluation %s: %w", e.Code, err)
			}
		}
		return nil
	})
}

func (r *evaluationRepository) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, error) {
	where, args := buildEvaluationFilterClause(filter, 1)
	query := `SELECT ` + evaluationColumns + ` FROM product_evaluations` + where + ` ORDER BY code`

	var rows []domain.ProductEvaluation
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error listing evaluations: %w", err)
	}
	return rows, nil
}

func (r *evaluationRepository) GetEvaluation(ctx context.Context, code string) (*domain.ProductEvaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM product_evaluations WHERE code = $1`

	var ev domain.ProductEvaluation
	if err := r.db.GetContext(ctx, &ev, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("error getting evaluation %s: %w", code, err)
	}
	return &ev, nil
}
