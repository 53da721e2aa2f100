package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/repository"
	"github.com/jmoiron/sqlx"
)

const requestColumns = `branch_group, branch, code, sku, product_name, category, type, priority,
	evaluated, abc, dsi, doh, margin, avg_monthly_sales, avg_monthly_cogs, stock_cogs,
	stock_quantity, recommended_quantity, box_quantity, available_quantity`

const capacityColumns = `branch_group, branch, basis, max_capacity, min_target, stock_quantity,
	stock_cogs, post_restock_quantity, projected, min_shortfall, max_shortfall, within_capacity,
	recommended_units, recommended_lines, tiers`

// capacityRow carries the tier breakdown as the JSONB it is stored in.
type capacityRow struct {
	domain.CapacityReport
	TiersJSON []byte `db:"tiers"`
}

func (c capacityRow) report() (*domain.CapacityReport, error) {
	rep := c.CapacityReport
	if len(c.TiersJSON) > 0 {
		if err := json.Unmarshal(c.TiersJSON, &rep.Tiers); err != nil {
			return nil, fmt.Errorf("decode tiers of %s: %w", rep.Group, err)
		}
	}
	return &rep, nil
}

type branchRepository struct {
	db *DB
}

func NewBranchRepository(db *DB) repository.BranchRepository {
	return &branchRepository{db: db}
}

// SaveBranchResult replaces the group's lines and upserts its capacity report.
func (r *branchRepository) SaveBranchResult(ctx context.Context, runKey string, res *domain.BranchResult) error {
	tiers, err := json.Marshal(res.Capacity.Tiers)
	if err != nil {
		return fmt.Errorf("encode tiers of %s: %w", res.Group.Name, err)
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		// 1. Drop the group's previous lines
		if _, err := tx.ExecContext(ctx, `DELETE FROM branch_request_lines WHERE branch_group = $1`, res.Group.Name); err != nil {
			return fmt.Errorf("failed to clear request lines: %w", err)
		}

		// 2. Insert the new lines
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO branch_request_lines (
				run_key, branch_group, branch, code, sku, product_name, category, type,
				priority, evaluated, abc, dsi, doh, margin, avg_monthly_sales,
				avg_monthly_cogs, stock_cogs, stock_quantity, recommended_quantity,
				box_quantity, available_quantity
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, l := range res.Lines {
			_, err := stmt.ExecContext(ctx,
				runKey, l.Group, l.Branch, l.Code, l.SKU, l.ProductName, l.Category, l.Type,
				string(l.Priority), l.Evaluated, string(l.ABC), l.DSI, l.DOH, l.Margin, l.AvgMonthlySales,
				l.AvgMonthlyCogs, l.StockCogs, l.StockQuantity, l.RecommendedQuantity,
				l.BoxQuantity, l.AvailableQuantity,
			)
			if err != nil {
				return fmt.Errorf("failed to insert request line %s: %w", l.Code, err)
			}
		}

		// 3. Upsert the capacity report
		c := res.Capacity
		_, err = tx.ExecContext(ctx, `
			INSERT INTO capacity_reports (
				branch_group, run_key, branch, basis, max_capacity, min_target,
				stock_quantity, stock_cogs, post_restock_quantity, projected,
				min_shortfall, max_shortfall, within_capacity, recommended_units,
				recommended_lines, tiers, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
			ON CONFLICT (branch_group)
			DO UPDATE SET
				run_key = EXCLUDED.run_key,
				branch = EXCLUDED.branch,
				basis = EXCLUDED.basis,
				max_capacity = EXCLUDED.max_capacity,
				min_target = EXCLUDED.min_target,
				stock_quantity = EXCLUDED.stock_quantity,
				stock_cogs = EXCLUDED.stock_cogs,
				post_restock_quantity = EXCLUDED.post_restock_quantity,
				projected = EXCLUDED.projected,
				min_shortfall = EXCLUDED.min_shortfall,
				max_shortfall = EXCLUDED.max_shortfall,
				within_capacity = EXCLUDED.within_capacity,
				recommended_units = EXCLUDED.recommended_units,
				recommended_lines = EXCLUDED.recommended_lines,
				tiers = EXCLUDED.tiers,
				updated_at = NOW()
		`,
			c.Group, runKey, c.Branch, string(c.Basis), c.MaxCapacity, c.MinTarget,
			c.StockQuantity, c.StockCogs, c.PostRestockQty, c.Projected,
			c.MinShortfall, c.MaxShortfall, c.WithinCapacity, c.RecommendedUnits,
			c.RecommendedLines, tiers,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert capacity report: %w", err)
		}
		return nil
	})
}

func (r *branchRepository) ListCapacity(ctx context.Context) ([]domain.CapacityReport, error) {
	query := `SELECT ` + capacityColumns + ` FROM capacity_reports ORDER BY branch_group`

	var rows []capacityRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("error listing capacity reports: %w", err)
	}

	out := make([]domain.CapacityReport, 0, len(rows))
	for _, row := range rows {
		rep, err := row.report()
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, nil
}

func (r *branchRepository) GetCapacity(ctx context.Context, group string) (*domain.CapacityReport, error) {
	query := `SELECT ` + capacityColumns + ` FROM capacity_reports WHERE branch_group = $1`

	var row capacityRow
	if err := r.db.GetContext(ctx, &row, query, group); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("error getting capacity report %s: %w", group, err)
	}
	return row.report()
}

func (r *branchRepository) GetRequests(ctx context.Context, group string, priority domain.Priority) ([]domain.BranchRequestLine, error) {
	query := `SELECT ` + requestColumns + ` FROM branch_request_lines WHERE branch_group = $1`
	args := []interface{}{group}
	if priority != "" {
		query += ` AND priority = $2`
		args = append(args, string(priority))
	}
	query += ` ORDER BY code`

	var rows []domain.BranchRequestLine
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error getting request lines of %s: %w", group, err)
	}
	return rows, nil
}
