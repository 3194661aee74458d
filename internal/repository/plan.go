package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/coachpanel/backend/internal/database"
	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/sqlerr"
	"github.com/jackc/pgx/v5"
)

const plansTable = "plans"

var planColumns = []string{
	"id", "name", "description", "price_cents", "currency", "interval_months",
	"max_clients", "trial_days", "active", "created_at", "updated_at",
}

type PlanRepository struct {
	db database.Querier
}

func NewPlanRepository(db database.Querier) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) WithTx(tx database.Querier) *PlanRepository {
	return &PlanRepository{db: tx}
}

// ListActive returns purchasable plans, cheapest first.
func (r *PlanRepository) ListActive(ctx context.Context) ([]model.Plan, error) {
	sql, args, err := psql.Select(planColumns...).
		From(plansTable).
		Where(sq.Eq{"active": true}).
		OrderBy("price_cents ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building plan list query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToStructByName[model.Plan])
}

// GetActiveByID returns an active plan; unknown and retired plans are both "not found".
func (r *PlanRepository) GetActiveByID(ctx context.Context, id string) (*model.Plan, error) {
	sql, args, err := psql.Select(planColumns...).
		From(plansTable).
		Where(sq.Eq{"id": id, "active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building plan query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	plan, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Plan])
	if err != nil {
		return nil, sqlerr.WithTable(plansTable, err)
	}
	return plan, nil
}

// GetByID returns a plan regardless of whether it is still sold, for
// rendering existing subscriptions.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	sql, args, err := psql.Select(planColumns...).From(plansTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building plan query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	plan, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Plan])
	if err != nil {
		return nil, sqlerr.WithTable(plansTable, err)
	}
	return plan, nil
}
