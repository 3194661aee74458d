package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/coachpanel/backend/internal/database"
	"github.com/coachpanel/backend/internal/model"
	"github.com/coachpanel/backend/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const subscriptionsTable = "subscriptions"

// LiveSubscriptionConstraint is the partial unique index allowing one
// live subscription per user.
const LiveSubscriptionConstraint = "unique_subscriptions_live_user"

var subscriptionColumns = []string{
	"id", "user_id", "plan_id", "status", "current_period_start", "current_period_end",
	"cancel_at_period_end", "canceled_at", "created_at", "updated_at",
}

type SubscriptionRepository struct {
	db database.Querier
}

func NewSubscriptionRepository(db database.Querier) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) WithTx(tx database.Querier) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

func (r *SubscriptionRepository) queryOne(ctx context.Context, query sq.Sqlizer) (*model.Subscription, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building subscription query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	sub, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Subscription])
	if err != nil {
		return nil, sqlerr.WithTable(subscriptionsTable, err)
	}
	return sub, nil
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	query := psql.Insert(subscriptionsTable).
		Columns("user_id", "plan_id", "status", "current_period_start", "current_period_end").
		Values(sub.UserID, sub.PlanID, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd).
		Suffix(returning(subscriptionColumns))

	return r.queryOne(ctx, query)
}

// GetLiveByUserID returns the user's trialing or active subscription whose
// period has not ended at now. Rows past their end that the expiry sweep
// has not reached yet are not live.
func (r *SubscriptionRepository) GetLiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error) {
	query := psql.Select(subscriptionColumns...).
		From(subscriptionsTable).
		Where(sq.Eq{"user_id": userID, "status": liveStatuses}).
		Where(sq.Gt{"current_period_end": now})

	return r.queryOne(ctx, query)
}

// HasAny reports whether the user ever had a subscription, which makes
// them ineligible for another trial.
func (r *SubscriptionRepository) HasAny(ctx context.Context, userID uuid.UUID) (bool, error) {
	sql, args, err := psql.Select("1").
		Prefix("SELECT EXISTS (").
		From(subscriptionsTable).
		Where(sq.Eq{"user_id": userID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building subscription exists query: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CancelAtPeriodEnd flags the live subscription to end with its current
// period. canceled_at keeps the first cancellation time.
func (r *SubscriptionRepository) CancelAtPeriodEnd(ctx context.Context, id uuid.UUID, at time.Time) (*model.Subscription, error) {
	query := psql.Update(subscriptionsTable).
		Set("cancel_at_period_end", true).
		Set("canceled_at", sq.Expr("COALESCE(canceled_at, ?)", at)).
		Where(sq.Eq{"id": id, "status": liveStatuses}).
		Where(sq.Gt{"current_period_end": at}).
		Suffix(returning(subscriptionColumns))

	return r.queryOne(ctx, query)
}

// ExpireDue ends every live subscription whose period is over. Those
// flagged for cancellation become canceled, the rest expired.
func (r *SubscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return r.expireDue(ctx, sq.Eq{"status": liveStatuses}, now)
}

// ExpireDueByUserID is ExpireDue for one user. It frees the live slot a
// finished period still holds in the unique index.
func (r *SubscriptionRepository) ExpireDueByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return r.expireDue(ctx, sq.Eq{"user_id": userID, "status": liveStatuses}, now)
}

func (r *SubscriptionRepository) expireDue(ctx context.Context, filter sq.Eq, now time.Time) (int64, error) {
	sql, args, err := psql.Update(subscriptionsTable).
		Set("status", sq.Expr("CASE WHEN cancel_at_period_end THEN 'canceled' ELSE 'expired' END")).
		Where(filter).
		Where(sq.LtOrEq{"current_period_end": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building expiry update: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
