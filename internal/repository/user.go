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

const usersTable = "users"

var userColumns = []string{
	"id", "email", "phone", "password_hash", "first_name", "last_name",
	"email_verified_at", "phone_verified_at", "created_at", "updated_at",
}

type UserRepository struct {
	db database.Querier
}

func NewUserRepository(db database.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *UserRepository) WithTx(tx database.Querier) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) queryOne(ctx context.Context, query sq.Sqlizer) (*model.User, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.User])
	if err != nil {
		return nil, sqlerr.WithTable(usersTable, err)
	}
	return user, nil
}

// Create inserts a user. A duplicate email violates unique_users_email.
func (r *UserRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	query := psql.Insert(usersTable).
		Columns("email", "phone", "password_hash", "first_name", "last_name").
		Values(user.Email, user.Phone, user.PasswordHash, user.FirstName, user.LastName).
		Suffix(returning(userColumns))

	return r.queryOne(ctx, query)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.queryOne(ctx, psql.Select(userColumns...).From(usersTable).Where(sq.Eq{"id": id}))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.queryOne(ctx, psql.Select(userColumns...).From(usersTable).Where(sq.Eq{"email": email}))
}

// LockByID takes a row lock on the user for the rest of the transaction.
func (r *UserRepository) LockByID(ctx context.Context, id uuid.UUID) error {
	sql, args, err := psql.Select("id").From(usersTable).Where(sq.Eq{"id": id}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return fmt.Errorf("building lock query: %w", err)
	}

	var locked uuid.UUID
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&locked); err != nil {
		return sqlerr.WithTable(usersTable, err)
	}
	return nil
}

// MarkEmailVerified sets email_verified_at unless it is already set.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) (*model.User, error) {
	query := psql.Update(usersTable).
		Set("email_verified_at", sq.Expr("COALESCE(email_verified_at, ?)", at)).
		Where(sq.Eq{"id": id}).
		Suffix(returning(userColumns))

	return r.queryOne(ctx, query)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	sql, args, err := psql.Update(usersTable).
		Set("password_hash", passwordHash).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building password update: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sqlerr.WithTable(usersTable, pgx.ErrNoRows)
	}
	return nil
}

// SetVerifiedPhone stores phone as the user's verified number.
func (r *UserRepository) SetVerifiedPhone(ctx context.Context, id uuid.UUID, phone string, at time.Time) (*model.User, error) {
	query := psql.Update(usersTable).
		Set("phone", phone).
		Set("phone_verified_at", at).
		Where(sq.Eq{"id": id}).
		Suffix(returning(userColumns))

	return r.queryOne(ctx, query)
}
