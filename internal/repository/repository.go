// Package repository handles all interactions with PostgreSQL and Redis.
//
// SQL is built with squirrel and rows are scanned with pgx's struct
// mapping. Every SQL repository can be rebound to a transaction with
// WithTx so services can compose multi-statement operations.
package repository

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// psql builds Postgres ($1, $2, ...) placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// liveStatuses is the SQL form of model.LiveSubscriptionStatuses.
var liveStatuses = []string{"trialing", "active"}

func returning(columns []string) string {
	return "RETURNING " + strings.Join(columns, ", ")
}
