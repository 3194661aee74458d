package database

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

// releaser is the part of *pgxpool.Conn needed to return it to the pool.
type releaser interface {
	Release()
}

// releaseOnce returns a func that releases conn exactly once, however many
// times it is called.
func releaseOnce(conn releaser) func() {
	var once sync.Once
	return func() {
		once.Do(conn.Release)
	}
}

// releasingRows returns the connection when the result set is exhausted or closed.
type releasingRows struct {
	pgx.Rows
	release func()
}

func (r *releasingRows) Next() bool {
	if r.Rows.Next() {
		return true
	}
	r.release()
	return false
}

func (r *releasingRows) Close() {
	r.Rows.Close()
	r.release()
}

// releasingRow returns the connection once the row has been scanned.
type releasingRow struct {
	row     pgx.Row
	release func()
}

func (r *releasingRow) Scan(dest ...any) error {
	defer r.release()
	return r.row.Scan(dest...)
}

// errRow reports an acquisition failure at Scan time, matching pgx.Row semantics.
type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}

// releasingTx returns the connection when the transaction ends.
type releasingTx struct {
	pgx.Tx
	release func()
}

func (t *releasingTx) Commit(ctx context.Context) error {
	defer t.release()
	return t.Tx.Commit(ctx)
}

func (t *releasingTx) Rollback(ctx context.Context) error {
	defer t.release()
	return t.Tx.Rollback(ctx)
}
