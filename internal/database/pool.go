package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Pool is what the stores need from a connection pool: plain queries plus
// transactions. *pgxpool.Pool satisfies it.
type Pool interface {
	DBTX
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}
