// Package store persists output row-sets to PostgreSQL and records each
// pipeline run in a local SQLite ledger.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"trialjoin/internal/rowset"
)

// RunColumn is prepended to every table written by Postgres.
const RunColumn = "trialjoin_run_id"

// DefaultMaxConns bounds the pool when the caller does not.
const DefaultMaxConns = 4

// Postgres writes row-sets into tables of one database.
type Postgres struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	// Schema qualifies table names when set.
	Schema string
	// Replace drops an existing table before writing.
	Replace bool
}

// OpenPostgres connects and pings the database at connStr.
func OpenPostgres(ctx context.Context, connStr string, maxConns int32, log *zap.Logger) (*Postgres, error) {
	if log == nil {
		log = zap.NewNop()
	}
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection: %w", err)
	}
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	poolConfig.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Debug("connected to postgres", zap.Int32("max_conns", maxConns))
	return &Postgres{pool: pool, log: log}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Pool exposes the underlying pool.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) ident(table string) pgx.Identifier {
	if p.Schema != "" {
		return pgx.Identifier{p.Schema, table}
	}
	return pgx.Identifier{table}
}

// SQLType is the column type a rowset kind is stored as.
func SQLType(k rowset.Kind) string {
	switch k {
	case rowset.KindNumber:
		return "double precision"
	case rowset.KindInt:
		return "bigint"
	case rowset.KindBool:
		return "boolean"
	case rowset.KindTime:
		return "timestamptz"
	}
	return "text"
}

// CreateTableSQL renders the DDL for t stored as table.
func (p *Postgres) CreateTableSQL(table string, t *rowset.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\t%s uuid NOT NULL",
		p.ident(table).Sanitize(), pgx.Identifier{RunColumn}.Sanitize())
	for _, name := range t.Columns() {
		k, _ := t.Kind(name)
		fmt.Fprintf(&b, ",\n\t%s %s", pgx.Identifier{name}.Sanitize(), SQLType(k))
	}
	b.WriteString("\n)")
	return b.String()
}

// WriteTable stores t as table in one transaction, tagging every row with
// runID. It returns the number of rows copied.
func (p *Postgres) WriteTable(ctx context.Context, table string, t *rowset.Table, runID uuid.UUID) (int64, error) {
	start := time.Now()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if p.Replace {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+p.ident(table).Sanitize()); err != nil {
			return 0, fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(ctx, p.CreateTableSQL(table, t)); err != nil {
		return 0, fmt.Errorf("create %s: %w", table, err)
	}

	names := t.Columns()
	columns := append([]string{RunColumn}, names...)
	cols := make([]rowset.Column, len(names))
	for j, name := range names {
		cols[j], _ = t.Column(name)
	}
	run := pgtype.UUID{Bytes: runID, Valid: true}

	copied, err := tx.CopyFrom(ctx, p.ident(table), columns,
		pgx.CopyFromFunc(rowSource(t.Len(), cols, run)))
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", table, err)
	}

	p.log.Info("table written",
		zap.String("table", table),
		zap.Int64("rows", copied),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)))
	return copied, nil
}

func rowSource(n int, cols []rowset.Column, run pgtype.UUID) func() ([]any, error) {
	i := 0
	return func() ([]any, error) {
		if i >= n {
			return nil, nil
		}
		row := make([]any, len(cols)+1)
		row[0] = run
		for j, c := range cols {
			row[j+1] = pgValue(c.Values[i])
		}
		i++
		return row, nil
	}
}

// pgValue converts a cell to the value pgx encodes for its column type.
func pgValue(v rowset.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case rowset.KindNumber:
		return v.Float()
	case rowset.KindInt:
		return v.Int()
	case rowset.KindBool:
		return v.Bool()
	case rowset.KindTime:
		return v.Time()
	}
	return strings.ToValidUTF8(v.Str(), " ")
}

// CountRows returns the rows stored in table for runID.
func (p *Postgres) CountRows(ctx context.Context, table string, runID uuid.UUID) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s = $1",
		p.ident(table).Sanitize(), pgx.Identifier{RunColumn}.Sanitize())
	if err := p.pool.QueryRow(ctx, q, pgtype.UUID{Bytes: runID, Valid: true}).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
