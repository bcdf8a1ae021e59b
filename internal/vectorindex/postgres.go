package vectorindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the index can run against pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Postgres stores plans in a pgvector table and lets the database do the
// nearest-neighbour search.
type Postgres struct {
	pool  DBPool
	table string
	log   *zap.Logger
}

// NewPostgres verifies the connection. Call EnsureSchema before first use
// on a fresh database.
func NewPostgres(ctx context.Context, pool DBPool, table string, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if table == "" {
		table = "plans"
	}
	return &Postgres{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		log:   logger.Named("vectorindex.postgres"),
	}, nil
}

// EnsureSchema creates the pgvector extension and the plans table.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return schemas.NewStorageError("create extension", p.table, err)
	}
	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id TEXT PRIMARY KEY,
            task_title TEXT NOT NULL,
            plan TEXT NOT NULL,
            task_id TEXT NOT NULL,
            execution_date TIMESTAMPTZ NOT NULL,
            embedding vector NOT NULL
        )`, p.table)
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return schemas.NewStorageError("create table", p.table, err)
	}
	return nil
}

func (p *Postgres) Upsert(ctx context.Context, rec schemas.PlanRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("plan record has no ID")
	}
	query := fmt.Sprintf(`
        INSERT INTO %s (id, task_title, plan, task_id, execution_date, embedding)
        VALUES ($1, $2, $3, $4, $5, $6::vector)
        ON CONFLICT (id) DO UPDATE SET
            task_title = EXCLUDED.task_title,
            plan = EXCLUDED.plan,
            task_id = EXCLUDED.task_id,
            execution_date = EXCLUDED.execution_date,
            embedding = EXCLUDED.embedding`, p.table)
	_, err := p.pool.Exec(ctx, query, rec.ID, rec.TaskTitle, rec.Plan, rec.TaskID, rec.ExecutionDate, VectorLiteral(rec.Embedding))
	return schemas.NewStorageError("upsert", p.table, err)
}

func (p *Postgres) Query(ctx context.Context, vector []float32, k int) ([]schemas.ScoredPlan, error) {
	if k <= 0 {
		k = 1
	}
	query := fmt.Sprintf(`
        SELECT id, task_title, plan, task_id, execution_date, 1 - (embedding <=> $1::vector) AS similarity
        FROM %s
        ORDER BY embedding <=> $1::vector, execution_date DESC
        LIMIT $2`, p.table)
	rows, err := p.pool.Query(ctx, query, VectorLiteral(vector), k)
	if err != nil {
		return nil, schemas.NewStorageError("query", p.table, err)
	}
	defer rows.Close()

	var out []schemas.ScoredPlan
	for rows.Next() {
		var sp schemas.ScoredPlan
		if err := rows.Scan(&sp.ID, &sp.TaskTitle, &sp.Plan, &sp.TaskID, &sp.ExecutionDate, &sp.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, schemas.NewStorageError("query", p.table, err)
	}
	return out, nil
}

func (p *Postgres) List(ctx context.Context) ([]schemas.PlanRecord, error) {
	query := fmt.Sprintf(`
        SELECT id, task_title, plan, task_id, execution_date
        FROM %s
        ORDER BY execution_date DESC`, p.table)
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, schemas.NewStorageError("list", p.table, err)
	}
	defer rows.Close()

	var out []schemas.PlanRecord
	for rows.Next() {
		var r schemas.PlanRecord
		if err := rows.Scan(&r.ID, &r.TaskTitle, &r.Plan, &r.TaskID, &r.ExecutionDate); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, schemas.NewStorageError("list", p.table, err)
	}
	return out, nil
}

func (p *Postgres) DeleteByTitle(ctx context.Context, title string) (int, error) {
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE task_title = $1`, p.table), title)
	if err != nil {
		return 0, schemas.NewStorageError("delete", p.table, err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Clear(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, p.table))
	if err != nil {
		return 0, schemas.NewStorageError("clear", p.table, err)
	}
	p.log.Info("Cleared plan table.", zap.Int64("rows", tag.RowsAffected()))
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// VectorLiteral renders v in pgvector's text form, e.g. [0.1,0.2].
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
