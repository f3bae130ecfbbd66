package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the Postgres schema holding tracker tables
const Schema = "tracker"

// PostgresStore upserts rows with INSERT … ON CONFLICT DO UPDATE
// ⭐ SSOT: Postgres 웨어하우스 쿼리는 여기서만
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on an existing pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the schema and every table if missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", Schema)}
	for _, spec := range AllTables() {
		stmts = append(stmts, CreateTableSQL(spec))
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Append upserts rows in one batch
func (s *PostgresStore) Append(ctx context.Context, spec TableSpec, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := UpsertSQL(spec)
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("upsert %s.%s: %w", Schema, spec.Name, err)
		}
	}
	return len(rows), nil
}

// Read returns every row of a table ordered by its key
func (s *PostgresStore) Read(ctx context.Context, spec TableSpec) ([]Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s.%s ORDER BY %s",
		strings.Join(spec.ColumnNames(), ", "), Schema, spec.Name, strings.Join(spec.Key, ", "))

	pgRows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", spec.Name, err)
	}
	defer pgRows.Close()

	var out []Row
	for pgRows.Next() {
		values, err := pgRows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(spec.Columns))
		for i, c := range spec.Columns {
			v, err := fromPostgres(c, values[i])
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		out = append(out, row)
	}
	return out, pgRows.Err()
}

// CreateTableSQL renders the DDL of a table
func CreateTableSQL(spec TableSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (\n", Schema, spec.Name)
	for _, c := range spec.Columns {
		notNull := " NOT NULL"
		if c.Type == TypeNullFloat {
			notNull = ""
		}
		fmt.Fprintf(&b, "\t%s %s%s,\n", c.Name, sqlType(c.Type), notNull)
	}
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)", strings.Join(spec.Key, ", "))
	return b.String()
}

// UpsertSQL renders the INSERT … ON CONFLICT statement of a table
func UpsertSQL(spec TableSpec) string {
	placeholders := make([]string, len(spec.Columns))
	var updates []string
	for i, c := range spec.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if !spec.IsKey(c.Name) {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c.Name, c.Name))
		}
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	return fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		Schema, spec.Name,
		strings.Join(spec.ColumnNames(), ", "),
		strings.Join(placeholders, ", "),
		strings.Join(spec.Key, ", "),
		conflict,
	)
}

func sqlType(t ColumnType) string {
	switch t {
	case TypeDate:
		return "DATE"
	case TypeTimestamp:
		return "TIMESTAMPTZ"
	case TypeFloat, TypeNullFloat:
		return "DOUBLE PRECISION"
	case TypeInt:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// fromPostgres normalizes scanned values to the Row value types
func fromPostgres(c Column, v interface{}) (interface{}, error) {
	switch c.Type {
	case TypeNullFloat:
		if v == nil {
			return (*float64)(nil), nil
		}
		if f, ok := v.(float64); ok {
			return &f, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		}
	case TypeDate, TypeTimestamp:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
	case TypeFloat:
		if f, ok := v.(float64); ok {
			return f, nil
		}
	case TypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("column %s: unexpected database value %T", c.Name, v)
}
