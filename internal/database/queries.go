package database

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every read and write against the store. A Queries obtained
// from Store.WithTx must not be used after the callback returns.
type Queries struct {
	q   querier
	loc *time.Location
}

// Location returns the zone slot dates and wall-clock times are expressed in
func (q *Queries) Location() *time.Location {
	return q.loc
}

// instant normalises a timestamp before it is written so text comparisons
// in SQL order correctly.
func instant(t time.Time) time.Time {
	return t.UTC()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return instant(*t)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullableInt(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func intPtr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	i := ni.Int64
	return &i
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// patch accumulates SET clauses for partial updates
type patch struct {
	sets []string
	args []any
}

func (p *patch) set(column string, value any) {
	p.sets = append(p.sets, column+" = ?")
	p.args = append(p.args, value)
}

func (p *patch) empty() bool {
	return len(p.sets) == 0
}

func (p *patch) clause() string {
	return strings.Join(p.sets, ", ")
}
