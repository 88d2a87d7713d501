package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/gridbase/internal/apperr"
)

// scriptQuerier records executed statements and serves a canned scalar
// read, standing in for the delete transaction.
type scriptQuerier struct {
	tableCount int
	execs      []string
}

func (q *scriptQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, sql)
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (q *scriptQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (q *scriptQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return scalarRow{q.tableCount}
}

type scalarRow struct{ n int }

func (r scalarRow) Scan(dest ...any) error {
	*(dest[0].(*int)) = r.n
	return nil
}

func TestDeleteModuleCascadeRemovesJoinTablesFirst(t *testing.T) {
	q := &scriptQuerier{tableCount: 2}
	require.NoError(t, deleteModule(context.Background(), q, 7, true))

	// The original/related FKs do not cascade, so join tables referencing
	// the module's tables must be gone before the tables themselves.
	require.Len(t, q.execs, 3)
	assert.Contains(t, q.execs[0], "original_table_id")
	assert.Contains(t, q.execs[0], "related_table_id")
	assert.Contains(t, q.execs[1], "DELETE FROM tables WHERE module_id")
	assert.Contains(t, q.execs[2], "DELETE FROM modules")
}

func TestDeleteModuleWithoutCascadeRefuses(t *testing.T) {
	q := &scriptQuerier{tableCount: 1}
	err := deleteModule(context.Background(), q, 7, false)

	var conflict *apperr.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Empty(t, q.execs)
}

func TestDeleteModuleEmptySkipsTableDeletes(t *testing.T) {
	q := &scriptQuerier{tableCount: 0}
	require.NoError(t, deleteModule(context.Background(), q, 7, false))

	require.Len(t, q.execs, 1)
	assert.Contains(t, q.execs[0], "DELETE FROM modules")
}
