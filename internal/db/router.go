package db

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
)

// SharedSchema is the schema holding the tenant registry and the global
// user mirror. Every tenant session keeps it on the search path as a
// fallback, so registry lookups work from any bound session.
const SharedSchema = "public"

// Schema identifiers are interpolated into SET search_path, so anything
// outside this pattern is rejected before reaching the database.
var schemaIdentifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func ValidSchemaIdentifier(name string) bool {
	return schemaIdentifierPattern.MatchString(name)
}

// Querier is the subset of pgx shared by sessions and transactions.
// Store helpers take a Querier so the same SQL runs inside or outside an
// explicit transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Router hands out pooled connections bound to a tenant schema.
// There is exactly one Router per process, wrapping the one shared pool.
type Router struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewRouter(pool *pgxpool.Pool, logger *zap.Logger) *Router {
	return &Router{pool: pool, logger: logger}
}

// Acquire checks the identifier, takes a connection from the pool and binds
// it to the schema with SET search_path. The caller must call Release on
// every exit path; Release is idempotent.
//
// An invalid identifier fails with a ValidationError before any SQL is
// issued. Pool exhaustion or a connect timeout surfaces as
// ConnectionUnavailable.
func (r *Router) Acquire(ctx context.Context, schema string) (*Session, error) {
	if !ValidSchemaIdentifier(schema) {
		return nil, apperr.InvalidSchemaIdentifier(schema)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, &apperr.ConnectionUnavailableError{Err: err}
	}

	// The search path is session state, not transaction state. It must be
	// set before the first query and undone before the connection goes
	// back to the pool (see Session.Release).
	if schema != SharedSchema {
		query := fmt.Sprintf(`SET search_path TO %q, public`, schema)
		if _, err := conn.Exec(ctx, query); err != nil {
			conn.Release()
			return nil, fmt.Errorf("set search_path to %s: %w", schema, err)
		}
	}

	return &Session{conn: conn, schema: schema, logger: r.logger}, nil
}

// AcquireShared reuses an upstream session when one is supplied, so several
// operations within a request can share one connection and transaction.
// Releasing the returned handle never releases a borrowed session.
func (r *Router) AcquireShared(ctx context.Context, schema string, existing *Session) (*Session, error) {
	if existing != nil {
		return existing.Share(), nil
	}
	return r.Acquire(ctx, schema)
}

// Session is a pooled connection bound to one tenant schema.
// It is request-scoped and not safe for concurrent use.
type Session struct {
	conn     *pgxpool.Conn
	schema   string
	borrowed bool
	released bool
	logger   *zap.Logger
}

// Share returns a handle over the same bound connection whose Release is a
// no-op. The owner of the original session keeps the release duty.
func (s *Session) Share() *Session {
	return &Session{conn: s.conn, schema: s.schema, borrowed: true, logger: s.logger}
}

// Release resets session state and returns the connection to the pool.
// Safe to call more than once.
func (s *Session) Release() {
	if s.borrowed || s.released {
		return
	}
	s.released = true

	// The next acquirer of this connection must not inherit this tenant's
	// search_path or actor id.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.conn.Exec(ctx, "RESET ALL"); err != nil {
		s.logger.Warn("reset session state failed",
			zap.String("schema", s.schema),
			zap.Error(err),
		)
	}
	s.conn.Release()
}

func (s *Session) Schema() string {
	return s.schema
}

// SetActor records the acting user on the session for audit attribution.
// Must be called before any write that the audit log should attribute.
func (s *Session) SetActor(ctx context.Context, actorID string) error {
	if _, err := s.conn.Exec(ctx, `SELECT set_config('app.current_user_id', $1, false)`, actorID); err != nil {
		return fmt.Errorf("set actor: %w", err)
	}
	return nil
}

func (s *Session) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if s.released {
		return pgconn.CommandTag{}, fmt.Errorf("session already released")
	}
	return s.conn.Exec(ctx, sql, arguments...)
}

func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.released {
		return nil, fmt.Errorf("session already released")
	}
	return s.conn.Query(ctx, sql, args...)
}

func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.released {
		return errRow{fmt.Errorf("session already released")}
	}
	return s.conn.QueryRow(ctx, sql, args...)
}

// errRow carries a session-state error to Scan, the first point where the
// pgx.Row contract can report one.
type errRow struct{ err error }

func (r errRow) Scan(dest ...any) error { return r.err }

// Begin starts an explicit transaction on the bound connection.
func (s *Session) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.released {
		return nil, fmt.Errorf("session already released")
	}
	return s.conn.Begin(ctx)
}
