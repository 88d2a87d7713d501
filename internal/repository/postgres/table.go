package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const tableColumns = `id, module_id, name, description, position_num,
	original_table_id, related_table_id, created_at`

// TableStore manages the user-defined entity types of a tenant, including
// the machine-generated join tables behind many-to-many relations.
type TableStore struct {
	logger *zap.Logger
}

func NewTableStore(logger *zap.Logger) *TableStore {
	return &TableStore{logger: logger}
}

func scanTable(row pgx.Row) (*models.Table, error) {
	var t models.Table
	err := row.Scan(&t.ID, &t.ModuleID, &t.Name, &t.Description, &t.Position,
		&t.OriginalTableID, &t.RelatedTableID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts the table and its default "Name" text column in one
// transaction. Every table starts with at least that one column so records
// always have a display attribute.
func (s *TableStore) Create(ctx context.Context, sess *db.Session, in repository.TableInput) (*models.Table, error) {
	if in.Name == "" {
		return nil, apperr.Validation("name", "required")
	}
	if in.ModuleID == nil {
		return nil, apperr.Validation("module_id", "required")
	}

	exists, err := s.ExistsNameInModule(ctx, sess, *in.ModuleID, in.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.DuplicateTableName(in.Name)
	}

	tx, err := sess.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create table: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO tables (module_id, name, description, position_num)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tableColumns

	t, err := scanTable(tx.QueryRow(ctx, query, in.ModuleID, in.Name, in.Description, in.Position))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.DuplicateTableName(in.Name)
		}
		return nil, fmt.Errorf("create table: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO columns (table_id, name, data_type, is_required, position_num)
		VALUES ($1, 'Name', 'text', true, 0)`, t.ID)
	if err != nil {
		return nil, fmt.Errorf("create default column: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create table: %w", err)
	}
	return t, nil
}

func (s *TableStore) List(ctx context.Context, sess *db.Session) ([]models.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		ORDER BY position_num, id`
	return s.queryTables(ctx, sess, query)
}

func (s *TableStore) ListByModule(ctx context.Context, sess *db.Session, moduleID int64) ([]models.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE module_id = $1
		ORDER BY position_num, id`
	return s.queryTables(ctx, sess, query, moduleID)
}

func (s *TableStore) queryTables(ctx context.Context, sess *db.Session, query string, args ...any) ([]models.Table, error) {
	rows, err := sess.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := make([]models.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (s *TableStore) GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

	t, err := scanTable(sess.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("table")
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	return t, nil
}

func (s *TableStore) Update(ctx context.Context, sess *db.Session, id int64, name, description string) (*models.Table, error) {
	if name == "" {
		return nil, apperr.Validation("name", "required")
	}
	query := `
		UPDATE tables
		SET name = $2, description = $3
		WHERE id = $1
		RETURNING ` + tableColumns

	t, err := scanTable(sess.QueryRow(ctx, query, id, name, description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("table")
		}
		if isUniqueViolation(err) {
			return nil, apperr.DuplicateTableName(name)
		}
		return nil, fmt.Errorf("update table: %w", err)
	}
	return t, nil
}

// UpdatePosition moves the table and renumbers its module siblings
// densely. A tie at the target position puts the moved table first.
func (s *TableStore) UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move table: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE tables SET position_num = $2 WHERE id = $1`, id, position)
	if err != nil {
		return fmt.Errorf("update table position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("table")
	}

	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY position_num, (id = $1)::int DESC, id
			) - 1 AS rn
			FROM tables
			WHERE module_id IS NOT DISTINCT FROM (SELECT module_id FROM tables WHERE id = $1)
		)
		UPDATE tables t
		SET position_num = o.rn
		FROM ordered o
		WHERE t.id = o.id AND t.position_num <> o.rn`, id)
	if err != nil {
		return fmt.Errorf("reindex tables: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete refuses while records remain, unless cascade. Columns, records and
// permission rows follow through ON DELETE CASCADE.
func (s *TableStore) Delete(ctx context.Context, sess *db.Session, id int64, cascade bool) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete table: %w", err)
	}
	defer tx.Rollback(ctx)

	if !cascade {
		var recordCount int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE table_id = $1`, id).Scan(&recordCount); err != nil {
			return fmt.Errorf("count table records: %w", err)
		}
		if recordCount > 0 {
			return apperr.HasDependentData("table")
		}
	}

	// Join tables referencing this one via original/related must go first;
	// those FKs do not cascade.
	if _, err := tx.Exec(ctx,
		`DELETE FROM tables WHERE original_table_id = $1 OR related_table_id = $1`, id); err != nil {
		return fmt.Errorf("delete join tables: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM tables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete table: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("table")
	}
	return tx.Commit(ctx)
}

func (s *TableStore) ExistsNameInModule(ctx context.Context, sess *db.Session, moduleID int64, name string) (bool, error) {
	var exists bool
	err := sess.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tables WHERE module_id = $1 AND lower(name) = lower($2))`,
		moduleID, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table name: %w", err)
	}
	return exists, nil
}

// joinPair puts the table pair in canonical order. The pair is unordered
// from the caller's point of view, but UNIQUE (original_table_id,
// related_table_id) compares stored column order, so both call orders must
// insert the same row for concurrent creates to collide on the constraint.
func joinPair(a, b int64) (int64, int64) {
	if b < a {
		return b, a
	}
	return a, b
}

// GetOrCreateJoinTable finds or creates the relation table linking the
// (a, b) table pair. The pair is stored in canonical order so the UNIQUE
// constraint makes concurrent calls converge on one row regardless of
// argument order: the loser of the insert race re-reads the winner's table.
func (s *TableStore) GetOrCreateJoinTable(ctx context.Context, sess *db.Session, tableAID, tableBID int64, linkColumn string) (*models.Table, repository.JoinTableStatus, error) {
	if tableAID == tableBID {
		return nil, "", apperr.Validation("related_table_id", "cannot relate a table to itself")
	}
	loID, hiID := joinPair(tableAID, tableBID)

	existing, err := s.findJoinTable(ctx, sess, loID, hiID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return existing, repository.JoinTableFound, nil
	}

	a, err := s.GetByID(ctx, sess, loID)
	if err != nil {
		return nil, "", err
	}
	b, err := s.GetByID(ctx, sess, hiID)
	if err != nil {
		return nil, "", err
	}

	tx, err := sess.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("begin create join table: %w", err)
	}
	defer tx.Rollback(ctx)

	name := fmt.Sprintf("%s_%s_join", a.Name, b.Name)
	query := `
		INSERT INTO tables (name, description, original_table_id, related_table_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tableColumns

	jt, err := scanTable(tx.QueryRow(ctx, query,
		name, fmt.Sprintf("Links %s and %s", a.Name, b.Name), loID, hiID))
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race; the other writer's table is authoritative.
			tx.Rollback(ctx)
			found, ferr := s.findJoinTable(ctx, sess, loID, hiID)
			if ferr != nil {
				return nil, "", ferr
			}
			if found == nil {
				return nil, "", fmt.Errorf("join table insert conflict but no row found")
			}
			return found, repository.JoinTableFound, nil
		}
		return nil, "", fmt.Errorf("create join table: %w", err)
	}

	for pos, col := range []string{linkColumn, "related_id"} {
		if col == "" {
			continue
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO columns (table_id, name, data_type, is_foreign_key, position_num)
			VALUES ($1, $2, 'relation', true, $3)`, jt.ID, col, pos)
		if err != nil {
			return nil, "", fmt.Errorf("create join column %s: %w", col, err)
		}
	}

	// Every active role can read the new relation table; stricter grants
	// are an explicit follow-up by an administrator.
	_, err = tx.Exec(ctx, `
		INSERT INTO permissions (role_id, table_id, can_read)
		SELECT id, $1, true FROM roles WHERE active`, jt.ID)
	if err != nil {
		return nil, "", fmt.Errorf("seed join table permissions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit create join table: %w", err)
	}

	s.logger.Info("join table created",
		zap.String("schema", sess.Schema()),
		zap.Int64("table_a", tableAID),
		zap.Int64("table_b", tableBID),
		zap.Int64("join_table", jt.ID),
	)
	return jt, repository.JoinTableCreated, nil
}

func (s *TableStore) findJoinTable(ctx context.Context, sess *db.Session, tableAID, tableBID int64) (*models.Table, error) {
	query := `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE (original_table_id = $1 AND related_table_id = $2)
		   OR (original_table_id = $2 AND related_table_id = $1)`

	t, err := scanTable(sess.QueryRow(ctx, query, tableAID, tableBID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find join table: %w", err)
	}
	return t, nil
}

var _ repository.TableRepository = (*TableStore)(nil)
