package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const moduleColumns = `id, name, description, icon_ref, position_num, created_at`

// ModuleStore manages the top-level grouping of a tenant's tables. All
// queries run against the session's bound schema.
type ModuleStore struct{}

func NewModuleStore() *ModuleStore { return &ModuleStore{} }

func scanModule(row pgx.Row) (*models.Module, error) {
	var m models.Module
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.IconRef, &m.Position, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *ModuleStore) Create(ctx context.Context, sess *db.Session, in repository.ModuleInput) (*models.Module, error) {
	if in.Name == "" {
		return nil, apperr.Validation("name", "required")
	}
	query := `
		INSERT INTO modules (name, description, icon_ref, position_num)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + moduleColumns

	m, err := scanModule(sess.QueryRow(ctx, query, in.Name, in.Description, in.IconRef, in.Position))
	if err != nil {
		return nil, fmt.Errorf("create module: %w", err)
	}
	return m, nil
}

func (s *ModuleStore) List(ctx context.Context, sess *db.Session) ([]models.Module, error) {
	query := `
		SELECT ` + moduleColumns + `
		FROM modules
		ORDER BY position_num, id`

	rows, err := sess.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()

	modules := make([]models.Module, 0)
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return modules, nil
}

func (s *ModuleStore) GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1`

	m, err := scanModule(sess.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("module")
		}
		return nil, fmt.Errorf("get module: %w", err)
	}
	return m, nil
}

func (s *ModuleStore) Update(ctx context.Context, sess *db.Session, id int64, in repository.ModuleInput) (*models.Module, error) {
	if in.Name == "" {
		return nil, apperr.Validation("name", "required")
	}
	query := `
		UPDATE modules
		SET name = $2, description = $3, icon_ref = COALESCE($4, icon_ref)
		WHERE id = $1
		RETURNING ` + moduleColumns

	m, err := scanModule(sess.QueryRow(ctx, query, id, in.Name, in.Description, in.IconRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("module")
		}
		return nil, fmt.Errorf("update module: %w", err)
	}
	return m, nil
}

// UpdatePosition moves the module and renumbers all modules densely. A
// tie at the target position puts the moved module first.
func (s *ModuleStore) UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move module: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE modules SET position_num = $2 WHERE id = $1`, id, position)
	if err != nil {
		return fmt.Errorf("update module position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("module")
	}

	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY position_num, (id = $1)::int DESC, id
			) - 1 AS rn
			FROM modules
		)
		UPDATE modules m
		SET position_num = o.rn
		FROM ordered o
		WHERE m.id = o.id AND m.position_num <> o.rn`, id)
	if err != nil {
		return fmt.Errorf("reindex modules: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete removes the module. Without cascade it refuses while tables still
// reference it; with cascade the tables go too, taking their columns,
// records and permission rows through the schema's FK cascades.
func (s *ModuleStore) Delete(ctx context.Context, sess *db.Session, id int64, cascade bool) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete module: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := deleteModule(ctx, tx, id, cascade); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func deleteModule(ctx context.Context, q db.Querier, id int64, cascade bool) error {
	var tableCount int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM tables WHERE module_id = $1`, id).Scan(&tableCount); err != nil {
		return fmt.Errorf("count module tables: %w", err)
	}
	if tableCount > 0 {
		if !cascade {
			return apperr.HasDependentData("module")
		}
		// Join tables referencing any contained table go first; the
		// original/related FKs do not cascade.
		_, err := q.Exec(ctx, `
			DELETE FROM tables j
			USING tables t
			WHERE t.module_id = $1
			  AND (j.original_table_id = t.id OR j.related_table_id = t.id)`, id)
		if err != nil {
			return fmt.Errorf("delete module join tables: %w", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM tables WHERE module_id = $1`, id); err != nil {
			return fmt.Errorf("delete module tables: %w", err)
		}
	}

	tag, err := q.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("module")
	}
	return nil
}

var _ repository.ModuleRepository = (*ModuleStore)(nil)
