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

const viewColumns = `id, table_id, name, sort_by, sort_direction, position_num, created_at`

const viewColumnColumns = `id, view_id, column_id, visible, filter_condition,
	filter_value, position_num, width_px`

const viewSortColumns = `id, view_id, column_id, direction, position_num`

// ViewStore manages saved table presentations. Views, their column
// settings and their sort levels all live in the session's bound schema
// and cascade away with the table they describe.
type ViewStore struct{}

func NewViewStore() *ViewStore { return &ViewStore{} }

// normalizeDirection maps the empty direction to the ascending default and
// rejects anything outside asc/desc.
func normalizeDirection(d string) (string, error) {
	switch d {
	case "":
		return "asc", nil
	case "asc", "desc":
		return d, nil
	default:
		return "", apperr.Validation("direction", fmt.Sprintf("unknown sort direction %q", d))
	}
}

func scanView(row pgx.Row) (*models.View, error) {
	var v models.View
	err := row.Scan(&v.ID, &v.TableID, &v.Name, &v.SortBy, &v.SortDirection, &v.Position, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanViewColumn(row pgx.Row) (*models.ViewColumn, error) {
	var vc models.ViewColumn
	err := row.Scan(&vc.ID, &vc.ViewID, &vc.ColumnID, &vc.Visible, &vc.FilterCondition,
		&vc.FilterValue, &vc.Position, &vc.WidthPx)
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

func scanViewSort(row pgx.Row) (*models.ViewSort, error) {
	var vs models.ViewSort
	err := row.Scan(&vs.ID, &vs.ViewID, &vs.ColumnID, &vs.Direction, &vs.Position)
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

func (s *ViewStore) Create(ctx context.Context, sess *db.Session, in repository.ViewInput) (*models.View, error) {
	if in.Name == "" {
		return nil, apperr.Validation("name", "required")
	}
	direction, err := normalizeDirection(in.SortDirection)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO views (table_id, name, sort_by, sort_direction, position_num)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + viewColumns

	v, err := scanView(sess.QueryRow(ctx, query, in.TableID, in.Name, in.SortBy, direction, in.Position))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_VIEW_NAME", fmt.Sprintf("view %q already exists on this table", in.Name))
		}
		return nil, fmt.Errorf("create view: %w", err)
	}
	return v, nil
}

func (s *ViewStore) ListByTable(ctx context.Context, sess *db.Session, tableID int64) ([]models.View, error) {
	query := `
		SELECT ` + viewColumns + `
		FROM views
		WHERE table_id = $1
		ORDER BY position_num, id`

	rows, err := sess.Query(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	views := make([]models.View, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate views: %w", err)
	}
	return views, nil
}

func (s *ViewStore) GetByID(ctx context.Context, sess *db.Session, id int64) (*models.View, error) {
	v, err := scanView(sess.QueryRow(ctx, `SELECT `+viewColumns+` FROM views WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("view")
		}
		return nil, fmt.Errorf("get view: %w", err)
	}
	return v, nil
}

func (s *ViewStore) Update(ctx context.Context, sess *db.Session, id int64, in repository.ViewInput) (*models.View, error) {
	if in.Name == "" {
		return nil, apperr.Validation("name", "required")
	}
	direction, err := normalizeDirection(in.SortDirection)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE views
		SET name = $2, sort_by = $3, sort_direction = $4
		WHERE id = $1
		RETURNING ` + viewColumns

	v, err := scanView(sess.QueryRow(ctx, query, id, in.Name, in.SortBy, direction))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("view")
		}
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_VIEW_NAME", fmt.Sprintf("view %q already exists on this table", in.Name))
		}
		return nil, fmt.Errorf("update view: %w", err)
	}
	return v, nil
}

// UpdatePosition moves the view and renumbers its table siblings densely.
// A tie at the target position puts the moved view first.
func (s *ViewStore) UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move view: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE views SET position_num = $2 WHERE id = $1`, id, position)
	if err != nil {
		return fmt.Errorf("update view position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("view")
	}

	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY position_num, (id = $1)::int DESC, id
			) - 1 AS rn
			FROM views
			WHERE table_id = (SELECT table_id FROM views WHERE id = $1)
		)
		UPDATE views v
		SET position_num = o.rn
		FROM ordered o
		WHERE v.id = o.id AND v.position_num <> o.rn`, id)
	if err != nil {
		return fmt.Errorf("reindex views: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete removes the view; its column settings and sort levels follow
// through ON DELETE CASCADE.
func (s *ViewStore) Delete(ctx context.Context, sess *db.Session, id int64) error {
	tag, err := sess.Exec(ctx, `DELETE FROM views WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete view: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("view")
	}
	return nil
}

func (s *ViewStore) AddColumn(ctx context.Context, sess *db.Session, in repository.ViewColumnInput) (*models.ViewColumn, error) {
	query := `
		INSERT INTO view_columns (view_id, column_id, visible, filter_condition,
			filter_value, position_num, width_px)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + viewColumnColumns

	vc, err := scanViewColumn(sess.QueryRow(ctx, query,
		in.ViewID, in.ColumnID, in.Visible, in.FilterCondition, in.FilterValue, in.Position, in.WidthPx))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_VIEW_COLUMN", "column already added to this view")
		}
		return nil, fmt.Errorf("add view column: %w", err)
	}
	return vc, nil
}

func (s *ViewStore) ListColumns(ctx context.Context, sess *db.Session, viewID int64) ([]models.ViewColumn, error) {
	query := `
		SELECT ` + viewColumnColumns + `
		FROM view_columns
		WHERE view_id = $1
		ORDER BY position_num, id`

	rows, err := sess.Query(ctx, query, viewID)
	if err != nil {
		return nil, fmt.Errorf("list view columns: %w", err)
	}
	defer rows.Close()

	cols := make([]models.ViewColumn, 0)
	for rows.Next() {
		vc, err := scanViewColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan view column: %w", err)
		}
		cols = append(cols, *vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate view columns: %w", err)
	}
	return cols, nil
}

func (s *ViewStore) UpdateColumn(ctx context.Context, sess *db.Session, id int64, in repository.ViewColumnInput) (*models.ViewColumn, error) {
	query := `
		UPDATE view_columns
		SET visible = $2, filter_condition = $3, filter_value = $4, width_px = $5
		WHERE id = $1
		RETURNING ` + viewColumnColumns

	vc, err := scanViewColumn(sess.QueryRow(ctx, query,
		id, in.Visible, in.FilterCondition, in.FilterValue, in.WidthPx))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("view column")
		}
		return nil, fmt.Errorf("update view column: %w", err)
	}
	return vc, nil
}

// UpdateColumnPosition moves the entry and renumbers its view siblings
// densely, same tie rule as the other position moves.
func (s *ViewStore) UpdateColumnPosition(ctx context.Context, sess *db.Session, id int64, position int) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move view column: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE view_columns SET position_num = $2 WHERE id = $1`, id, position)
	if err != nil {
		return fmt.Errorf("update view column position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("view column")
	}

	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY position_num, (id = $1)::int DESC, id
			) - 1 AS rn
			FROM view_columns
			WHERE view_id = (SELECT view_id FROM view_columns WHERE id = $1)
		)
		UPDATE view_columns vc
		SET position_num = o.rn
		FROM ordered o
		WHERE vc.id = o.id AND vc.position_num <> o.rn`, id)
	if err != nil {
		return fmt.Errorf("reindex view columns: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *ViewStore) RemoveColumn(ctx context.Context, sess *db.Session, id int64) error {
	tag, err := sess.Exec(ctx, `DELETE FROM view_columns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove view column: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("view column")
	}
	return nil
}

// AddSort appends a sort level at the end of the view's current order.
func (s *ViewStore) AddSort(ctx context.Context, sess *db.Session, in repository.ViewSortInput) (*models.ViewSort, error) {
	direction, err := normalizeDirection(in.Direction)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO view_sorts (view_id, column_id, direction, position_num)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(position_num) + 1, 0) FROM view_sorts WHERE view_id = $1))
		RETURNING ` + viewSortColumns

	vs, err := scanViewSort(sess.QueryRow(ctx, query, in.ViewID, in.ColumnID, direction))
	if err != nil {
		return nil, fmt.Errorf("add view sort: %w", err)
	}
	return vs, nil
}

func (s *ViewStore) ListSorts(ctx context.Context, sess *db.Session, viewID int64) ([]models.ViewSort, error) {
	query := `
		SELECT ` + viewSortColumns + `
		FROM view_sorts
		WHERE view_id = $1
		ORDER BY position_num, id`

	rows, err := sess.Query(ctx, query, viewID)
	if err != nil {
		return nil, fmt.Errorf("list view sorts: %w", err)
	}
	defer rows.Close()

	sorts := make([]models.ViewSort, 0)
	for rows.Next() {
		vs, err := scanViewSort(rows)
		if err != nil {
			return nil, fmt.Errorf("scan view sort: %w", err)
		}
		sorts = append(sorts, *vs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate view sorts: %w", err)
	}
	return sorts, nil
}

func (s *ViewStore) UpdateSort(ctx context.Context, sess *db.Session, id int64, in repository.ViewSortInput) (*models.ViewSort, error) {
	direction, err := normalizeDirection(in.Direction)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE view_sorts
		SET column_id = $2, direction = $3
		WHERE id = $1
		RETURNING ` + viewSortColumns

	vs, err := scanViewSort(sess.QueryRow(ctx, query, id, in.ColumnID, direction))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("view sort")
		}
		return nil, fmt.Errorf("update view sort: %w", err)
	}
	return vs, nil
}

// UpdateSortPosition moves the sort level and renumbers its view siblings
// densely, same tie rule as the other position moves.
func (s *ViewStore) UpdateSortPosition(ctx context.Context, sess *db.Session, id int64, position int) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move view sort: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE view_sorts SET position_num = $2 WHERE id = $1`, id, position)
	if err != nil {
		return fmt.Errorf("update view sort position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("view sort")
	}

	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY position_num, (id = $1)::int DESC, id
			) - 1 AS rn
			FROM view_sorts
			WHERE view_id = (SELECT view_id FROM view_sorts WHERE id = $1)
		)
		UPDATE view_sorts vs
		SET position_num = o.rn
		FROM ordered o
		WHERE vs.id = o.id AND vs.position_num <> o.rn`, id)
	if err != nil {
		return fmt.Errorf("reindex view sorts: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *ViewStore) RemoveSort(ctx context.Context, sess *db.Session, id int64) error {
	tag, err := sess.Exec(ctx, `DELETE FROM view_sorts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove view sort: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("view sort")
	}
	return nil
}

var _ repository.ViewRepository = (*ViewStore)(nil)
