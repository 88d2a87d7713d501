package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const columnColumns = `id, table_id, name, data_type, is_required, is_foreign_key,
	foreign_table_id, foreign_column_name, relation_type, position_num, validations`

// columnDataTypes is the closed set of field types. Values live as JSONB in
// record_data regardless of type; the type drives client rendering and
// validation, not storage.
var columnDataTypes = map[string]bool{
	"text":     true,
	"number":   true,
	"boolean":  true,
	"date":     true,
	"file":     true,
	"relation": true,
}

// ColumnStore manages field definitions and the record-data rewrites that
// follow from changing them.
type ColumnStore struct{}

func NewColumnStore() *ColumnStore { return &ColumnStore{} }

func scanColumn(row pgx.Row) (*models.Column, error) {
	var c models.Column
	err := row.Scan(&c.ID, &c.TableID, &c.Name, &c.DataType, &c.IsRequired, &c.IsForeignKey,
		&c.ForeignTableID, &c.ForeignColumnName, &c.RelationType, &c.Position, &c.Validations)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func validateColumnInput(in repository.ColumnInput) error {
	if in.Name == "" {
		return apperr.Validation("name", "required")
	}
	if !columnDataTypes[in.DataType] {
		return apperr.Validation("data_type", fmt.Sprintf("unknown data type %q", in.DataType))
	}
	if in.IsForeignKey && in.ForeignTableID == nil {
		return apperr.Validation("foreign_table_id", "required for foreign key columns")
	}
	return nil
}

func (s *ColumnStore) Create(ctx context.Context, sess *db.Session, in repository.ColumnInput) (*models.Column, error) {
	if err := validateColumnInput(in); err != nil {
		return nil, err
	}

	exists, err := s.ExistsNameInTable(ctx, sess, in.TableID, in.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("DUPLICATE_COLUMN_NAME", fmt.Sprintf("column %q already exists in this table", in.Name))
	}

	if in.IsForeignKey {
		var fkExists bool
		err := sess.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, *in.ForeignTableID,
		).Scan(&fkExists)
		if err != nil {
			return nil, fmt.Errorf("check foreign table: %w", err)
		}
		if !fkExists {
			return nil, apperr.NotFound("foreign table")
		}
	}

	query := `
		INSERT INTO columns (table_id, name, data_type, is_required, is_foreign_key,
			foreign_table_id, foreign_column_name, relation_type, position_num, validations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + columnColumns

	c, err := scanColumn(sess.QueryRow(ctx, query,
		in.TableID, in.Name, in.DataType, in.IsRequired, in.IsForeignKey,
		in.ForeignTableID, in.ForeignColumnName, in.RelationType, in.Position, in.Validations))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_COLUMN_NAME", fmt.Sprintf("column %q already exists in this table", in.Name))
		}
		return nil, fmt.Errorf("create column: %w", err)
	}
	return c, nil
}

func (s *ColumnStore) ListByTable(ctx context.Context, sess *db.Session, tableID int64) ([]models.Column, error) {
	query := `
		SELECT ` + columnColumns + `
		FROM columns
		WHERE table_id = $1
		ORDER BY position_num, id`

	rows, err := sess.Query(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	columns := make([]models.Column, 0)
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (s *ColumnStore) GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Column, error) {
	query := `SELECT ` + columnColumns + ` FROM columns WHERE id = $1`

	c, err := scanColumn(sess.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("column")
		}
		return nil, fmt.Errorf("get column: %w", err)
	}
	return c, nil
}

func (s *ColumnStore) Update(ctx context.Context, sess *db.Session, id int64, in repository.ColumnInput) (*models.Column, error) {
	if err := validateColumnInput(in); err != nil {
		return nil, err
	}
	query := `
		UPDATE columns
		SET name = $2, data_type = $3, is_required = $4, is_foreign_key = $5,
			foreign_table_id = $6, foreign_column_name = $7, relation_type = $8,
			validations = $9
		WHERE id = $1
		RETURNING ` + columnColumns

	c, err := scanColumn(sess.QueryRow(ctx, query, id,
		in.Name, in.DataType, in.IsRequired, in.IsForeignKey,
		in.ForeignTableID, in.ForeignColumnName, in.RelationType, in.Validations))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("column")
		}
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_COLUMN_NAME", fmt.Sprintf("column %q already exists in this table", in.Name))
		}
		return nil, fmt.Errorf("update column: %w", err)
	}
	return c, nil
}

// UpdatePosition moves the column and renumbers its table siblings
// densely. A tie at the target position puts the moved column first.
func (s *ColumnStore) UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move column: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE columns SET position_num = $2 WHERE id = $1`, id, position)
	if err != nil {
		return fmt.Errorf("update column position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("column")
	}

	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY position_num, (id = $1)::int DESC, id
			) - 1 AS rn
			FROM columns
			WHERE table_id = (SELECT table_id FROM columns WHERE id = $1)
		)
		UPDATE columns c
		SET position_num = o.rn
		FROM ordered o
		WHERE c.id = o.id AND c.position_num <> o.rn`, id)
	if err != nil {
		return fmt.Errorf("reindex columns: %w", err)
	}
	return tx.Commit(ctx)
}

// Delete removes the definition and, with force, strips the key from every
// record of the table. Without force it refuses while record data exists
// under the key.
func (s *ColumnStore) Delete(ctx context.Context, sess *db.Session, id int64, force bool) error {
	col, err := s.GetByID(ctx, sess, id)
	if err != nil {
		return err
	}

	hasData, err := s.HasRecordData(ctx, sess, id)
	if err != nil {
		return err
	}
	if hasData && !force {
		return apperr.HasDependentData("column")
	}

	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete column: %w", err)
	}
	defer tx.Rollback(ctx)

	if hasData {
		_, err = tx.Exec(ctx, `
			UPDATE records
			SET record_data = record_data - $2, updated_at = now()
			WHERE table_id = $1 AND record_data ? $2`, col.TableID, col.Name)
		if err != nil {
			return fmt.Errorf("strip column data: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM columns WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *ColumnStore) ExistsNameInTable(ctx context.Context, sess *db.Session, tableID int64, name string) (bool, error) {
	var exists bool
	err := sess.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM columns WHERE table_id = $1 AND lower(name) = lower($2))`,
		tableID, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check column name: %w", err)
	}
	return exists, nil
}

func (s *ColumnStore) HasRecordData(ctx context.Context, sess *db.Session, id int64) (bool, error) {
	col, err := s.GetByID(ctx, sess, id)
	if err != nil {
		return false, err
	}
	var has bool
	err = sess.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM records
			WHERE table_id = $1
			  AND record_data ? $2
			  AND record_data->$2 IS DISTINCT FROM 'null'::jsonb
		)`, col.TableID, col.Name).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("check column data: %w", err)
	}
	return has, nil
}

// RenameRecordKey moves the attribute from the old key to the new one in
// every record of the table that carries it, keeping the value untouched.
func (s *ColumnStore) RenameRecordKey(ctx context.Context, sess *db.Session, tableID int64, oldKey, newKey string) error {
	if oldKey == "" || newKey == "" {
		return apperr.Validation("key", "old and new key required")
	}
	if oldKey == newKey {
		return nil
	}
	_, err := sess.Exec(ctx, `
		UPDATE records
		SET record_data = (record_data - $2) || jsonb_build_object($3::text, record_data->$2),
			updated_at = now()
		WHERE table_id = $1 AND record_data ? $2`, tableID, oldKey, newKey)
	if err != nil {
		return fmt.Errorf("rename record key: %w", err)
	}
	return nil
}

// AddFieldToAllRecords backfills the default into every record missing the
// key. Records that already carry the key keep their value.
func (s *ColumnStore) AddFieldToAllRecords(ctx context.Context, sess *db.Session, tableID int64, name string, defaultValue any) error {
	if name == "" {
		return apperr.Validation("name", "required")
	}
	encoded, err := json.Marshal(defaultValue)
	if err != nil {
		return apperr.Validation("default_value", "not JSON-encodable")
	}
	_, err = sess.Exec(ctx, `
		UPDATE records
		SET record_data = jsonb_set(record_data, ARRAY[$2::text], $3::jsonb, true),
			updated_at = now()
		WHERE table_id = $1 AND NOT (record_data ? $2)`, tableID, name, string(encoded))
	if err != nil {
		return fmt.Errorf("backfill record field: %w", err)
	}
	return nil
}

var _ repository.ColumnRepository = (*ColumnStore)(nil)
