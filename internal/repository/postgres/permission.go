package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

// PermissionStore resolves and maintains role-table CRUD grants. Effective
// rights are the OR across the user's active roles; a user with no roles or
// no grants gets the zero Rights value, never an error.
type PermissionStore struct{}

func NewPermissionStore() *PermissionStore { return &PermissionStore{} }

func (s *PermissionStore) GetUserRights(ctx context.Context, sess *db.Session, userID uuid.UUID, tableID int64) (models.Rights, error) {
	query := `
		SELECT p.can_create, p.can_read, p.can_update, p.can_delete
		FROM permissions p
		JOIN user_roles ur ON ur.role_id = p.role_id
		JOIN roles r ON r.id = p.role_id AND r.active
		WHERE ur.user_id = $1 AND p.table_id = $2`

	rows, err := sess.Query(ctx, query, userID, tableID)
	if err != nil {
		return models.Rights{}, fmt.Errorf("get user rights: %w", err)
	}
	defer rows.Close()

	var effective models.Rights
	for rows.Next() {
		var r models.Rights
		if err := rows.Scan(&r.CanCreate, &r.CanRead, &r.CanUpdate, &r.CanDelete); err != nil {
			return models.Rights{}, fmt.Errorf("scan rights: %w", err)
		}
		effective = effective.Or(r)
	}
	if err := rows.Err(); err != nil {
		return models.Rights{}, fmt.Errorf("iterate rights: %w", err)
	}
	return effective, nil
}

func (s *PermissionStore) GetUserRightsAllTables(ctx context.Context, sess *db.Session, userID uuid.UUID) (map[int64]models.Rights, error) {
	query := `
		SELECT p.table_id, p.can_create, p.can_read, p.can_update, p.can_delete
		FROM permissions p
		JOIN user_roles ur ON ur.role_id = p.role_id
		JOIN roles r ON r.id = p.role_id AND r.active
		WHERE ur.user_id = $1`

	rows, err := sess.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get user rights: %w", err)
	}
	defer rows.Close()

	effective := make(map[int64]models.Rights)
	for rows.Next() {
		var tableID int64
		var r models.Rights
		if err := rows.Scan(&tableID, &r.CanCreate, &r.CanRead, &r.CanUpdate, &r.CanDelete); err != nil {
			return nil, fmt.Errorf("scan rights: %w", err)
		}
		effective[tableID] = effective[tableID].Or(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rights: %w", err)
	}
	return effective, nil
}

// SetRoleTableRights upserts one grant row. An all-false grant deletes the
// row instead; absence and all-false are the same state.
func (s *PermissionStore) SetRoleTableRights(ctx context.Context, sess *db.Session, roleID, tableID int64, rights models.Rights) error {
	if !rights.Any() {
		return s.DeleteRoleTableRights(ctx, sess, roleID, tableID)
	}
	_, err := sess.Exec(ctx, `
		INSERT INTO permissions (role_id, table_id, can_create, can_read, can_update, can_delete)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (role_id, table_id) DO UPDATE
		SET can_create = EXCLUDED.can_create,
			can_read = EXCLUDED.can_read,
			can_update = EXCLUDED.can_update,
			can_delete = EXCLUDED.can_delete`,
		roleID, tableID, rights.CanCreate, rights.CanRead, rights.CanUpdate, rights.CanDelete)
	if err != nil {
		return fmt.Errorf("set role rights: %w", err)
	}
	return nil
}

func (s *PermissionStore) GetRoleTableRights(ctx context.Context, sess *db.Session, roleID, tableID int64) (models.Rights, error) {
	var r models.Rights
	err := sess.QueryRow(ctx, `
		SELECT can_create, can_read, can_update, can_delete
		FROM permissions
		WHERE role_id = $1 AND table_id = $2`, roleID, tableID,
	).Scan(&r.CanCreate, &r.CanRead, &r.CanUpdate, &r.CanDelete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Rights{}, nil
		}
		return models.Rights{}, fmt.Errorf("get role rights: %w", err)
	}
	return r, nil
}

func (s *PermissionStore) ListByRole(ctx context.Context, sess *db.Session, roleID int64) ([]models.Permission, error) {
	rows, err := sess.Query(ctx, `
		SELECT role_id, table_id, can_create, can_read, can_update, can_delete
		FROM permissions
		WHERE role_id = $1
		ORDER BY table_id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]models.Permission, 0)
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.RoleID, &p.TableID, &p.CanCreate, &p.CanRead, &p.CanUpdate, &p.CanDelete); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return perms, nil
}

// BulkUpdateRole replaces all grants of a role in one transaction:
// delete everything, re-insert what is granted. All-false entries are
// skipped, so clearing every checkbox ends with no rows for the role.
func (s *PermissionStore) BulkUpdateRole(ctx context.Context, sess *db.Session, roleID int64, rights map[int64]models.Rights) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk update: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}

	for tableID, r := range rights {
		if !r.Any() {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO permissions (role_id, table_id, can_create, can_read, can_update, can_delete)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			roleID, tableID, r.CanCreate, r.CanRead, r.CanUpdate, r.CanDelete)
		if err != nil {
			return fmt.Errorf("insert role permission: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PermissionStore) DeleteRoleTableRights(ctx context.Context, sess *db.Session, roleID, tableID int64) error {
	if _, err := sess.Exec(ctx,
		`DELETE FROM permissions WHERE role_id = $1 AND table_id = $2`, roleID, tableID); err != nil {
		return fmt.Errorf("delete role rights: %w", err)
	}
	return nil
}

func (s *PermissionStore) DeleteAllByRole(ctx context.Context, sess *db.Session, roleID int64) error {
	if _, err := sess.Exec(ctx, `DELETE FROM permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("delete role permissions: %w", err)
	}
	return nil
}

func (s *PermissionStore) DeleteAllByTable(ctx context.Context, sess *db.Session, tableID int64) error {
	if _, err := sess.Exec(ctx, `DELETE FROM permissions WHERE table_id = $1`, tableID); err != nil {
		return fmt.Errorf("delete table permissions: %w", err)
	}
	return nil
}

var _ repository.PermissionRepository = (*PermissionStore)(nil)
