package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const roleColumns = `id, name, description, active`

// RoleStore manages tenant roles and their user assignments.
type RoleStore struct{}

func NewRoleStore() *RoleStore { return &RoleStore{} }

func scanRole(row pgx.Row) (*models.Role, error) {
	var r models.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Active)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RoleStore) Create(ctx context.Context, sess *db.Session, name, description string) (*models.Role, error) {
	if name == "" {
		return nil, apperr.Validation("name", "required")
	}
	query := `
		INSERT INTO roles (name, description)
		VALUES ($1, $2)
		RETURNING ` + roleColumns

	r, err := scanRole(sess.QueryRow(ctx, query, name, description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_ROLE_NAME", fmt.Sprintf("role %q already exists", name))
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	return r, nil
}

func (s *RoleStore) List(ctx context.Context, sess *db.Session) ([]models.Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE active
		ORDER BY name`

	rows, err := sess.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

func (s *RoleStore) GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Role, error) {
	r, err := scanRole(sess.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("role")
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return r, nil
}

func (s *RoleStore) Update(ctx context.Context, sess *db.Session, id int64, name, description string) (*models.Role, error) {
	if name == "" {
		return nil, apperr.Validation("name", "required")
	}
	query := `
		UPDATE roles
		SET name = $2, description = $3
		WHERE id = $1 AND active
		RETURNING ` + roleColumns

	r, err := scanRole(sess.QueryRow(ctx, query, id, name, description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("role")
		}
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("DUPLICATE_ROLE_NAME", fmt.Sprintf("role %q already exists", name))
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	return r, nil
}

// Deactivate soft-deletes the role and removes its permission rows in the
// same transaction, so no grant ever references a deactivated role.
func (s *RoleStore) Deactivate(ctx context.Context, sess *db.Session, id int64) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin deactivate role: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE roles SET active = false WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("deactivate role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("role")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE role_id = $1`, id); err != nil {
		return fmt.Errorf("delete role permissions: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *RoleStore) AssignToUser(ctx context.Context, sess *db.Session, userID uuid.UUID, roleID int64) error {
	_, err := sess.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (s *RoleStore) RemoveFromUser(ctx context.Context, sess *db.Session, userID uuid.UUID, roleID int64) error {
	if _, err := sess.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

func (s *RoleStore) ListByUser(ctx context.Context, sess *db.Session, userID uuid.UUID) ([]models.Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.active
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.active
		ORDER BY r.name`

	rows, err := sess.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

var _ repository.RoleRepository = (*RoleStore)(nil)
