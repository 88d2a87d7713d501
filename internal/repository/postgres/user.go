package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const userColumns = `id, name, email, password_hash, is_active, is_blocked,
	avatar_url, last_login, created_at`

// UserStore keeps the dual-homed identity consistent. Every mutation runs
// as one transaction: the tenant-schema row is written first, then the
// shared-schema mirror inside a savepoint. A uniqueness conflict on the
// mirror is tolerated and reported as PublicSynced false; any other mirror
// failure rolls back the whole write.
type UserStore struct {
	router *db.Router
	creds  repository.CredentialService
	logger *zap.Logger
}

func NewUserStore(router *db.Router, creds repository.CredentialService, logger *zap.Logger) *UserStore {
	return &UserStore{router: router, creds: creds, logger: logger}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsBlocked,
		&u.AvatarURL, &u.LastLogin, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// mirrorRequired reports whether a write needs a separate shared-schema
// mirror statement. A session bound to the shared schema writes the mirror
// row directly, so running mirrorWrite there would collide with the write
// it is meant to mirror.
func mirrorRequired(schema string) bool {
	return schema != db.SharedSchema
}

// dualWrite runs the tenant-schema mutation and its shared-schema mirror in
// one transaction. The mirror runs inside a savepoint so a tolerated
// uniqueness conflict rolls back only the mirror statement.
func (s *UserStore) dualWrite(
	ctx context.Context,
	schema string,
	tenantWrite func(tx pgx.Tx) (*models.User, error),
	mirrorWrite func(tx pgx.Tx, u *models.User) error,
) (*models.SyncResult, error) {
	sess, err := s.router.Acquire(ctx, schema)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	tx, err := sess.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin user write: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := tenantWrite(tx)
	if err != nil {
		return nil, err
	}

	synced := true
	if mirrorRequired(schema) {
		// pgx nests Begin as a savepoint when a transaction is already open.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin mirror savepoint: %w", err)
		}
		if err := mirrorWrite(sp, u); err != nil {
			sp.Rollback(ctx)
			if !isUniqueViolation(err) {
				return nil, fmt.Errorf("mirror user to shared schema: %w", err)
			}
			synced = false
			s.logger.Warn("shared-schema user mirror conflicted",
				zap.String("schema", schema),
				zap.String("user_id", u.ID.String()),
			)
		} else if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit mirror savepoint: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit user write: %w", err)
	}
	return &models.SyncResult{User: u, PublicSynced: synced}, nil
}

func (s *UserStore) Create(ctx context.Context, schema string, in repository.UserInput) (*models.SyncResult, error) {
	if in.Name == "" {
		return nil, apperr.Validation("name", "required")
	}
	if in.Email == "" {
		return nil, apperr.Validation("email", "required")
	}
	if in.Password == "" {
		return nil, apperr.Validation("password", "required")
	}
	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id := uuid.New()

	return s.dualWrite(ctx, schema,
		func(tx pgx.Tx) (*models.User, error) {
			u, err := scanUser(tx.QueryRow(ctx, `
				INSERT INTO users (id, name, email, password_hash, avatar_url)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING `+userColumns,
				id, in.Name, in.Email, hash, in.AvatarURL))
			if err != nil {
				if isUniqueViolation(err) {
					return nil, apperr.DuplicateEmail(in.Email)
				}
				return nil, fmt.Errorf("create user: %w", err)
			}
			return u, nil
		},
		func(tx pgx.Tx, u *models.User) error {
			_, err := tx.Exec(ctx, `
				INSERT INTO public.users (id, name, email, password_hash, avatar_url)
				VALUES ($1, $2, $3, $4, $5)`,
				u.ID, u.Name, u.Email, u.PasswordHash, u.AvatarURL)
			return err
		},
	)
}

func (s *UserStore) Rename(ctx context.Context, schema string, id uuid.UUID, name, email string) (*models.SyncResult, error) {
	if name == "" {
		return nil, apperr.Validation("name", "required")
	}
	if email == "" {
		return nil, apperr.Validation("email", "required")
	}
	return s.dualWrite(ctx, schema,
		func(tx pgx.Tx) (*models.User, error) {
			u, err := scanUser(tx.QueryRow(ctx, `
				UPDATE users SET name = $2, email = $3
				WHERE id = $1
				RETURNING `+userColumns, id, name, email))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperr.NotFound("user")
				}
				if isUniqueViolation(err) {
					return nil, apperr.DuplicateEmail(email)
				}
				return nil, fmt.Errorf("rename user: %w", err)
			}
			return u, nil
		},
		func(tx pgx.Tx, u *models.User) error {
			_, err := tx.Exec(ctx,
				`UPDATE public.users SET name = $2, email = $3 WHERE id = $1`,
				u.ID, u.Name, u.Email)
			return err
		},
	)
}

func (s *UserStore) ChangePassword(ctx context.Context, schema string, id uuid.UUID, passwordHash string) (*models.SyncResult, error) {
	if passwordHash == "" {
		return nil, apperr.Validation("password_hash", "required")
	}
	return s.dualWrite(ctx, schema,
		func(tx pgx.Tx) (*models.User, error) {
			u, err := scanUser(tx.QueryRow(ctx, `
				UPDATE users SET password_hash = $2
				WHERE id = $1
				RETURNING `+userColumns, id, passwordHash))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperr.NotFound("user")
				}
				return nil, fmt.Errorf("change password: %w", err)
			}
			return u, nil
		},
		func(tx pgx.Tx, u *models.User) error {
			_, err := tx.Exec(ctx,
				`UPDATE public.users SET password_hash = $2 WHERE id = $1`,
				u.ID, u.PasswordHash)
			return err
		},
	)
}

func (s *UserStore) SetBlocked(ctx context.Context, schema string, id uuid.UUID, blocked bool) (*models.SyncResult, error) {
	return s.setFlag(ctx, schema, id, "is_blocked", blocked)
}

func (s *UserStore) SetActive(ctx context.Context, schema string, id uuid.UUID, active bool) (*models.SyncResult, error) {
	return s.setFlag(ctx, schema, id, "is_active", active)
}

func (s *UserStore) setFlag(ctx context.Context, schema string, id uuid.UUID, column string, value bool) (*models.SyncResult, error) {
	tenantQuery := fmt.Sprintf(`UPDATE users SET %s = $2 WHERE id = $1 RETURNING `, column) + userColumns
	mirrorQuery := fmt.Sprintf(`UPDATE public.users SET %s = $2 WHERE id = $1`, column)

	return s.dualWrite(ctx, schema,
		func(tx pgx.Tx) (*models.User, error) {
			u, err := scanUser(tx.QueryRow(ctx, tenantQuery, id, value))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperr.NotFound("user")
				}
				return nil, fmt.Errorf("update user flag: %w", err)
			}
			return u, nil
		},
		func(tx pgx.Tx, u *models.User) error {
			_, err := tx.Exec(ctx, mirrorQuery, u.ID, value)
			return err
		},
	)
}

func (s *UserStore) SetAvatar(ctx context.Context, schema string, id uuid.UUID, avatarURL string) (*models.SyncResult, error) {
	return s.dualWrite(ctx, schema,
		func(tx pgx.Tx) (*models.User, error) {
			u, err := scanUser(tx.QueryRow(ctx, `
				UPDATE users SET avatar_url = $2
				WHERE id = $1
				RETURNING `+userColumns, id, avatarURL))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, apperr.NotFound("user")
				}
				return nil, fmt.Errorf("set avatar: %w", err)
			}
			return u, nil
		},
		func(tx pgx.Tx, u *models.User) error {
			_, err := tx.Exec(ctx,
				`UPDATE public.users SET avatar_url = $2 WHERE id = $1`,
				u.ID, avatarURL)
			return err
		},
	)
}

func (s *UserStore) List(ctx context.Context, sess *db.Session) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY name`

	rows, err := sess.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (s *UserStore) GetByID(ctx context.Context, sess *db.Session, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(sess.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail looks the user up in the session's schema with active role
// names attached. Returns nil, nil when absent.
func (s *UserStore) GetByEmail(ctx context.Context, sess *db.Session, email string) (*models.User, error) {
	u, err := scanUser(sess.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	rows, err := sess.Query(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.active
		ORDER BY r.name`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list user role names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		u.Roles = append(u.Roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role names: %w", err)
	}
	return u, nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, sess *db.Session, id uuid.UUID) error {
	if _, err := sess.Exec(ctx, `UPDATE users SET last_login = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

var _ repository.UserRepository = (*UserStore)(nil)
