package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const tenantColumns = `id, company_code, company_name, schema_name, email, phone, address,
	is_active, subscription_plan, subscription_expires_at, max_users, storage_limit_mb,
	created_at, updated_at`

// TenantStore is the shared-schema tenant registry. Registry rows live in
// public.companies and are readable from any session because the shared
// schema stays on every search path.
type TenantStore struct {
	pool   *pgxpool.Pool
	router *db.Router
}

func NewTenantStore(pool *pgxpool.Pool, router *db.Router) *TenantStore {
	return &TenantStore{pool: pool, router: router}
}

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(
		&t.ID,
		&t.Code,
		&t.Name,
		&t.SchemaName,
		&t.Email,
		&t.Phone,
		&t.Address,
		&t.IsActive,
		&t.SubscriptionPlan,
		&t.SubscriptionExpiresAt,
		&t.MaxUsers,
		&t.StorageLimitMB,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TenantStore) GetByCode(ctx context.Context, code string) (*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM public.companies
		WHERE company_code = $1 AND is_active = true`

	t, err := scanTenant(s.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant by code: %w", err)
	}
	return t, nil
}

func (s *TenantStore) GetBySchema(ctx context.Context, schema string) (*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM public.companies
		WHERE schema_name = $1 AND is_active = true`

	t, err := scanTenant(s.pool.QueryRow(ctx, query, schema))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant by schema: %w", err)
	}
	return t, nil
}

func (s *TenantStore) ListActive(ctx context.Context) ([]models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM public.companies
		WHERE is_active = true
		ORDER BY company_name`

	return s.queryTenants(ctx, query)
}

func (s *TenantStore) List(ctx context.Context, page, limit int) ([]models.Tenant, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	query := `
		SELECT ` + tenantColumns + `
		FROM public.companies
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	tenants, err := s.queryTenants(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM public.companies`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}
	return tenants, total, nil
}

func (s *TenantStore) queryTenants(ctx context.Context, query string, args ...any) ([]models.Tenant, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]models.Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}

func (s *TenantStore) Update(ctx context.Context, id int64, upd repository.TenantUpdate) (*models.Tenant, error) {
	query := `
		UPDATE public.companies
		SET company_name = COALESCE($2, company_name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			address = COALESCE($5, address),
			is_active = COALESCE($6, is_active),
			subscription_plan = COALESCE($7, subscription_plan),
			max_users = COALESCE($8, max_users),
			storage_limit_mb = COALESCE($9, storage_limit_mb),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + tenantColumns

	t, err := scanTenant(s.pool.QueryRow(ctx, query, id,
		upd.Name, upd.Email, upd.Phone, upd.Address, upd.IsActive,
		upd.SubscriptionPlan, upd.MaxUsers, upd.StorageLimitMB))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("tenant")
		}
		if isUniqueViolation(err) {
			return nil, apperr.DuplicateEmail(stringOrEmpty(upd.Email))
		}
		return nil, fmt.Errorf("update tenant: %w", err)
	}
	return t, nil
}

// Deactivate soft-deletes. The schema and its data stay in place; the
// tenant just stops resolving for routing and login.
func (s *TenantStore) Deactivate(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE public.companies
		SET is_active = false, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("tenant")
	}
	return nil
}

// CheckLimits counts active users and used storage inside the tenant
// schema and reports them against the registry caps.
func (s *TenantStore) CheckLimits(ctx context.Context, schema string) (*models.TenantLimits, error) {
	tenant, err := s.GetBySchema(ctx, schema)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, apperr.NotFound("tenant")
	}

	sess, err := s.router.Acquire(ctx, schema)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	var limits models.TenantLimits
	limits.Users.Limit = tenant.MaxUsers
	limits.Storage.LimitMB = tenant.StorageLimitMB

	if err := sess.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_active = true`).Scan(&limits.Users.Current); err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}

	var usedBytes int64
	if err := sess.QueryRow(ctx, `SELECT COALESCE(SUM(file_size), 0) FROM files WHERE is_active = true`).Scan(&usedBytes); err != nil {
		return nil, fmt.Errorf("sum file storage: %w", err)
	}

	limits.Users.Available = limits.Users.Limit - limits.Users.Current
	limits.Storage.CurrentMB = (usedBytes + (1 << 20) - 1) / (1 << 20)
	limits.Storage.AvailableMB = limits.Storage.LimitMB - limits.Storage.CurrentMB
	return &limits, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
