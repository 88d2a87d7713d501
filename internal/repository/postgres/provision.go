package postgres

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const (
	// Postgres truncates identifiers at 63 bytes; the base keeps headroom
	// for collision suffixes.
	maxSchemaBaseLen = 50
	maxSchemaLen     = 63

	maxSchemaAttempts = 200
	maxEmailAttempts  = 100
	maxCodeAttempts   = 20

	defaultAdminRole = "Admin"
)

// ProvisionStore creates and clones tenant schemas. Both operations run as
// one transaction against the shared pool: on any failure the schema, its
// tables and the registry row all roll back together.
type ProvisionStore struct {
	pool   *pgxpool.Pool
	creds  repository.CredentialService
	logger *zap.Logger
}

func NewProvisionStore(pool *pgxpool.Pool, creds repository.CredentialService, logger *zap.Logger) *ProvisionStore {
	return &ProvisionStore{pool: pool, creds: creds, logger: logger}
}

var nonSchemaChars = regexp.MustCompile(`[^a-z0-9_]+`)
var repeatedUnderscore = regexp.MustCompile(`_+`)

// deriveSchemaName turns a human tenant name into a DB-safe schema base:
// lower-cased, non-alphanumerics collapsed to underscores, forced to start
// with a letter, length-capped.
func deriveSchemaName(name string) string {
	s := strings.ToLower(name)
	s = nonSchemaChars.ReplaceAllString(s, "_")
	s = repeatedUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "c_schema"
	} else if s[0] < 'a' || s[0] > 'z' {
		s = "c_" + s
	}
	if len(s) > maxSchemaBaseLen {
		s = s[:maxSchemaBaseLen]
		s = strings.TrimRight(s, "_")
	}
	return s
}

// schemaCandidate appends a numeric collision suffix, keeping the result
// within the Postgres identifier limit.
func schemaCandidate(base string, attempt int) string {
	if attempt <= 1 {
		return base
	}
	candidate := fmt.Sprintf("%s_%d", base, attempt)
	if len(candidate) > maxSchemaLen {
		candidate = candidate[:maxSchemaLen]
	}
	return candidate
}

// emailCandidate derives the attempt-th unique-email candidate for a
// clone. Attempt 0 reuses the cleaned source address.
func emailCandidate(local, domain string, attempt int) string {
	if attempt == 0 {
		return local + "@" + domain
	}
	return fmt.Sprintf("%s_copy%d@%s", local, attempt, domain)
}

var nonEmailLocalChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// splitEmailBase normalizes a source email into (local, domain) for
// candidate derivation, falling back to a schema-based address when the
// source has no usable email.
func splitEmailBase(email, schemaName string) (string, string) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return schemaName, "example.local"
	}
	local := nonEmailLocalChars.ReplaceAllString(email[:at], "")
	if len(local) > 40 {
		local = local[:40]
	}
	if local == "" {
		local = "company"
	}
	return local, email[at+1:]
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newCompanyCode generates a human-facing tenant code. Uniqueness is
// checked against the registry by the caller.
func newCompanyCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	out := make([]byte, 6)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return "EMP-" + string(out)
}

func uniqueCompanyCode(ctx context.Context, tx pgx.Tx) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := newCompanyCode()
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM public.companies WHERE company_code = $1)`, code,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check company code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperr.Conflict("CODE_EXHAUSTED", "could not generate a unique company code")
}

func uniqueSchemaName(ctx context.Context, tx pgx.Tx, base string) (string, error) {
	for attempt := 1; attempt <= maxSchemaAttempts; attempt++ {
		candidate := schemaCandidate(base, attempt)
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, candidate,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check schema name: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperr.SchemaNameExhausted(base)
}

// Provision creates the tenant schema with its full table set, seeds the
// default admin role (and optionally the administrator user, mirrored to
// the shared schema), and registers the tenant under a fresh code.
func (s *ProvisionStore) Provision(ctx context.Context, in repository.ProvisionInput) (*models.Tenant, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("company_name", "required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, apperr.Validation("email", "required")
	}
	if (in.AdminName != "" || in.AdminEmail != "") && in.AdminPassword == "" {
		return nil, apperr.Validation("admin_password", "required when an administrator is given")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &apperr.ConnectionUnavailableError{Err: err}
	}
	defer tx.Rollback(ctx)

	var emailTaken bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM public.companies WHERE lower(email) = lower($1))`, in.Email,
	).Scan(&emailTaken)
	if err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "check email", Err: err}
	}
	if emailTaken {
		return nil, apperr.DuplicateEmail(in.Email)
	}

	schemaName, err := uniqueSchemaName(ctx, tx, deriveSchemaName(in.Name))
	if err != nil {
		return nil, err
	}
	code, err := uniqueCompanyCode(ctx, tx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA %q`, schemaName)); err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "create schema", Err: err}
	}
	// SET LOCAL scopes the path to this transaction, so the unqualified
	// DDL below lands in the new schema and the connection is clean after
	// commit or rollback.
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL search_path TO %q, public`, schemaName)); err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "set search_path", Err: err}
	}
	if err := createTenantTables(ctx, tx); err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "create tables", Err: err}
	}

	var adminRoleID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, 'Full access') RETURNING id`,
		defaultAdminRole,
	).Scan(&adminRoleID)
	if err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "seed admin role", Err: err}
	}

	if in.AdminEmail != "" && in.AdminPassword != "" {
		hash, err := s.creds.Hash(in.AdminPassword)
		if err != nil {
			return nil, &apperr.ProvisioningFailedError{Detail: "hash admin password", Err: err}
		}
		adminName := in.AdminName
		if adminName == "" {
			adminName = in.AdminEmail
		}
		adminID := uuid.New()
		_, err = tx.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`,
			adminID, adminName, in.AdminEmail, hash)
		if err != nil {
			return nil, &apperr.ProvisioningFailedError{Detail: "insert admin user", Err: err}
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, adminID, adminRoleID)
		if err != nil {
			return nil, &apperr.ProvisioningFailedError{Detail: "assign admin role", Err: err}
		}
		// Mirror into the shared schema so login-by-email finds the new
		// tenant. An existing row there means another tenant already
		// registered this email; the mirror is left as-is.
		_, err = tx.Exec(ctx,
			`INSERT INTO public.users (id, name, email, password_hash)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (email) DO NOTHING`,
			adminID, adminName, in.AdminEmail, hash)
		if err != nil {
			return nil, &apperr.ProvisioningFailedError{Detail: "mirror admin user", Err: err}
		}
	}

	query := `
		INSERT INTO public.companies (company_code, company_name, schema_name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + tenantColumns
	tenant, err := scanTenant(tx.QueryRow(ctx, query,
		code, strings.TrimSpace(in.Name), schemaName, strings.ToLower(strings.TrimSpace(in.Email)),
		in.Phone, in.Address))
	if err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "register tenant", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "commit", Err: err}
	}

	s.logger.Info("tenant provisioned",
		zap.String("code", tenant.Code),
		zap.String("schema", tenant.SchemaName),
	)
	return tenant, nil
}

// Clone copies every base table's structure and data from the source
// tenant's schema into a new schema, reseeds identity sequences, derives a
// unique contact email and registers the copy under a fresh code. The
// source row is locked FOR UPDATE so two concurrent clones of the same
// tenant cannot race to the same schema name.
func (s *ProvisionStore) Clone(ctx context.Context, sourceCode, newName string) (*models.Tenant, error) {
	if strings.TrimSpace(sourceCode) == "" {
		return nil, apperr.Validation("source_code", "required")
	}
	if strings.TrimSpace(newName) == "" {
		return nil, apperr.Validation("company_name", "required")
	}
	newName = strings.TrimSpace(newName)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &apperr.ConnectionUnavailableError{Err: err}
	}
	defer tx.Rollback(ctx)

	src, err := scanTenant(tx.QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM public.companies
		WHERE company_code = $1 AND is_active = true
		FOR UPDATE`, sourceCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.SourceNotFound(sourceCode)
		}
		return nil, fmt.Errorf("lock source tenant: %w", err)
	}

	schemaName, err := uniqueSchemaName(ctx, tx, deriveSchemaName(newName))
	if err != nil {
		return nil, err
	}
	code, err := uniqueCompanyCode(ctx, tx)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA %q`, schemaName)); err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "create schema", Err: err}
	}

	if err := s.copyTables(ctx, tx, src.SchemaName, schemaName); err != nil {
		return nil, err
	}
	if err := s.reseedIdentities(ctx, tx, schemaName); err != nil {
		return nil, err
	}

	newEmail, err := deriveUniqueEmail(ctx, tx, src.Email, schemaName)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO public.companies (company_code, company_name, schema_name, email, phone, address,
			subscription_plan, subscription_expires_at, max_users, storage_limit_mb)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + tenantColumns
	tenant, err := scanTenant(tx.QueryRow(ctx, query,
		code, newName, schemaName, newEmail, src.Phone, src.Address,
		src.SubscriptionPlan, src.SubscriptionExpiresAt, src.MaxUsers, src.StorageLimitMB))
	if err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "register clone", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &apperr.ProvisioningFailedError{Detail: "commit", Err: err}
	}

	s.logger.Info("tenant cloned",
		zap.String("source", sourceCode),
		zap.String("code", tenant.Code),
		zap.String("schema", tenant.SchemaName),
	)
	return tenant, nil
}

func (s *ProvisionStore) copyTables(ctx context.Context, tx pgx.Tx, fromSchema, toSchema string) error {
	rows, err := tx.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, fromSchema)
	if err != nil {
		return &apperr.ProvisioningFailedError{Detail: "list source tables", Err: err}
	}
	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return &apperr.ProvisioningFailedError{Detail: "scan table name", Err: err}
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &apperr.ProvisioningFailedError{Detail: "iterate source tables", Err: err}
	}

	for _, tbl := range tables {
		create := fmt.Sprintf(`CREATE TABLE %q.%q (LIKE %q.%q INCLUDING ALL)`, toSchema, tbl, fromSchema, tbl)
		if _, err := tx.Exec(ctx, create); err != nil {
			return &apperr.ProvisioningFailedError{Detail: "copy table structure " + tbl, Err: err}
		}
		copyData := fmt.Sprintf(`INSERT INTO %q.%q SELECT * FROM %q.%q`, toSchema, tbl, fromSchema, tbl)
		if _, err := tx.Exec(ctx, copyData); err != nil {
			return &apperr.ProvisioningFailedError{Detail: "copy table data " + tbl, Err: err}
		}
	}
	return nil
}

// reseedIdentities moves every identity sequence in the new schema past
// the copied rows, so the next insert does not collide with cloned ids.
func (s *ProvisionStore) reseedIdentities(ctx context.Context, tx pgx.Tx, schema string) error {
	rows, err := tx.Query(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND is_identity = 'YES'`, schema)
	if err != nil {
		return &apperr.ProvisioningFailedError{Detail: "list identity columns", Err: err}
	}
	type identity struct{ table, column string }
	identities := make([]identity, 0)
	for rows.Next() {
		var id identity
		if err := rows.Scan(&id.table, &id.column); err != nil {
			rows.Close()
			return &apperr.ProvisioningFailedError{Detail: "scan identity column", Err: err}
		}
		identities = append(identities, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &apperr.ProvisioningFailedError{Detail: "iterate identity columns", Err: err}
	}

	for _, id := range identities {
		query := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence($1, $2), GREATEST((SELECT COALESCE(MAX(%q), 1) FROM %q.%q), 1), true)`,
			id.column, schema, id.table)
		if _, err := tx.Exec(ctx, query, schema+"."+id.table, id.column); err != nil {
			return &apperr.ProvisioningFailedError{Detail: "reseed " + id.table + "." + id.column, Err: err}
		}
	}
	return nil
}

func deriveUniqueEmail(ctx context.Context, tx pgx.Tx, sourceEmail, schemaName string) (string, error) {
	local, domain := splitEmailBase(sourceEmail, schemaName)
	for attempt := 0; attempt <= maxEmailAttempts; attempt++ {
		candidate := emailCandidate(local, domain, attempt)
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM public.companies WHERE lower(email) = lower($1))`, candidate,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check email candidate: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperr.EmailExhausted(sourceEmail)
}

var _ repository.Provisioner = (*ProvisionStore)(nil)
var _ db.Querier = (pgx.Tx)(nil)
