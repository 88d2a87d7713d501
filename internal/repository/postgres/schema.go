package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/gridbase/internal/db"
)

// sharedSchemaDDL holds the registry tables in the public schema: the
// tenant registry plus the global user mirror used for cross-tenant login.
const sharedSchemaDDL = `
CREATE TABLE IF NOT EXISTS public.companies (
	id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	company_code text NOT NULL UNIQUE,
	company_name text NOT NULL,
	schema_name text NOT NULL UNIQUE,
	email text NOT NULL UNIQUE,
	phone text,
	address text,
	is_active boolean NOT NULL DEFAULT true,
	subscription_plan text,
	subscription_expires_at timestamptz,
	max_users integer NOT NULL DEFAULT 25,
	storage_limit_mb bigint NOT NULL DEFAULT 1024,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS public.users (
	id uuid PRIMARY KEY,
	name text NOT NULL,
	email text NOT NULL UNIQUE,
	password_hash text NOT NULL,
	is_active boolean NOT NULL DEFAULT true,
	is_blocked boolean NOT NULL DEFAULT false,
	avatar_url text,
	last_login timestamptz,
	created_at timestamptz NOT NULL DEFAULT now()
);
`

// tenantTableDDL is the full table set of one tenant schema. It is
// executed with the transaction's search_path pointing at the new schema,
// so the statements stay unqualified. Identity columns are BY DEFAULT so
// cloning can copy ids verbatim and reseed the sequences afterwards.
var tenantTableDDL = []string{
	`CREATE TABLE modules (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name text NOT NULL,
		description text NOT NULL DEFAULT '',
		icon_ref text,
		position_num integer NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE tables (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		module_id bigint REFERENCES modules(id),
		name text NOT NULL,
		description text NOT NULL DEFAULT '',
		position_num integer NOT NULL DEFAULT 0,
		original_table_id bigint REFERENCES tables(id),
		related_table_id bigint REFERENCES tables(id),
		created_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (module_id, name),
		UNIQUE (original_table_id, related_table_id)
	)`,
	`CREATE TABLE columns (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		table_id bigint NOT NULL REFERENCES tables(id) ON DELETE CASCADE,
		name text NOT NULL,
		data_type text NOT NULL,
		is_required boolean NOT NULL DEFAULT false,
		is_foreign_key boolean NOT NULL DEFAULT false,
		foreign_table_id bigint REFERENCES tables(id),
		foreign_column_name text,
		relation_type text,
		position_num integer NOT NULL DEFAULT 0,
		validations jsonb,
		UNIQUE (table_id, name)
	)`,
	`CREATE TABLE records (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		table_id bigint NOT NULL REFERENCES tables(id) ON DELETE CASCADE,
		record_data jsonb NOT NULL DEFAULT '{}'::jsonb,
		position_num integer NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX records_table_position_idx ON records (table_id, position_num)`,
	`CREATE INDEX records_data_idx ON records USING gin (record_data)`,
	`CREATE TABLE roles (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name text NOT NULL,
		description text NOT NULL DEFAULT '',
		active boolean NOT NULL DEFAULT true
	)`,
	`CREATE UNIQUE INDEX roles_active_name_idx ON roles (name) WHERE active`,
	`CREATE TABLE permissions (
		role_id bigint NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		table_id bigint NOT NULL REFERENCES tables(id) ON DELETE CASCADE,
		can_create boolean NOT NULL DEFAULT false,
		can_read boolean NOT NULL DEFAULT false,
		can_update boolean NOT NULL DEFAULT false,
		can_delete boolean NOT NULL DEFAULT false,
		PRIMARY KEY (role_id, table_id)
	)`,
	`CREATE TABLE users (
		id uuid PRIMARY KEY,
		name text NOT NULL,
		email text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		is_active boolean NOT NULL DEFAULT true,
		is_blocked boolean NOT NULL DEFAULT false,
		avatar_url text,
		last_login timestamptz,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE user_roles (
		user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id bigint NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, role_id)
	)`,
	`CREATE TABLE record_assignments (
		record_id bigint NOT NULL REFERENCES records(id) ON DELETE CASCADE,
		user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (record_id, user_id)
	)`,
	`CREATE TABLE files (
		id uuid PRIMARY KEY,
		original_name text NOT NULL,
		file_data bytea NOT NULL,
		file_size bigint NOT NULL,
		mime_type text NOT NULL,
		file_hash text NOT NULL,
		uploaded_by uuid REFERENCES users(id),
		uploaded_at timestamptz NOT NULL DEFAULT now(),
		is_active boolean NOT NULL DEFAULT true
	)`,
	`CREATE TABLE notifications (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		user_id uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title text NOT NULL,
		message text NOT NULL DEFAULT '',
		link_to_module text,
		is_read boolean NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE views (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		table_id bigint NOT NULL REFERENCES tables(id) ON DELETE CASCADE,
		name text NOT NULL,
		sort_by text,
		sort_direction text NOT NULL DEFAULT 'asc',
		position_num integer NOT NULL DEFAULT 0,
		created_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (table_id, name)
	)`,
	`CREATE TABLE view_columns (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		view_id bigint NOT NULL REFERENCES views(id) ON DELETE CASCADE,
		column_id bigint NOT NULL REFERENCES columns(id) ON DELETE CASCADE,
		visible boolean NOT NULL DEFAULT true,
		filter_condition text,
		filter_value text,
		position_num integer NOT NULL DEFAULT 0,
		width_px integer,
		UNIQUE (view_id, column_id)
	)`,
	`CREATE TABLE view_sorts (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		view_id bigint NOT NULL REFERENCES views(id) ON DELETE CASCADE,
		column_id bigint NOT NULL REFERENCES columns(id) ON DELETE CASCADE,
		direction text NOT NULL DEFAULT 'asc',
		position_num integer NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE audit_log (
		id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		table_id bigint,
		record_id bigint,
		change_type text NOT NULL,
		old_data jsonb,
		new_data jsonb,
		actor_id uuid,
		ip text,
		user_agent text,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// EnsureSharedSchema creates the registry tables if missing. Runs once at
// startup, before the server accepts traffic.
func EnsureSharedSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, sharedSchemaDDL); err != nil {
		return fmt.Errorf("ensure shared schema: %w", err)
	}
	return nil
}

// createTenantTables lays down the full table set inside a transaction
// whose search_path already points at the new schema.
func createTenantTables(ctx context.Context, q db.Querier) error {
	for _, stmt := range tenantTableDDL {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tenant table: %w", err)
		}
	}
	return nil
}
