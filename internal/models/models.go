package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one row of the shared registry in the public schema. Each
// tenant maps 1:1 to an isolated database schema; SchemaName is the
// DB-safe identifier of that schema, Code the human-facing one.
type Tenant struct {
	ID                    int64      `json:"id"`
	Code                  string     `json:"company_code"`
	Name                  string     `json:"company_name"`
	SchemaName            string     `json:"schema_name"`
	Email                 string     `json:"email"`
	Phone                 *string    `json:"phone,omitempty"`
	Address               *string    `json:"address,omitempty"`
	IsActive              bool       `json:"is_active"`
	SubscriptionPlan      *string    `json:"subscription_plan,omitempty"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	MaxUsers              int        `json:"max_users"`
	StorageLimitMB        int64      `json:"storage_limit_mb"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// TenantLimits reports current usage against the subscription caps.
type TenantLimits struct {
	Users struct {
		Current   int `json:"current"`
		Limit     int `json:"limit"`
		Available int `json:"available"`
	} `json:"users"`
	Storage struct {
		CurrentMB   int64 `json:"current_mb"`
		LimitMB     int64 `json:"limit_mb"`
		AvailableMB int64 `json:"available_mb"`
	} `json:"storage"`
}

// Module groups user-defined tables inside a tenant.
type Module struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IconRef     *string   `json:"icon_ref,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

// Table is a user-defined entity type. ModuleID is nil for join tables;
// OriginalTableID/RelatedTableID mark a machine-generated relation table
// and identify the pair it links.
type Table struct {
	ID              int64     `json:"id"`
	ModuleID        *int64    `json:"module_id,omitempty"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Position        int       `json:"position"`
	OriginalTableID *int64    `json:"original_table_id,omitempty"`
	RelatedTableID  *int64    `json:"related_table_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Column is a field definition on a Table. Validations is a structured
// rule set stored as JSONB, interpreted by callers.
type Column struct {
	ID                int64          `json:"id"`
	TableID           int64          `json:"table_id"`
	Name              string         `json:"name"`
	DataType          string         `json:"data_type"`
	IsRequired        bool           `json:"is_required"`
	IsForeignKey      bool           `json:"is_foreign_key"`
	ForeignTableID    *int64         `json:"foreign_table_id,omitempty"`
	ForeignColumnName *string        `json:"foreign_column_name,omitempty"`
	RelationType      *string        `json:"relation_type,omitempty"`
	Position          int            `json:"position"`
	Validations       map[string]any `json:"validations,omitempty"`
}

// Record is one instance of a Table. Data is an open attribute map
// (column name -> value); keys are expected to track the table's current
// columns but drift is tolerated, the store never enforces shape on write.
type Record struct {
	ID        int64          `json:"id"`
	TableID   int64          `json:"table_id"`
	Data      map[string]any `json:"record_data"`
	Position  int            `json:"position"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// Rights is one CRUD grant set. The zero value is the default-deny state.
type Rights struct {
	CanCreate bool `json:"can_create"`
	CanRead   bool `json:"can_read"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// Any reports whether at least one right is granted. All-false rows are
// never stored; they are equivalent to absence.
func (r Rights) Any() bool {
	return r.CanCreate || r.CanRead || r.CanUpdate || r.CanDelete
}

// Or folds another grant set in. Effective permission is the OR across all
// of a user's roles; there is no explicit deny.
func (r Rights) Or(other Rights) Rights {
	return Rights{
		CanCreate: r.CanCreate || other.CanCreate,
		CanRead:   r.CanRead || other.CanRead,
		CanUpdate: r.CanUpdate || other.CanUpdate,
		CanDelete: r.CanDelete || other.CanDelete,
	}
}

type Permission struct {
	RoleID  int64 `json:"role_id"`
	TableID int64 `json:"table_id"`
	Rights
}

// User is dual-homed: the same row (same ID, same credentials) exists in
// the public schema for cross-tenant login and in each tenant schema the
// user belongs to for tenant-local joins.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	IsBlocked    bool       `json:"is_blocked"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Roles        []string   `json:"roles,omitempty"`
}

// SyncResult reports the outcome of a dual-homed user write. PublicSynced
// is false when the shared-schema copy hit a tolerated uniqueness conflict.
type SyncResult struct {
	User         *User `json:"user"`
	PublicSynced bool  `json:"public_synced"`
}

// FileInfo is file metadata without the binary payload. Records hold weak
// {file_id} references that reads resolve into this shape.
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Mime        string    `json:"mime"`
	Hash        string    `json:"hash"`
	UploadedAt  time.Time `json:"uploaded_at"`
	DownloadURL string    `json:"download_url"`
	ViewURL     string    `json:"view_url"`
}

type Notification struct {
	ID        int64     `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      *string   `json:"link_to_module,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// View is a saved presentation of one table: which columns show, how they
// filter, and how records sort. SortBy/SortDirection is the single-column
// default; ViewSort rows express multi-column ordering.
type View struct {
	ID            int64     `json:"id"`
	TableID       int64     `json:"table_id"`
	Name          string    `json:"name"`
	SortBy        *string   `json:"sort_by,omitempty"`
	SortDirection string    `json:"sort_direction"`
	Position      int       `json:"position"`
	CreatedAt     time.Time `json:"created_at"`
}

// ViewColumn is one column's presentation inside a view: visibility,
// optional filter and display width.
type ViewColumn struct {
	ID              int64   `json:"id"`
	ViewID          int64   `json:"view_id"`
	ColumnID        int64   `json:"column_id"`
	Visible         bool    `json:"visible"`
	FilterCondition *string `json:"filter_condition,omitempty"`
	FilterValue     *string `json:"filter_value,omitempty"`
	Position        int     `json:"position"`
	WidthPx         *int    `json:"width_px,omitempty"`
}

// ViewSort is one level of a view's multi-column ordering, applied in
// position order.
type ViewSort struct {
	ID        int64  `json:"id"`
	ViewID    int64  `json:"view_id"`
	ColumnID  int64  `json:"column_id"`
	Direction string `json:"direction"`
	Position  int    `json:"position"`
}

// AuditEntry records one record mutation: the attribute map before and
// after, who did it and from where. NewData is nil for deletes.
type AuditEntry struct {
	ID         int64          `json:"id"`
	TableID    int64          `json:"table_id"`
	RecordID   int64          `json:"record_id"`
	ChangeType string         `json:"change_type"`
	OldData    map[string]any `json:"old_data,omitempty"`
	NewData    map[string]any `json:"new_data,omitempty"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TenantMembership is one entry of the login response: a tenant the
// authenticated email has an active user in, plus that user's roles there.
type TenantMembership struct {
	TenantID   int64     `json:"company_id"`
	TenantCode string    `json:"company_code"`
	TenantName string    `json:"company_name"`
	SchemaName string    `json:"schema_name"`
	UserID     uuid.UUID `json:"user_id"`
	Roles      []string  `json:"roles"`
}
