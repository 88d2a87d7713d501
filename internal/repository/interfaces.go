package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
)

// Tenant-scoped repositories take a *db.Session already bound to the
// tenant's schema. The session comes from the request middleware, so every
// operation within one request shares a single connection and can join a
// single transaction. Registry-level operations (tenants, provisioning)
// work against the shared schema and take only a context.

// Actor identifies who performs a mutation, for audit attribution.
type Actor struct {
	UserID    uuid.UUID
	IP        string
	UserAgent string
}

// ProvisionInput is everything needed to create a tenant. Admin fields are
// optional; when present an administrator user is created inside the new
// schema and mirrored to the shared schema.
type ProvisionInput struct {
	Name          string
	Email         string
	Phone         *string
	Address       *string
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// TenantUpdate carries a partial registry update; nil fields keep the
// current value.
type TenantUpdate struct {
	Name             *string
	Email            *string
	Phone            *string
	Address          *string
	IsActive         *bool
	SubscriptionPlan *string
	MaxUsers         *int
	StorageLimitMB   *int64
}

// TenantRepository is the shared-schema tenant registry.
type TenantRepository interface {
	// GetByCode returns an active tenant by its human-facing code.
	// Returns nil, nil if absent or inactive.
	GetByCode(ctx context.Context, code string) (*models.Tenant, error)

	// GetBySchema returns an active tenant by schema identifier.
	GetBySchema(ctx context.Context, schema string) (*models.Tenant, error)

	// ListActive returns the basic registry rows of all active tenants.
	ListActive(ctx context.Context) ([]models.Tenant, error)

	// List pages through every tenant, active or not. Returns the page and
	// the total row count.
	List(ctx context.Context, page, limit int) ([]models.Tenant, int, error)

	Update(ctx context.Context, id int64, upd TenantUpdate) (*models.Tenant, error)

	// Deactivate soft-deletes: the schema and its data stay in place.
	Deactivate(ctx context.Context, id int64) error

	// CheckLimits reports current user and storage usage against the
	// tenant's subscription caps.
	CheckLimits(ctx context.Context, schema string) (*models.TenantLimits, error)
}

// Provisioner creates and clones tenant schemas. Both operations are
// all-or-nothing: on any failure no schema, table or registry row remains.
type Provisioner interface {
	Provision(ctx context.Context, in ProvisionInput) (*models.Tenant, error)

	// Clone copies every base table (structure and data) of the source
	// tenant's schema into a freshly named schema and registers the copy
	// under a new code and a derived unique email.
	Clone(ctx context.Context, sourceCode, newName string) (*models.Tenant, error)
}

type ModuleInput struct {
	Name        string
	Description string
	IconRef     *string
	Position    int
}

type ModuleRepository interface {
	Create(ctx context.Context, sess *db.Session, in ModuleInput) (*models.Module, error)
	List(ctx context.Context, sess *db.Session) ([]models.Module, error)
	GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Module, error)
	Update(ctx context.Context, sess *db.Session, id int64, in ModuleInput) (*models.Module, error)
	UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error

	// Delete fails with HasDependentData when the module still contains
	// tables, unless cascade removes them (and their columns, records and
	// permissions) first.
	Delete(ctx context.Context, sess *db.Session, id int64, cascade bool) error
}

type TableInput struct {
	Name        string
	Description string
	ModuleID    *int64
	Position    int
}

// JoinTableStatus tells whether GetOrCreateJoinTable created the relation
// table or found an existing one.
type JoinTableStatus string

const (
	JoinTableCreated JoinTableStatus = "created"
	JoinTableFound   JoinTableStatus = "found"
)

type TableRepository interface {
	// Create inserts the table and its mandatory default "Name" text
	// column in one transaction.
	Create(ctx context.Context, sess *db.Session, in TableInput) (*models.Table, error)
	List(ctx context.Context, sess *db.Session) ([]models.Table, error)
	ListByModule(ctx context.Context, sess *db.Session, moduleID int64) ([]models.Table, error)
	GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Table, error)
	Update(ctx context.Context, sess *db.Session, id int64, name, description string) (*models.Table, error)
	UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error
	Delete(ctx context.Context, sess *db.Session, id int64, cascade bool) error
	ExistsNameInModule(ctx context.Context, sess *db.Session, moduleID int64, name string) (bool, error)

	// GetOrCreateJoinTable finds or creates the relation table for the
	// (a, b) pair. Idempotent under concurrency: two simultaneous calls
	// yield one table. On create, read permission is seeded for every
	// active role.
	GetOrCreateJoinTable(ctx context.Context, sess *db.Session, tableAID, tableBID int64, linkColumn string) (*models.Table, JoinTableStatus, error)
}

type ColumnInput struct {
	TableID           int64
	Name              string
	DataType          string
	IsRequired        bool
	IsForeignKey      bool
	ForeignTableID    *int64
	ForeignColumnName *string
	RelationType      *string
	Position          int
	Validations       map[string]any
}

type ColumnRepository interface {
	Create(ctx context.Context, sess *db.Session, in ColumnInput) (*models.Column, error)
	ListByTable(ctx context.Context, sess *db.Session, tableID int64) ([]models.Column, error)
	GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Column, error)
	Update(ctx context.Context, sess *db.Session, id int64, in ColumnInput) (*models.Column, error)
	UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error

	// Delete fails with HasDependentData when records still carry non-null
	// values under the column's key, unless force is set.
	Delete(ctx context.Context, sess *db.Session, id int64, force bool) error
	ExistsNameInTable(ctx context.Context, sess *db.Session, tableID int64, name string) (bool, error)
	HasRecordData(ctx context.Context, sess *db.Session, id int64) (bool, error)

	// RenameRecordKey rewrites the attribute key in every record of the
	// table. Callers invoke it when a column's storage key changes; it is
	// not automatic on Update.
	RenameRecordKey(ctx context.Context, sess *db.Session, tableID int64, oldKey, newKey string) error

	// AddFieldToAllRecords backfills a default value into every record
	// lacking the key. Records that already have it are left alone.
	AddFieldToAllRecords(ctx context.Context, sess *db.Session, tableID int64, name string, defaultValue any) error
}

type ViewInput struct {
	TableID       int64
	Name          string
	SortBy        *string
	SortDirection string
	Position      int
}

type ViewColumnInput struct {
	ViewID          int64
	ColumnID        int64
	Visible         bool
	FilterCondition *string
	FilterValue     *string
	Position        int
	WidthPx         *int
}

type ViewSortInput struct {
	ViewID    int64
	ColumnID  int64
	Direction string
}

// ViewRepository manages saved table presentations: the view itself, its
// per-column display settings and its multi-column sort order. View names
// are unique per table; sort directions are limited to asc/desc.
type ViewRepository interface {
	Create(ctx context.Context, sess *db.Session, in ViewInput) (*models.View, error)
	ListByTable(ctx context.Context, sess *db.Session, tableID int64) ([]models.View, error)
	GetByID(ctx context.Context, sess *db.Session, id int64) (*models.View, error)
	Update(ctx context.Context, sess *db.Session, id int64, in ViewInput) (*models.View, error)
	UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error
	Delete(ctx context.Context, sess *db.Session, id int64) error

	AddColumn(ctx context.Context, sess *db.Session, in ViewColumnInput) (*models.ViewColumn, error)
	ListColumns(ctx context.Context, sess *db.Session, viewID int64) ([]models.ViewColumn, error)
	UpdateColumn(ctx context.Context, sess *db.Session, id int64, in ViewColumnInput) (*models.ViewColumn, error)
	UpdateColumnPosition(ctx context.Context, sess *db.Session, id int64, position int) error
	RemoveColumn(ctx context.Context, sess *db.Session, id int64) error

	AddSort(ctx context.Context, sess *db.Session, in ViewSortInput) (*models.ViewSort, error)
	ListSorts(ctx context.Context, sess *db.Session, viewID int64) ([]models.ViewSort, error)
	UpdateSort(ctx context.Context, sess *db.Session, id int64, in ViewSortInput) (*models.ViewSort, error)
	UpdateSortPosition(ctx context.Context, sess *db.Session, id int64, position int) error
	RemoveSort(ctx context.Context, sess *db.Session, id int64) error
}

type RecordRepository interface {
	Create(ctx context.Context, sess *db.Session, actor Actor, tableID int64, data map[string]any, position int) (*models.Record, error)

	// Reads expand file references: any value shaped {file_id: ...} (or an
	// array of such) is enriched with resolved file metadata. Unresolved
	// ids are returned as stored.
	GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Record, error)
	ListByTable(ctx context.Context, sess *db.Session, tableID int64) ([]models.Record, error)
	SearchByValue(ctx context.Context, sess *db.Session, tableID int64, text string) ([]models.Record, error)

	Update(ctx context.Context, sess *db.Session, actor Actor, id int64, data map[string]any, position *int) (*models.Record, error)
	Delete(ctx context.Context, sess *db.Session, actor Actor, id int64) error
	UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error
	CountByTable(ctx context.Context, sess *db.Session, tableID int64) (int64, error)
	ExistsField(ctx context.Context, sess *db.Session, tableID int64, field string) (bool, error)
}

type PermissionRepository interface {
	// GetUserRights resolves the effective CRUD rights of a user on a
	// table: the OR across all the user's active roles. No roles or no
	// grants yields the zero (all-false) Rights, not an error.
	GetUserRights(ctx context.Context, sess *db.Session, userID uuid.UUID, tableID int64) (models.Rights, error)
	GetUserRightsAllTables(ctx context.Context, sess *db.Session, userID uuid.UUID) (map[int64]models.Rights, error)

	SetRoleTableRights(ctx context.Context, sess *db.Session, roleID, tableID int64, rights models.Rights) error
	GetRoleTableRights(ctx context.Context, sess *db.Session, roleID, tableID int64) (models.Rights, error)
	ListByRole(ctx context.Context, sess *db.Session, roleID int64) ([]models.Permission, error)

	// BulkUpdateRole transactionally replaces all grants of a role.
	// All-false entries are dropped, not stored.
	BulkUpdateRole(ctx context.Context, sess *db.Session, roleID int64, rights map[int64]models.Rights) error

	DeleteRoleTableRights(ctx context.Context, sess *db.Session, roleID, tableID int64) error
	DeleteAllByRole(ctx context.Context, sess *db.Session, roleID int64) error
	DeleteAllByTable(ctx context.Context, sess *db.Session, tableID int64) error
}

type RoleRepository interface {
	Create(ctx context.Context, sess *db.Session, name, description string) (*models.Role, error)
	List(ctx context.Context, sess *db.Session) ([]models.Role, error)
	GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Role, error)
	Update(ctx context.Context, sess *db.Session, id int64, name, description string) (*models.Role, error)

	// Deactivate soft-deletes the role and removes its permission rows in
	// the same transaction, so no grant ever references a removed role.
	Deactivate(ctx context.Context, sess *db.Session, id int64) error

	AssignToUser(ctx context.Context, sess *db.Session, userID uuid.UUID, roleID int64) error
	RemoveFromUser(ctx context.Context, sess *db.Session, userID uuid.UUID, roleID int64) error
	ListByUser(ctx context.Context, sess *db.Session, userID uuid.UUID) ([]models.Role, error)
}

type UserInput struct {
	Name      string
	Email     string
	Password  string
	AvatarURL *string
}

// UserRepository keeps the dual-homed identity consistent: every mutation
// writes the tenant schema and the shared schema as one logical operation.
// A uniqueness conflict on the shared copy is tolerated (PublicSynced
// false); any other shared-schema failure aborts the whole write.
type UserRepository interface {
	Create(ctx context.Context, schema string, in UserInput) (*models.SyncResult, error)
	Rename(ctx context.Context, schema string, id uuid.UUID, name, email string) (*models.SyncResult, error)
	ChangePassword(ctx context.Context, schema string, id uuid.UUID, passwordHash string) (*models.SyncResult, error)
	SetBlocked(ctx context.Context, schema string, id uuid.UUID, blocked bool) (*models.SyncResult, error)
	SetActive(ctx context.Context, schema string, id uuid.UUID, active bool) (*models.SyncResult, error)
	SetAvatar(ctx context.Context, schema string, id uuid.UUID, avatarURL string) (*models.SyncResult, error)

	List(ctx context.Context, sess *db.Session) ([]models.User, error)
	GetByID(ctx context.Context, sess *db.Session, id uuid.UUID) (*models.User, error)

	// GetByEmail looks the user up in the session's schema, with role
	// names attached. Returns nil, nil when absent.
	GetByEmail(ctx context.Context, sess *db.Session, email string) (*models.User, error)

	TouchLastLogin(ctx context.Context, sess *db.Session, id uuid.UUID) error
}

// CredentialService hashes and checks passwords. The hash is opaque to
// every caller.
type CredentialService interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) bool
}

// FileStore resolves and manages file metadata within a tenant schema.
// GetFileInfo returns nil, nil for unknown ids; record reads leave the raw
// reference in place rather than failing.
type FileStore interface {
	GetFileInfo(ctx context.Context, sess *db.Session, id uuid.UUID) (*models.FileInfo, error)
	Upload(ctx context.Context, sess *db.Session, name, mime string, data []byte, uploadedBy uuid.UUID) (*models.FileInfo, error)
	Delete(ctx context.Context, sess *db.Session, id uuid.UUID, uploadedBy uuid.UUID) error
	ListByUser(ctx context.Context, sess *db.Session, userID uuid.UUID, page, limit int) ([]models.FileInfo, int, error)
}

// Notifier delivers in-app notifications. Fire-and-forget: failures are
// logged by the implementation, never propagated into the triggering
// operation.
type Notifier interface {
	NotifyUser(ctx context.Context, schema string, userID uuid.UUID, title, message string, link *string) error
	NotifyUsers(ctx context.Context, schema string, userIDs []uuid.UUID, title, message string, link *string) error
}

type NotificationRepository interface {
	ListByUser(ctx context.Context, sess *db.Session, userID uuid.UUID) ([]models.Notification, error)
	MarkRead(ctx context.Context, sess *db.Session, userID uuid.UUID, id int64) error
	MarkAllRead(ctx context.Context, sess *db.Session, userID uuid.UUID) error
	Delete(ctx context.Context, sess *db.Session, userID uuid.UUID, id int64) error
	DeleteAll(ctx context.Context, sess *db.Session, userID uuid.UUID) error
	CountUnread(ctx context.Context, sess *db.Session, userID uuid.UUID) (int64, error)
}

// AuditSink appends record-change entries. Best-effort from the record
// store's point of view: append failures are logged, never fatal.
type AuditSink interface {
	Append(ctx context.Context, q db.Querier, entry models.AuditEntry) error
	ListByRecord(ctx context.Context, sess *db.Session, recordID int64) ([]models.AuditEntry, error)
}
