package postgres

import (
	"context"
	"fmt"

	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const auditColumns = `id, table_id, record_id, change_type, old_data, new_data,
	actor_id, ip, user_agent, created_at`

// AuditStore appends record-change entries to the tenant's audit_log.
// Append takes a Querier so the entry can ride the caller's transaction.
type AuditStore struct{}

func NewAuditStore() *AuditStore { return &AuditStore{} }

func (s *AuditStore) Append(ctx context.Context, q db.Querier, entry models.AuditEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO audit_log (table_id, record_id, change_type, old_data, new_data, actor_id, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.TableID, entry.RecordID, entry.ChangeType,
		entry.OldData, entry.NewData, entry.ActorID, entry.IP, entry.UserAgent)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *AuditStore) ListByRecord(ctx context.Context, sess *db.Session, recordID int64) ([]models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE record_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := sess.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditEntry, 0)
	for rows.Next() {
		var e models.AuditEntry
		err := rows.Scan(&e.ID, &e.TableID, &e.RecordID, &e.ChangeType,
			&e.OldData, &e.NewData, &e.ActorID, &e.IP, &e.UserAgent, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

var _ repository.AuditSink = (*AuditStore)(nil)
