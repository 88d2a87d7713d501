package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const recordColumns = `id, table_id, record_data, position_num, created_at, updated_at`

// fileRefKey marks a value inside record_data as a weak file reference.
const fileRefKey = "file_id"

// RecordStore holds schema-less records as JSONB attribute maps. Reads
// resolve file references into metadata; mutations append audit entries and
// notify assigned users, both best-effort.
type RecordStore struct {
	files    repository.FileStore
	notifier repository.Notifier
	audit    repository.AuditSink
	logger   *zap.Logger
}

func NewRecordStore(files repository.FileStore, notifier repository.Notifier, audit repository.AuditSink, logger *zap.Logger) *RecordStore {
	return &RecordStore{files: files, notifier: notifier, audit: audit, logger: logger}
}

func scanRecord(row pgx.Row) (*models.Record, error) {
	var r models.Record
	err := row.Scan(&r.ID, &r.TableID, &r.Data, &r.Position, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RecordStore) Create(ctx context.Context, sess *db.Session, actor repository.Actor, tableID int64, data map[string]any, position int) (*models.Record, error) {
	if data == nil {
		data = map[string]any{}
	}
	var tableExists bool
	if err := sess.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, tableID).Scan(&tableExists); err != nil {
		return nil, fmt.Errorf("check table: %w", err)
	}
	if !tableExists {
		return nil, apperr.NotFound("table")
	}

	if err := sess.SetActor(ctx, actor.UserID.String()); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO records (table_id, record_data, position_num)
		VALUES ($1, $2, $3)
		RETURNING ` + recordColumns

	r, err := scanRecord(sess.QueryRow(ctx, query, tableID, data, position))
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	s.appendAudit(ctx, sess, models.AuditEntry{
		TableID:    tableID,
		RecordID:   r.ID,
		ChangeType: "create",
		NewData:    r.Data,
		ActorID:    actorPtr(actor),
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
	})
	return r, nil
}

// GetByID returns the record with file references expanded. A missing
// record is NotFound; a reference to a missing file stays raw.
func (s *RecordStore) GetByID(ctx context.Context, sess *db.Session, id int64) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	r, err := scanRecord(sess.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("record")
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	r.Data = s.expandFileRefs(ctx, sess, r.Data)
	return r, nil
}

func (s *RecordStore) ListByTable(ctx context.Context, sess *db.Session, tableID int64) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE table_id = $1
		ORDER BY position_num, id`
	return s.queryRecords(ctx, sess, query, tableID)
}

// SearchByValue matches records whose attribute values contain the text,
// case-insensitively. Keys are not searched.
func (s *RecordStore) SearchByValue(ctx context.Context, sess *db.Session, tableID int64, text string) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records r
		WHERE r.table_id = $1
		  AND EXISTS (
			SELECT 1 FROM jsonb_each_text(r.record_data) kv
			WHERE kv.value ILIKE '%' || $2 || '%'
		  )
		ORDER BY r.position_num, r.id`
	return s.queryRecords(ctx, sess, query, tableID, text)
}

func (s *RecordStore) queryRecords(ctx context.Context, sess *db.Session, query string, args ...any) ([]models.Record, error) {
	rows, err := sess.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	for i := range records {
		records[i].Data = s.expandFileRefs(ctx, sess, records[i].Data)
	}
	return records, nil
}

func (s *RecordStore) Update(ctx context.Context, sess *db.Session, actor repository.Actor, id int64, data map[string]any, position *int) (*models.Record, error) {
	old, err := scanRecord(sess.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("record")
		}
		return nil, fmt.Errorf("load record: %w", err)
	}

	if err := sess.SetActor(ctx, actor.UserID.String()); err != nil {
		return nil, err
	}

	query := `
		UPDATE records
		SET record_data = $2,
			position_num = COALESCE($3, position_num),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + recordColumns

	r, err := scanRecord(sess.QueryRow(ctx, query, id, data, position))
	if err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	s.appendAudit(ctx, sess, models.AuditEntry{
		TableID:    r.TableID,
		RecordID:   r.ID,
		ChangeType: "update",
		OldData:    old.Data,
		NewData:    r.Data,
		ActorID:    actorPtr(actor),
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
	})
	s.notifyAssigned(ctx, sess, actor, r)
	return r, nil
}

func (s *RecordStore) Delete(ctx context.Context, sess *db.Session, actor repository.Actor, id int64) error {
	old, err := scanRecord(sess.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("record")
		}
		return fmt.Errorf("load record: %w", err)
	}

	if err := sess.SetActor(ctx, actor.UserID.String()); err != nil {
		return err
	}

	if _, err := sess.Exec(ctx, `DELETE FROM records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	s.appendAudit(ctx, sess, models.AuditEntry{
		TableID:    old.TableID,
		RecordID:   old.ID,
		ChangeType: "delete",
		OldData:    old.Data,
		ActorID:    actorPtr(actor),
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
	})
	return nil
}

// UpdatePosition moves the record and renumbers its table siblings
// densely. A tie at the target position puts the moved record first.
func (s *RecordStore) UpdatePosition(ctx context.Context, sess *db.Session, id int64, position int) error {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin move record: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE records SET position_num = $2, updated_at = now() WHERE id = $1`, id, position)
	if err != nil {
		return fmt.Errorf("update record position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("record")
	}

	_, err = tx.Exec(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY position_num, (id = $1)::int DESC, id
			) - 1 AS rn
			FROM records
			WHERE table_id = (SELECT table_id FROM records WHERE id = $1)
		)
		UPDATE records r
		SET position_num = o.rn
		FROM ordered o
		WHERE r.id = o.id AND r.position_num <> o.rn`, id)
	if err != nil {
		return fmt.Errorf("reindex records: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *RecordStore) CountByTable(ctx context.Context, sess *db.Session, tableID int64) (int64, error) {
	var count int64
	if err := sess.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE table_id = $1`, tableID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func (s *RecordStore) ExistsField(ctx context.Context, sess *db.Session, tableID int64, field string) (bool, error) {
	var exists bool
	err := sess.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM records WHERE table_id = $1 AND record_data ? $2
		)`, tableID, field).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check record field: %w", err)
	}
	return exists, nil
}

// expandFileRefs resolves weak file references in the attribute map. A
// value shaped {"file_id": "<uuid>"} (or a list of such values) gains the
// file's metadata. Malformed or unresolvable references pass through
// unchanged; a stale reference must never break a read.
func (s *RecordStore) expandFileRefs(ctx context.Context, sess *db.Session, data map[string]any) map[string]any {
	resolve := func(id uuid.UUID) *models.FileInfo {
		info, err := s.files.GetFileInfo(ctx, sess, id)
		if err != nil {
			s.logger.Warn("resolve file reference failed",
				zap.String("file_id", id.String()),
				zap.Error(err),
			)
			return nil
		}
		return info
	}
	return expandFileRefs(data, resolve)
}

// expandFileRefs is the pure expansion walk, split out from the store so
// the shape handling is testable without a database.
func expandFileRefs(data map[string]any, resolve func(uuid.UUID) *models.FileInfo) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = expandFileValue(v, resolve)
	}
	return out
}

func expandFileValue(v any, resolve func(uuid.UUID) *models.FileInfo) any {
	switch val := v.(type) {
	case map[string]any:
		expanded, ok := expandFileRef(val, resolve)
		if ok {
			return expanded
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandFileValue(item, resolve)
		}
		return out
	default:
		return v
	}
}

func expandFileRef(val map[string]any, resolve func(uuid.UUID) *models.FileInfo) (any, bool) {
	raw, ok := val[fileRefKey]
	if !ok {
		return nil, false
	}
	str, ok := raw.(string)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return nil, false
	}
	info := resolve(id)
	if info == nil {
		return nil, false
	}
	out := make(map[string]any, len(val)+6)
	for k, v := range val {
		out[k] = v
	}
	out["name"] = info.Name
	out["size"] = info.Size
	out["mime"] = info.Mime
	out["uploaded_at"] = info.UploadedAt
	out["download_url"] = info.DownloadURL
	out["view_url"] = info.ViewURL
	return out, true
}

func (s *RecordStore) appendAudit(ctx context.Context, sess *db.Session, entry models.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, sess, entry); err != nil {
		s.logger.Warn("audit append failed",
			zap.Int64("record_id", entry.RecordID),
			zap.String("change", entry.ChangeType),
			zap.Error(err),
		)
	}
}

// notifyAssigned tells every user assigned to the record, except the actor,
// that it changed. Delivery runs detached from the request: the assignment
// list is read on the request session, the insert happens on its own.
func (s *RecordStore) notifyAssigned(ctx context.Context, sess *db.Session, actor repository.Actor, r *models.Record) {
	if s.notifier == nil {
		return
	}
	rows, err := sess.Query(ctx,
		`SELECT user_id FROM record_assignments WHERE record_id = $1`, r.ID)
	if err != nil {
		s.logger.Warn("list record assignees failed", zap.Int64("record_id", r.ID), zap.Error(err))
		return
	}
	defer rows.Close()

	assignees := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			s.logger.Warn("scan record assignee failed", zap.Error(err))
			return
		}
		if id != actor.UserID {
			assignees = append(assignees, id)
		}
	}
	if rows.Err() != nil || len(assignees) == 0 {
		return
	}

	schema := sess.Schema()
	recordID := r.ID
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		title := "Record updated"
		message := fmt.Sprintf("Record #%d you are assigned to was updated", recordID)
		if err := s.notifier.NotifyUsers(nctx, schema, assignees, title, message, nil); err != nil {
			s.logger.Warn("notify assignees failed", zap.Int64("record_id", recordID), zap.Error(err))
		}
	}()
}

func actorPtr(actor repository.Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}

var _ repository.RecordRepository = (*RecordStore)(nil)
