package storelite

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type auditRepo struct {
	db *sqlx.DB
}

type auditPersistence struct {
	ID        uuid.UUID  `db:"id"`
	CreatedAt time.Time  `db:"created_at"`
	UserAgent string     `db:"user_agent"`
	Remote    string     `db:"remote"`
	Forwarded *string    `db:"forwarded"`
	Type      string     `db:"type"`
	Data      string     `db:"data"`
	KeyID     *uuid.UUID `db:"key_id"`
	ServiceID *uuid.UUID `db:"service_id"`
	UserID    *uuid.UUID `db:"user_id"`
	UserKeyID *uuid.UUID `db:"user_key_id"`
}

func (p auditPersistence) toDomain() sso.Audit {
	return sso.Audit{
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		UserAgent: p.UserAgent,
		Remote:    p.Remote,
		Forwarded: p.Forwarded,
		Type:      p.Type,
		Data:      json.RawMessage(p.Data),
		KeyID:     p.KeyID,
		ServiceID: p.ServiceID,
		UserID:    p.UserID,
		UserKeyID: p.UserKeyID,
	}
}

func (r *auditRepo) List(ctx context.Context, query sso.AuditList) ([]sso.Audit, error) {
	sqlQuery := `SELECT * FROM sso_audit`
	var conds []string
	var args []interface{}

	if query.CreatedGE != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *query.CreatedGE)
	}
	if query.CreatedLE != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *query.CreatedLE)
	}
	if query.ServiceID != nil {
		conds = append(conds, "service_id = ?")
		args = append(args, *query.ServiceID)
	}
	if len(query.Type) > 0 {
		conds = append(conds, "type IN (?)")
		args = append(args, query.Type)
	}
	if len(conds) > 0 {
		sqlQuery += " WHERE " + strings.Join(conds, " AND ")
	}
	// A created_le-only query pages backward: fetch descending from the
	// cutoff so the page adjacent to le comes back, then reverse.
	descending := query.CreatedLE != nil && query.CreatedGE == nil
	if descending {
		sqlQuery += " ORDER BY created_at DESC, id DESC LIMIT ?"
	} else {
		sqlQuery += " ORDER BY created_at ASC, id ASC LIMIT ?"
	}

	limit := store.ClampLimit(query.Limit)
	fetch := limit
	if query.OffsetID != nil {
		fetch = limit * 2
	}
	args = append(args, fetch)

	sqlQuery, args, err := sqlx.In(sqlQuery, args...)
	if err != nil {
		return nil, store.ErrTransport(err)
	}

	var rows []auditPersistence
	if err := r.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, classify(err)
	}

	out := make([]sso.Audit, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return store.AuditPage(out, query.OffsetID, limit, descending), nil
}

func (r *auditRepo) Create(ctx context.Context, create sso.AuditCreate) (*sso.Audit, error) {
	data := string(create.Data)
	if data == "" {
		data = "{}"
	}

	row := auditPersistence{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		UserAgent: create.Meta.UserAgent,
		Remote:    create.Meta.Remote,
		Forwarded: create.Meta.Forwarded,
		Type:      create.Type,
		Data:      data,
		KeyID:     create.KeyID,
		ServiceID: create.ServiceID,
		UserID:    create.UserID,
		UserKeyID: create.UserKeyID,
	}

	query := `
		INSERT INTO sso_audit (
			id, created_at, user_agent, remote, forwarded, type, data,
			key_id, service_id, user_id, user_key_id
		) VALUES (
			:id, :created_at, :user_agent, :remote, :forwarded, :type, :data,
			:key_id, :service_id, :user_id, :user_key_id
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, classify(err)
	}
	audit := row.toDomain()
	return &audit, nil
}

func (r *auditRepo) ReadByID(ctx context.Context, id uuid.UUID, serviceMask *uuid.UUID) (*sso.Audit, error) {
	query := `SELECT * FROM sso_audit WHERE id = ?`
	args := []interface{}{id}
	if serviceMask != nil {
		query += ` AND service_id = ?`
		args = append(args, *serviceMask)
	}

	var row auditPersistence
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, classify(err)
	}
	audit := row.toDomain()
	return &audit, nil
}

func (r *auditRepo) DeleteMany(ctx context.Context, createdLE time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sso_audit WHERE created_at <= ?`, createdLE)
	if err != nil {
		return 0, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, store.ErrTransport(err)
	}
	return affected, nil
}
