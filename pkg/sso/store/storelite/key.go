package storelite

import (
	"context"
	"strings"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type keyRepo struct {
	db *sqlx.DB
}

type keyPersistence struct {
	ID        uuid.UUID   `db:"id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
	IsEnabled bool        `db:"is_enabled"`
	IsRevoked bool        `db:"is_revoked"`
	Type      sso.KeyType `db:"type"`
	Name      string      `db:"name"`
	Value     string      `db:"value"`
	ServiceID *uuid.UUID  `db:"service_id"`
	UserID    *uuid.UUID  `db:"user_id"`
}

func (p keyPersistence) toDomain() sso.Key {
	return sso.Key{
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		IsEnabled: p.IsEnabled,
		IsRevoked: p.IsRevoked,
		Type:      p.Type,
		Name:      p.Name,
		ServiceID: p.ServiceID,
		UserID:    p.UserID,
	}
}

func (p keyPersistence) toDomainWithValue() sso.KeyWithValue {
	return sso.KeyWithValue{Key: p.toDomain(), Value: p.Value}
}

func (r *keyRepo) List(ctx context.Context, query sso.KeyList) ([]sso.Key, error) {
	sqlQuery := `SELECT * FROM sso_key`
	var conds []string
	var args []interface{}

	if len(query.IDs) > 0 {
		conds = append(conds, "id IN (?)")
		args = append(args, query.IDs)
	}
	if query.IsEnabled != nil {
		conds = append(conds, "is_enabled = ?")
		args = append(args, *query.IsEnabled)
	}
	if query.IsRevoked != nil {
		conds = append(conds, "is_revoked = ?")
		args = append(args, *query.IsRevoked)
	}
	if query.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, *query.Type)
	}
	if query.ServiceID != nil {
		conds = append(conds, "service_id = ?")
		args = append(args, *query.ServiceID)
	}
	if query.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *query.UserID)
	}
	if query.GT != nil {
		conds = append(conds, "id > ?")
		args = append(args, *query.GT)
	}
	if query.LT != nil {
		conds = append(conds, "id < ?")
		args = append(args, *query.LT)
	}
	if len(conds) > 0 {
		sqlQuery += " WHERE " + strings.Join(conds, " AND ")
	}

	reversed := query.LT != nil && query.GT == nil
	if reversed {
		sqlQuery += " ORDER BY id DESC LIMIT ?"
	} else {
		sqlQuery += " ORDER BY id ASC LIMIT ?"
	}
	args = append(args, store.ClampLimit(query.Limit))

	sqlQuery, args, err := sqlx.In(sqlQuery, args...)
	if err != nil {
		return nil, store.ErrTransport(err)
	}

	var rows []keyPersistence
	if err := r.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, classify(err)
	}

	out := make([]sso.Key, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	if reversed {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (r *keyRepo) Create(ctx context.Context, create sso.KeyCreate) (*sso.KeyWithValue, error) {
	ts := time.Now().UTC()
	row := keyPersistence{
		ID:        uuid.New(),
		CreatedAt: ts,
		UpdatedAt: ts,
		IsEnabled: create.IsEnabled,
		IsRevoked: create.IsRevoked,
		Type:      create.Type,
		Name:      create.Name,
		Value:     create.Value,
		ServiceID: create.ServiceID,
		UserID:    create.UserID,
	}

	query := `
		INSERT INTO sso_key (
			id, created_at, updated_at, is_enabled, is_revoked, type, name, value,
			service_id, user_id
		) VALUES (
			:id, :created_at, :updated_at, :is_enabled, :is_revoked, :type, :name, :value,
			:service_id, :user_id
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, classify(err)
	}
	key := row.toDomainWithValue()
	return &key, nil
}

func (r *keyRepo) ReadByID(ctx context.Context, id uuid.UUID, serviceMask *uuid.UUID) (*sso.Key, error) {
	query := `SELECT * FROM sso_key WHERE id = ?`
	args := []interface{}{id}
	if serviceMask != nil {
		query += ` AND service_id = ?`
		args = append(args, *serviceMask)
	}

	var row keyPersistence
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, classify(err)
	}
	key := row.toDomain()
	return &key, nil
}

func (r *keyRepo) ReadByRootValue(ctx context.Context, value string) (*sso.KeyWithValue, error) {
	var row keyPersistence
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM sso_key WHERE value = ? AND service_id IS NULL AND user_id IS NULL`,
		value)
	if err != nil {
		return nil, classify(err)
	}
	key := row.toDomainWithValue()
	return &key, nil
}

func (r *keyRepo) ReadByServiceValue(ctx context.Context, value string) (*sso.KeyWithValue, error) {
	var row keyPersistence
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM sso_key WHERE value = ? AND service_id IS NOT NULL AND user_id IS NULL`,
		value)
	if err != nil {
		return nil, classify(err)
	}
	key := row.toDomainWithValue()
	return &key, nil
}

func (r *keyRepo) ReadByUserValue(ctx context.Context, serviceID uuid.UUID, typ sso.KeyType, value string) (*sso.KeyWithValue, error) {
	var row keyPersistence
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM sso_key
		 WHERE value = ? AND type = ? AND service_id = ? AND user_id IS NOT NULL`,
		value, typ, serviceID)
	if err != nil {
		return nil, classify(err)
	}
	key := row.toDomainWithValue()
	return &key, nil
}

func (r *keyRepo) ReadByUser(ctx context.Context, serviceID, userID uuid.UUID, typ sso.KeyType) (*sso.KeyWithValue, error) {
	var row keyPersistence
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM sso_key
		 WHERE service_id = ? AND user_id = ? AND type = ?
		 ORDER BY (is_enabled AND NOT is_revoked) DESC, created_at DESC
		 LIMIT 1`,
		serviceID, userID, typ)
	if err != nil {
		return nil, classify(err)
	}
	key := row.toDomainWithValue()
	return &key, nil
}

func (r *keyRepo) Update(ctx context.Context, id uuid.UUID, update sso.KeyUpdate) (*sso.Key, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if update.IsEnabled != nil {
		sets = append(sets, "is_enabled = ?")
		args = append(args, *update.IsEnabled)
	}
	if update.IsRevoked != nil && *update.IsRevoked {
		sets = append(sets, "is_revoked = 1")
	}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		`UPDATE sso_key SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, store.ErrTransport(err)
	}
	if affected == 0 {
		return nil, store.ErrNotFound()
	}
	return r.ReadByID(ctx, id, nil)
}

func (r *keyRepo) UpdateManyByUser(ctx context.Context, userID uuid.UUID, update sso.KeyUpdate) (int64, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if update.IsEnabled != nil {
		sets = append(sets, "is_enabled = ?")
		args = append(args, *update.IsEnabled)
	}
	if update.IsRevoked != nil && *update.IsRevoked {
		sets = append(sets, "is_revoked = 1")
	}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	args = append(args, userID)

	result, err := r.db.ExecContext(ctx,
		`UPDATE sso_key SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`, args...)
	if err != nil {
		return 0, classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, store.ErrTransport(err)
	}
	return affected, nil
}

func (r *keyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sso_key WHERE id = ?`, id)
	if err != nil {
		return classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return store.ErrTransport(err)
	}
	if affected == 0 {
		return store.ErrNotFound()
	}
	return nil
}
