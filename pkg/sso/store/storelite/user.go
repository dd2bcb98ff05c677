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

type userRepo struct {
	db *sqlx.DB
}

type userPersistence struct {
	ID                    uuid.UUID `db:"id"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
	IsEnabled             bool      `db:"is_enabled"`
	Name                  string    `db:"name"`
	Email                 string    `db:"email"`
	Locale                string    `db:"locale"`
	Timezone              string    `db:"timezone"`
	PasswordAllowReset    bool      `db:"password_allow_reset"`
	PasswordRequireUpdate bool      `db:"password_require_update"`
	PasswordHash          *string   `db:"password_hash"`
}

func (p userPersistence) toDomain() sso.User {
	return sso.User(p)
}

func (r *userRepo) List(ctx context.Context, query sso.UserList) ([]sso.User, error) {
	sqlQuery := `SELECT * FROM sso_user`
	var conds []string
	var args []interface{}

	if len(query.IDs) > 0 {
		conds = append(conds, "id IN (?)")
		args = append(args, query.IDs)
	}
	if query.EmailEq != nil {
		conds = append(conds, "email = ?")
		args = append(args, *query.EmailEq)
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

	var rows []userPersistence
	if err := r.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, classify(err)
	}

	out := make([]sso.User, len(rows))
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

func (r *userRepo) Create(ctx context.Context, create sso.UserCreate) (*sso.User, error) {
	ts := time.Now().UTC()
	row := userPersistence{
		ID:                    uuid.New(),
		CreatedAt:             ts,
		UpdatedAt:             ts,
		IsEnabled:             create.IsEnabled,
		Name:                  create.Name,
		Email:                 create.Email,
		Locale:                create.Locale,
		Timezone:              create.Timezone,
		PasswordAllowReset:    create.PasswordAllowReset,
		PasswordRequireUpdate: create.PasswordRequireUpdate,
		PasswordHash:          create.PasswordHash,
	}

	query := `
		INSERT INTO sso_user (
			id, created_at, updated_at, is_enabled, name, email, locale, timezone,
			password_allow_reset, password_require_update, password_hash
		) VALUES (
			:id, :created_at, :updated_at, :is_enabled, :name, :email, :locale, :timezone,
			:password_allow_reset, :password_require_update, :password_hash
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, classify(err)
	}
	user := row.toDomain()
	return &user, nil
}

func (r *userRepo) ReadByID(ctx context.Context, id uuid.UUID) (*sso.User, error) {
	var row userPersistence
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM sso_user WHERE id = ?`, id); err != nil {
		return nil, classify(err)
	}
	user := row.toDomain()
	return &user, nil
}

func (r *userRepo) ReadByEmail(ctx context.Context, email string) (*sso.User, error) {
	var row userPersistence
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM sso_user WHERE email = ?`, email); err != nil {
		return nil, classify(err)
	}
	user := row.toDomain()
	return &user, nil
}

func (r *userRepo) Update(ctx context.Context, id uuid.UUID, update sso.UserUpdate) (*sso.User, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if update.IsEnabled != nil {
		sets = append(sets, "is_enabled = ?")
		args = append(args, *update.IsEnabled)
	}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Locale != nil {
		sets = append(sets, "locale = ?")
		args = append(args, *update.Locale)
	}
	if update.Timezone != nil {
		sets = append(sets, "timezone = ?")
		args = append(args, *update.Timezone)
	}
	if update.PasswordAllowReset != nil {
		sets = append(sets, "password_allow_reset = ?")
		args = append(args, *update.PasswordAllowReset)
	}
	if update.PasswordRequireUpdate != nil {
		sets = append(sets, "password_require_update = ?")
		args = append(args, *update.PasswordRequireUpdate)
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		`UPDATE sso_user SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
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
	return r.ReadByID(ctx, id)
}

func (r *userRepo) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sso_user SET email = ?, updated_at = ? WHERE id = ?`,
		email, time.Now().UTC(), id)
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

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sso_user SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
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

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sso_user WHERE id = ?`, id)
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
