package storepg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type csrfRepo struct {
	db *sqlx.DB
}

type csrfPersistence struct {
	CreatedAt time.Time `db:"created_at"`
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	TTL       time.Time `db:"ttl"`
	ServiceID uuid.UUID `db:"service_id"`
}

func (p csrfPersistence) toDomain() sso.Csrf {
	return sso.Csrf(p)
}

func (r *csrfRepo) Create(ctx context.Context, create sso.CsrfCreate) (*sso.Csrf, error) {
	row := csrfPersistence{
		CreatedAt: time.Now().UTC(),
		Key:       create.Key,
		Value:     create.Value,
		TTL:       create.TTL,
		ServiceID: create.ServiceID,
	}

	query := `
		INSERT INTO sso_csrf (created_at, key, value, ttl, service_id)
		VALUES (:created_at, :key, :value, :ttl, :service_id)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, classify(err)
	}
	csrf := row.toDomain()
	return &csrf, nil
}

// ReadOpt sweeps expired rows, then reads and deletes the requested key in
// one transaction. DELETE ... RETURNING makes the consume atomic: only one
// caller ever gets the row back.
func (r *csrfRepo) ReadOpt(ctx context.Context, key string) (*sso.Csrf, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, store.ErrTransport(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sso_csrf WHERE ttl <= $1`, time.Now().UTC()); err != nil {
		return nil, classify(err)
	}

	var row csrfPersistence
	err = tx.GetContext(ctx, &row,
		`DELETE FROM sso_csrf WHERE key = $1
		 RETURNING created_at, key, value, ttl, service_id`,
		key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := tx.Commit(); err != nil {
				return nil, store.ErrTransport(err)
			}
			return nil, nil
		}
		return nil, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.ErrTransport(err)
	}
	csrf := row.toDomain()
	return &csrf, nil
}
