package storepg

import (
	"context"
	"strings"
	"time"

	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type serviceRepo struct {
	db *sqlx.DB
}

type servicePersistence struct {
	ID                         uuid.UUID `db:"id"`
	CreatedAt                  time.Time `db:"created_at"`
	UpdatedAt                  time.Time `db:"updated_at"`
	IsEnabled                  bool      `db:"is_enabled"`
	Name                       string    `db:"name"`
	URL                        string    `db:"url"`
	ProviderLocalURL           *string   `db:"provider_local_url"`
	ProviderGithubOauth2URL    *string   `db:"provider_github_oauth2_url"`
	ProviderMicrosoftOauth2URL *string   `db:"provider_microsoft_oauth2_url"`
}

func (p servicePersistence) toDomain() sso.Service {
	return sso.Service(p)
}

func (r *serviceRepo) List(ctx context.Context, query sso.ServiceList) ([]sso.Service, error) {
	sqlQuery := `SELECT * FROM sso_service`
	var conds []string
	var args []interface{}

	if len(query.IDs) > 0 {
		conds = append(conds, "id IN (?)")
		args = append(args, query.IDs)
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

	// With only lt set, fetch the closest ids below it descending, then
	// reverse so callers always see ascending order.
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

	var rows []servicePersistence
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(sqlQuery), args...); err != nil {
		return nil, classify(err)
	}

	out := make([]sso.Service, len(rows))
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

func (r *serviceRepo) Create(ctx context.Context, create sso.ServiceCreate) (*sso.Service, error) {
	ts := time.Now().UTC()
	row := servicePersistence{
		ID:                         uuid.New(),
		CreatedAt:                  ts,
		UpdatedAt:                  ts,
		IsEnabled:                  create.IsEnabled,
		Name:                       create.Name,
		URL:                        create.URL,
		ProviderLocalURL:           create.ProviderLocalURL,
		ProviderGithubOauth2URL:    create.ProviderGithubOauth2URL,
		ProviderMicrosoftOauth2URL: create.ProviderMicrosoftOauth2URL,
	}

	query := `
		INSERT INTO sso_service (
			id, created_at, updated_at, is_enabled, name, url,
			provider_local_url, provider_github_oauth2_url, provider_microsoft_oauth2_url
		) VALUES (
			:id, :created_at, :updated_at, :is_enabled, :name, :url,
			:provider_local_url, :provider_github_oauth2_url, :provider_microsoft_oauth2_url
		)`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return nil, classify(err)
	}
	service := row.toDomain()
	return &service, nil
}

func (r *serviceRepo) ReadByID(ctx context.Context, id uuid.UUID) (*sso.Service, error) {
	var row servicePersistence
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM sso_service WHERE id = $1`, id); err != nil {
		return nil, classify(err)
	}
	service := row.toDomain()
	return &service, nil
}

func (r *serviceRepo) Update(ctx context.Context, id uuid.UUID, update sso.ServiceUpdate) (*sso.Service, error) {
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
	if update.URL != nil {
		sets = append(sets, "url = ?")
		args = append(args, *update.URL)
	}
	if update.ProviderLocalURL != nil {
		sets = append(sets, "provider_local_url = ?")
		args = append(args, *update.ProviderLocalURL)
	}
	if update.ProviderGithubOauth2URL != nil {
		sets = append(sets, "provider_github_oauth2_url = ?")
		args = append(args, *update.ProviderGithubOauth2URL)
	}
	if update.ProviderMicrosoftOauth2URL != nil {
		sets = append(sets, "provider_microsoft_oauth2_url = ?")
		args = append(args, *update.ProviderMicrosoftOauth2URL)
	}
	args = append(args, id)

	query := r.db.Rebind(`UPDATE sso_service SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, args...)
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

func (r *serviceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sso_service WHERE id = $1`, id)
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
