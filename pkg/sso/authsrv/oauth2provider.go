package authsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gatekit/gatekit/pkg/sso"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/microsoft"
)

const (
	githubUserURL     = "https://api.github.com/user"
	microsoftGraphURL = "https://graph.microsoft.com/v1.0/me"
)

// GithubProvider implements Oauth2Exchanger against the GitHub API.
type GithubProvider struct {
	config *oauth2.Config
}

func NewGithubProvider(clientID, clientSecret, redirectURL string) *GithubProvider {
	return &GithubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

func (p *GithubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *GithubProvider) ExchangeEmail(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", sso.ErrBadRequest().WithDetail("reason", "oauth2 exchange failed").WithCause(err)
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := fetchJSON(ctx, p.config.Client(ctx, token), githubUserURL, &payload); err != nil {
		return "", err
	}
	if payload.Email == "" {
		return "", sso.ErrBadRequest().WithDetail("reason", "provider returned no email")
	}
	return payload.Email, nil
}

// MicrosoftProvider implements Oauth2Exchanger against the Microsoft Graph.
type MicrosoftProvider struct {
	config *oauth2.Config
}

func NewMicrosoftProvider(clientID, clientSecret, redirectURL string) *MicrosoftProvider {
	return &MicrosoftProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"User.Read"},
			Endpoint:     microsoft.AzureADEndpoint("common"),
		},
	}
}

func (p *MicrosoftProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *MicrosoftProvider) ExchangeEmail(ctx context.Context, code string) (string, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", sso.ErrBadRequest().WithDetail("reason", "oauth2 exchange failed").WithCause(err)
	}

	var payload struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := fetchJSON(ctx, p.config.Client(ctx, token), microsoftGraphURL, &payload); err != nil {
		return "", err
	}
	email := payload.Mail
	if email == "" {
		email = payload.UserPrincipalName
	}
	if email == "" {
		return "", sso.ErrBadRequest().WithDetail("reason", "provider returned no email")
	}
	return email, nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return sso.ErrInternal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return sso.ErrBadRequest().WithDetail("reason", "provider request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sso.ErrBadRequest().WithDetail("reason", fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return sso.ErrBadRequest().WithDetail("reason", "provider response malformed").WithCause(err)
	}
	return nil
}
