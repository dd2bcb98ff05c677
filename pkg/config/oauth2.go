package config

// OAuth2ProviderConfig configures a single upstream OAuth2 provider.
type OAuth2ProviderConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OAuth2Config configures OAuth2 federation.
type OAuth2Config struct {
	GitHub    OAuth2ProviderConfig
	Microsoft OAuth2ProviderConfig
}

func loadOAuth2Config() OAuth2Config {
	return OAuth2Config{
		GitHub: OAuth2ProviderConfig{
			Enabled:      getBool("OAUTH2_GITHUB_ENABLED", false),
			ClientID:     getEnv("OAUTH2_GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("OAUTH2_GITHUB_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("OAUTH2_GITHUB_REDIRECT_URL", ""),
		},
		Microsoft: OAuth2ProviderConfig{
			Enabled:      getBool("OAUTH2_MICROSOFT_ENABLED", false),
			ClientID:     getEnv("OAUTH2_MICROSOFT_CLIENT_ID", ""),
			ClientSecret: getEnv("OAUTH2_MICROSOFT_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("OAUTH2_MICROSOFT_REDIRECT_URL", ""),
		},
	}
}
