package main

import (
	"context"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/gatekit/gatekit/pkg/asyncx"
	"github.com/gatekit/gatekit/pkg/config"
	"github.com/gatekit/gatekit/pkg/logx"
	"github.com/gatekit/gatekit/pkg/notifx"
	"github.com/gatekit/gatekit/pkg/notifx/notifxconsole"
	"github.com/gatekit/gatekit/pkg/notifx/notifxses"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/gatekit/gatekit/pkg/sso/authsrv"
	"github.com/gatekit/gatekit/pkg/sso/ssoapi"
	"github.com/gatekit/gatekit/pkg/sso/ssonotify"
	"github.com/gatekit/gatekit/pkg/sso/store/storelite"
	"github.com/gatekit/gatekit/pkg/sso/store/storemem"
	"github.com/gatekit/gatekit/pkg/sso/store/storepg"
	"github.com/jmoiron/sqlx"
)

// Container holds every initialized dependency for the server process.
type Container struct {
	Config  *config.Config
	Store   sso.Store
	Engine  *authsrv.Engine
	Manager *authsrv.Manager
	Api     *ssoapi.Api

	cancel context.CancelFunc
}

// NewContainer initializes the store, runs migrations, seeds the root key
// and wires the engine, dispatcher and API. Failures here are fatal.
func NewContainer() *Container {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())

	st := newStore(cfg.Database)
	if err := st.Migrate(ctx); err != nil {
		logx.Fatalf("migrate: %v", err)
	}

	engineCfg := authsrv.Config{
		AccessTokenTTL:    cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:   cfg.Auth.RefreshTokenTTL,
		RevokeTokenTTL:    cfg.Auth.RevokeTokenTTL,
		ResetTokenTTL:     cfg.Auth.ResetTokenTTL,
		PasswordMinLength: cfg.Auth.PasswordMinLen,
		PasswordMaxLength: cfg.Auth.PasswordMaxLen,
	}

	manager := authsrv.NewManager(st, engineCfg)
	seedRootKey(ctx, manager, cfg.Auth.RootKeySeed)

	dispatcher := newDispatcher(cfg.Notifx)
	asyncx.Do(func() { dispatcher.Run(ctx) })

	engine := authsrv.NewEngine(st, dispatcher, engineCfg)

	if cfg.Auth.AuditRetention > 0 {
		asyncx.Do(func() { retentionLoop(ctx, manager, cfg.Auth.AuditRetention, cfg.Auth.SweepInterval) })
	}

	opts := oauth2Options(cfg.OAuth2)
	api := ssoapi.New(engine, manager, authsrv.NewAuthenticator(st), opts...)

	return &Container{
		Config:  cfg,
		Store:   st,
		Engine:  engine,
		Manager: manager,
		Api:     api,
		cancel:  cancel,
	}
}

// Cleanup stops background workers and closes the store.
func (c *Container) Cleanup() {
	c.cancel()
	if err := c.Store.Close(); err != nil {
		logx.Errorf("store close: %v", err)
	}
}

func newStore(cfg config.DatabaseConfig) sso.Store {
	switch cfg.Driver {
	case "memory":
		// Non-persistent; for demos and local hacking only.
		logx.Info("store: in-memory")
		return storemem.New()
	case "sqlite":
		db, err := sqlx.Connect("sqlite", cfg.DSN())
		if err != nil {
			logx.Fatalf("sqlite connect: %v", err)
		}
		logx.Info("store: sqlite")
		return storelite.New(db)
	default:
		db, err := sqlx.Connect("postgres", cfg.DSN())
		if err != nil {
			logx.Fatalf("postgres connect: %v", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		logx.Info("store: postgres")
		return storepg.New(db)
	}
}

// seedRootKey guarantees an administrative root key exists. Without a
// configured seed a random key is minted and logged exactly once; after
// that, keep the logs.
func seedRootKey(ctx context.Context, manager *authsrv.Manager, seed string) {
	if seed != "" {
		if _, err := manager.RootKeyEnsure(ctx, seed); err != nil {
			logx.Fatalf("root key: %v", err)
		}
		return
	}

	value, err := sso.KeyValueGenerate()
	if err != nil {
		logx.Fatalf("root key: %v", err)
	}
	if _, err := manager.RootKeyEnsure(ctx, value); err != nil {
		logx.Fatalf("root key: %v", err)
	}
	logx.Infof("root key generated: %s", value)
}

func newDispatcher(cfg config.NotifxConfig) *ssonotify.Dispatcher {
	var provider notifx.EmailSender
	switch cfg.Provider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logx.Fatalf("aws config: %v", err)
		}
		provider = notifxses.NewSESProvider(ses.NewFromConfig(awsCfg), cfg.FromAddress)
		logx.Info("notifx: ses provider")
	default:
		provider = notifxconsole.NewConsoleProvider()
		logx.Info("notifx: console provider")
	}

	var queue ssonotify.Queue
	switch cfg.QueueBackend {
	case "redis":
		queue = ssonotify.NewRedisQueue(cfg.RedisAddr, cfg.RedisDB, cfg.RedisKey)
		logx.Info("notifx: redis queue")
	default:
		queue = ssonotify.NewChannelQueue(cfg.QueueSize)
	}

	dispatcher, err := ssonotify.NewDispatcher(notifx.NewClient(provider), queue, cfg)
	if err != nil {
		logx.Fatalf("dispatcher: %v", err)
	}
	return dispatcher
}

func oauth2Options(cfg config.OAuth2Config) []ssoapi.Option {
	var opts []ssoapi.Option
	if cfg.GitHub.Enabled {
		opts = append(opts, ssoapi.WithGithub(authsrv.NewGithubProvider(
			cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.RedirectURL)))
		logx.Info("oauth2: github enabled")
	}
	if cfg.Microsoft.Enabled {
		opts = append(opts, ssoapi.WithMicrosoft(authsrv.NewMicrosoftProvider(
			cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret, cfg.Microsoft.RedirectURL)))
		logx.Info("oauth2: microsoft enabled")
	}
	return opts
}

// retentionLoop deletes expired audit records on a fixed interval. The
// sweep takes the shared retention lock, so instances can overlap safely.
func retentionLoop(ctx context.Context, manager *authsrv.Manager, retention, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := manager.AuditRetentionSweep(ctx, retention); err != nil {
				logx.WithError(err).Error("audit retention sweep failed")
			}
		}
	}
}
