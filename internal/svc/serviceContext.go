// Package svc wires every authentication core component together
// according to the active configuration, following the same
// ServiceContext dependency-injection shape used throughout the
// monorepo this core was extracted from.
package svc

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/suleymanmyradov/auth-core/internal/attemptpolicy"
	"github.com/suleymanmyradov/auth-core/internal/audit"
	"github.com/suleymanmyradov/auth-core/internal/authz"
	"github.com/suleymanmyradov/auth-core/internal/blacklist"
	"github.com/suleymanmyradov/auth-core/internal/clock"
	"github.com/suleymanmyradov/auth-core/internal/config"
	"github.com/suleymanmyradov/auth-core/internal/keymaterial"
	"github.com/suleymanmyradov/auth-core/internal/metrics"
	"github.com/suleymanmyradov/auth-core/internal/passwordhasher"
	"github.com/suleymanmyradov/auth-core/internal/ratelimit"
	"github.com/suleymanmyradov/auth-core/internal/refreshstore"
	"github.com/suleymanmyradov/auth-core/internal/sessionregistry"
	"github.com/suleymanmyradov/auth-core/internal/tokencodec"
	"github.com/suleymanmyradov/auth-core/internal/tokenvalidator"
	"github.com/suleymanmyradov/auth-core/internal/useraccount"
	"github.com/suleymanmyradov/auth-core/internal/usecase"
)

// ServiceContext holds every collaborator a handler's logic needs.
type ServiceContext struct {
	Config config.Config

	Clock         clock.Clock
	Keys          *keymaterial.KeyMaterial
	Codec         *tokencodec.Codec
	Validator     *tokenvalidator.Validator
	RefreshStore  refreshstore.Store
	Blacklist     blacklist.Blacklist
	Sessions      sessionregistry.Registry
	Attempts      attemptpolicy.Policy
	IPResolver    *ratelimit.ClientIPResolver
	KeyResolver   *ratelimit.KeyResolver
	Hasher        passwordhasher.Hasher
	Accounts      useraccount.Gateway
	Metrics       *metrics.Service
	Audit         *audit.Publisher
	AuthzFilter   *authz.Filter

	LoginUseCase   usecase.LoginRunner
	RefreshUseCase usecase.RefreshRunner
}

// NewServiceContext builds every component named in c and wires them
// according to the configured refresh backend. It panics via logx.Must
// on unrecoverable startup failures, matching the fail-fast startup
// idiom used by the rest of the fleet.
func NewServiceContext(c config.Config) *ServiceContext {
	if err := c.Validate(); err != nil {
		logx.Must(err)
	}

	clk := clock.Real{}

	sources := make([]keymaterial.Source, 0, len(c.JWT.Keys))
	for _, k := range c.JWT.Keys {
		sources = append(sources, keymaterial.Source{
			Kid:            k.Kid,
			PrivateKeyPath: k.PrivateKeyPath,
			PublicKeyPath:  k.PublicKeyPath,
		})
	}
	keys, err := keymaterial.Load(sources, c.JWT.ActiveKid, c.JWT.VerificationKids)
	logx.Must(err)

	codec := tokencodec.New(keys, c.JWT.Issuer, clk)
	validator := tokenvalidator.New(codec, c.JWT.Issuer, c.JWT.AccessAudience, c.JWT.RefreshAudience)

	refreshStore, bl, sessions := buildStores(c, clk)

	var attempts attemptpolicy.Policy
	if c.Security.Store.RefreshBackend == "memory" {
		attempts = attemptpolicy.NewMemoryPolicy(clk,
			c.Security.Attempts.MaxAttempts,
			c.Security.Attempts.Window,
			c.Security.Attempts.BlockDuration,
		)
	} else {
		attempts = attemptpolicy.NewRedisPolicy(
			mustRedisClient(c),
			c.Security.Attempts.MaxAttempts,
			c.Security.Attempts.Window,
			c.Security.Attempts.BlockDuration,
		)
	}

	accounts := mustUserAccountGateway(c)
	hasher := passwordhasher.NewBcryptHasher(0)
	authValidator := usecase.NewAuthenticationValidator(accounts, hasher)

	metricsService := metrics.New(prometheus.DefaultRegisterer, c.Metrics.Namespace)
	auditPublisher := audit.NewPublisher(c.Security.Audit.NatsUrl)

	var login usecase.LoginRunner = usecase.NewLoginUseCase(
		attempts, authValidator, codec, refreshStore, sessions, clk,
		c.JWT.AccessTTL, c.JWT.RefreshTTL, c.JWT.AccessAudience, c.JWT.RefreshAudience,
	)
	login = usecase.NewMeteredLoginUseCase(login, metricsService)
	login = usecase.NewAuditedLoginUseCase(login, auditPublisher)

	var refresh usecase.RefreshRunner = usecase.NewRefreshUseCase(
		validator, refreshStore, bl, sessions, accounts, codec, clk,
		c.JWT.AccessTTL, c.JWT.RefreshTTL, c.JWT.AccessAudience, c.JWT.RefreshAudience,
		c.JWT.RotateRefresh,
	)
	refresh = usecase.NewMeteredRefreshUseCase(refresh, metricsService)
	refresh = usecase.NewAuditedRefreshUseCase(refresh, auditPublisher)

	filter := authz.New(validator, bl)

	return &ServiceContext{
		Config:         c,
		Clock:          clk,
		Keys:           keys,
		Codec:          codec,
		Validator:      validator,
		RefreshStore:   refreshStore,
		Blacklist:      bl,
		Sessions:       sessions,
		Attempts:       attempts,
		IPResolver:     ratelimit.NewClientIPResolver(c.Security.RateLimit.TrustedProxies),
		KeyResolver:    ratelimit.NewKeyResolver(ratelimit.Strategy(c.Security.RateLimit.Strategy)),
		Hasher:         hasher,
		Accounts:       accounts,
		Metrics:        metricsService,
		Audit:          auditPublisher,
		AuthzFilter:    filter,
		LoginUseCase:   login,
		RefreshUseCase: refresh,
	}
}

func mustRedisClient(c config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Security.Redis.Addr,
		Password: c.Security.Redis.Password,
		DB:       c.Security.Redis.DB,
	})
}

func mustUserAccountGateway(c config.Config) useraccount.Gateway {
	if c.Security.Postgres.DSN == "" {
		logx.Error("svc: security.postgres.dsn not configured, falling back to in-memory user account gateway")
		return useraccount.NewMemoryGateway()
	}
	db, err := sqlx.Open("postgres", c.Security.Postgres.DSN)
	logx.Must(err)
	return useraccount.NewPostgresGateway(db)
}

func buildStores(c config.Config, clk clock.Clock) (refreshstore.Store, blacklist.Blacklist, sessionregistry.Registry) {
	switch c.Security.Store.RefreshBackend {
	case "postgres":
		dsn := c.Security.Postgres.DSN
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		logx.Must(err)
		store := refreshstore.NewPostgresStore(db)
		logx.Must(store.AutoMigrate(context.Background()))
		redisClient := mustRedisClient(c)
		return store, blacklist.NewRedisBlacklist(redisClient), sessionregistry.NewRedisRegistry(redisClient)

	case "mongo":
		client, err := mongo.Connect(context.Background(), mongooptions.Client().ApplyURI(c.Security.Mongo.URI))
		logx.Must(err)
		db := client.Database(c.Security.Mongo.Database)
		store := refreshstore.NewMongoStore(db)
		logx.Must(store.CreateIndexes(context.Background()))
		redisClient := mustRedisClient(c)
		return store, blacklist.NewRedisBlacklist(redisClient), sessionregistry.NewRedisRegistry(redisClient)

	case "memory":
		return refreshstore.NewMemoryStore(clk.Now),
			blacklist.NewMemoryBlacklist(clk),
			sessionregistry.NewMemoryRegistry(clk)

	default: // "redis"
		redisClient := mustRedisClient(c)
		return refreshstore.NewRedisStore(redisClient, c.JWT.Issuer),
			blacklist.NewRedisBlacklist(redisClient),
			sessionregistry.NewRedisRegistry(redisClient)
	}
}
