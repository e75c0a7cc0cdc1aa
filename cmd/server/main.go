package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"healthbff/internal/auth/device"
	"healthbff/internal/auth/resolver"
	"healthbff/internal/cache"
	"healthbff/internal/enrichment"
	"healthbff/internal/events"
	jwttoken "healthbff/internal/jwt_token"
	"healthbff/internal/platform/config"
	"healthbff/internal/platform/httpserver"
	"healthbff/internal/platform/logger"
	"healthbff/internal/platform/metrics"
	"healthbff/internal/platform/redis"
	"healthbff/internal/platform/telemetry"
	"healthbff/internal/policy"
	"healthbff/internal/session/service"
	"healthbff/internal/session/store"
	httptransport "healthbff/internal/transport/http"
	"healthbff/internal/upstream"
	"healthbff/pkg/domain"
	audit "healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/audit/publisher"
	kafkastore "healthbff/pkg/platform/audit/store/kafka"
	pgstore "healthbff/pkg/platform/audit/store/postgres"
	"healthbff/pkg/platform/circuit"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = domain.NewInstanceID()
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdown(log, "telemetry", tp.Shutdown)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks := map[string]httptransport.Checker{}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var (
		sessionStore service.Store
		bus          events.Bus
	)
	if rc != nil {
		defer rc.Close()
		checks["redis"] = rc
		sessionStore = store.NewRedis(rc.Client)
		bus = events.NewRedisBus(rc.Client, cfg.Server.InstanceID, log, m)
	} else {
		log.Warn("no redis configured; sessions and pub/sub are local to this instance")
		sessionStore = store.NewInMemory()
		bus = events.NewMemoryHub().Bus(cfg.Server.InstanceID)
	}

	auditStore, closeAudit, err := buildAuditStore(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeAudit()
	pubOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithDropCounter(m.IncAuditDropped),
	}
	if cfg.Audit.Async {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(cfg.Audit.Buffer))
	}
	auditPublisher := publisher.NewPublisher(auditStore, pubOpts...)
	defer auditPublisher.Close()

	dev := device.NewService(cfg.Session.Fingerprint)
	idTokens, err := buildIDTokenVerifier(cfg.IDToken)
	if err != nil {
		return fmt.Errorf("id token verifier: %w", err)
	}

	clientOpts := []upstream.ClientOption{
		upstream.WithAttemptTimeout(cfg.Upstream.AttemptTimeout),
		upstream.WithRetry(cfg.Upstream.MaxTries, cfg.Upstream.InitialBackoff, cfg.Upstream.MaxBackoff),
		upstream.WithMetrics(m),
		upstream.WithLogger(log),
	}
	if cfg.Upstream.APIKey != "" {
		clientOpts = append(clientOpts, upstream.WithHeader("X-Api-Key", cfg.Upstream.APIKey))
	}
	var (
		userInfo    enrichment.UserInfoFetcher    = upstream.NewUserInfoClient(upstream.NewClient("userinfo", cfg.Upstream.UserInfoURL, clientOpts...))
		eligibility enrichment.EligibilityFetcher = upstream.NewEligibilityClient(upstream.NewClient("eligibility", cfg.Upstream.EligibilityURL, clientOpts...))
		members     enrichment.PermissionsFetcher = upstream.NewPermissionsClient(upstream.NewClient("permissions", cfg.Upstream.PermissionsURL, clientOpts...))
		cacheAdmin  httptransport.CacheAdmin
	)
	if cfg.Cache.Enabled {
		cacheOpts := []cache.Option{
			cache.WithBus(bus),
			cache.WithLocal(cfg.Cache.LocalSize, cfg.Cache.LocalTTL),
			cache.WithOperationTimeout(cfg.Cache.OpTimeout),
			cache.WithBreaker(circuit.New("cache",
				circuit.WithFailureThreshold(cfg.Cache.BreakerThreshold),
				circuit.WithCooldown(cfg.Cache.BreakerCooldown),
			)),
			cache.WithLogger(log),
			cache.WithMetrics(m),
		}
		if rc != nil {
			cacheOpts = append(cacheOpts, cache.WithRedis(rc.Client))
		}
		snapshots := cache.New(cacheOpts...)
		sub, err := snapshots.Start(ctx)
		if err != nil {
			return fmt.Errorf("cache subscribe: %w", err)
		}
		defer sub.Close()

		userInfo = upstream.NewCachedUserInfo(userInfo, snapshots, cfg.Cache.UserInfoTTL)
		eligibility = upstream.NewCachedEligibility(eligibility, snapshots, cfg.Cache.EligibilityTTL)
		members = upstream.NewCachedPermissions(members, snapshots, cfg.Cache.PermissionsTTL)
		cacheAdmin = snapshots
	}

	orchestrator, err := enrichment.New(userInfo, eligibility, members, nil,
		enrichment.WithConfig(enrichment.Config{
			MinimumAge:     cfg.Enrichment.MinimumAge,
			AdultAge:       cfg.Enrichment.AdultAge,
			LoginTimeout:   cfg.Enrichment.LoginTimeout,
			PermissionsTTL: cfg.Enrichment.PermissionsTTL,
		}),
		enrichment.WithLogger(log),
		enrichment.WithMetrics(m),
		enrichment.WithAuditPublisher(auditPublisher),
		enrichment.WithTracerProvider(tp),
	)
	if err != nil {
		return err
	}

	sessions := service.New(sessionStore, bus, dev,
		service.WithConfig(service.Config{
			TTL:              cfg.Session.TTL,
			RotationInterval: cfg.Session.RotationInterval,
			RotationGrace:    cfg.Session.RotationGrace,
			LockTTL:          cfg.Session.LockTTL,
			TouchInterval:    cfg.Session.TouchInterval,
			Binding: service.BindingConfig{
				Enabled:        cfg.Session.Binding,
				CheckIP:        cfg.Session.BindIP,
				CheckUserAgent: cfg.Session.BindUserAgent,
			},
			InvalidateOnBindingMismatch: cfg.Session.InvalidateOnMismatch,
			LocalCacheTTL:               cfg.Session.LocalCacheTTL,
			LocalCacheSize:              cfg.Session.LocalCacheSize,
		}),
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditPublisher),
		service.WithPermissionRefresher(orchestrator),
	)
	orchestrator.SetSessionCreator(sessions)
	sub, err := sessions.Start(ctx)
	if err != nil {
		return fmt.Errorf("session subscribe: %w", err)
	}
	defer sub.Close()

	classifier, err := resolver.NewClassifier(resolver.Patterns{
		Public:      cfg.Paths.Public,
		DualAuth:    cfg.Paths.DualAuth,
		SessionOnly: cfg.Paths.SessionOnly,
		ProxyOnly:   cfg.Paths.ProxyOnly,
	})
	if err != nil {
		return fmt.Errorf("path patterns: %w", err)
	}
	cookie := resolver.CookieConfig{
		Name:     cfg.Cookie.Name,
		Path:     cfg.Cookie.Path,
		Domain:   cfg.Cookie.Domain,
		Secure:   cfg.Cookie.Secure,
		SameSite: sameSite(cfg.Cookie.SameSite),
		MaxAge:   cfg.Session.TTL,
	}
	res := resolver.New(sessions, dev, classifier,
		resolver.WithConfig(resolver.Config{
			Headers: resolver.HeaderNames{
				AuthType:      cfg.Headers.AuthType,
				ClientID:      cfg.Headers.ClientID,
				EnterpriseID:  cfg.Headers.EnterpriseID,
				MemberIDValue: cfg.Headers.MemberIDValue,
				MemberIDType:  cfg.Headers.MemberIDType,
				MemberPersona: cfg.Headers.MemberPersona,
			},
			Cookie:            cookie,
			MinMemberIDLength: cfg.Headers.MinMemberIDLength,
			Rotate:            cfg.Session.Rotate,
		}),
		resolver.WithLogger(log),
		resolver.WithMetrics(m),
		resolver.WithAuditPublisher(auditPublisher),
		resolver.WithTracerProvider(tp),
	)

	engine := policy.NewEngine(policy.DefaultPolicies()...)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:        log,
		Gatherer:      reg,
		Authenticator: res,
		Device:        dev,
		AdminToken:    cfg.Server.AdminToken,
	}, httptransport.Handlers{
		Health: httptransport.NewHealthHandler(checks),
		Auth:   httptransport.NewAuthHandler(orchestrator, idTokens, sessions, dev, cookie, log),
		Access: httptransport.NewAccessHandler(engine, eligibility, log, m, auditPublisher),
		Admin:  httptransport.NewAdminHandler(sessions, cacheAdmin, log, auditPublisher),
	})

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadHeaderTimeout)
	log.Info("starting healthbff",
		"addr", cfg.Server.Addr,
		"instance_id", cfg.Server.InstanceID,
		"version", version,
		"redis", rc != nil,
		"cache", cfg.Cache.Enabled,
	)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}

// buildAuditStore always logs audit events and additionally ships them to
// Kafka and Postgres when those sinks are configured.
func buildAuditStore(ctx context.Context, cfg *config.Config, log *slog.Logger, checks map[string]httptransport.Checker) (audit.Store, func(), error) {
	sinks := audit.Fanout{audit.NewLogStore(log)}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if len(cfg.Audit.KafkaBrokers) > 0 {
		client, err := kafkastore.NewClient(cfg.Audit.KafkaBrokers, cfg.Server.InstanceID)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, client.Close)
		sinks = append(sinks, kafkastore.New(client, cfg.Audit.KafkaTopic))
		checks["kafka"] = checkFunc(client.Ping)
	}

	if cfg.Audit.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{ConnString: cfg.Audit.PostgresDSN})
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("audit database: %w", err)
		}
		closers = append(closers, pool.Close)
		pg := pgstore.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("audit migrations: %w", err)
		}
		sinks = append(sinks, pg)
		checks["postgres"] = checkFunc(pool.Ping)
	}
	return sinks, closeAll, nil
}

func buildIDTokenVerifier(cfg config.IDToken) (*jwttoken.Verifier, error) {
	opts := []jwttoken.Option{jwttoken.WithLeeway(cfg.Leeway)}
	if cfg.PublicKeyFile != "" {
		pemBytes, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, err
		}
		return jwttoken.NewPublicKeyVerifier(pemBytes, cfg.Issuer, cfg.Audience, opts...)
	}
	return jwttoken.NewHMACVerifier(cfg.HMACSecret, cfg.Issuer, cfg.Audience, opts...)
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

func sameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func shutdown(log *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("shutdown failed", "component", name, "error", err)
	}
}
