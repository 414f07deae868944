// Package kernel assembles the HTTP application: driver, session registry,
// operation mapper, middleware stack and routes.
//
//	k, err := kernel.New(ctx, kernel.FromEnv())
//	go k.Run(ctx)
//	http.ListenAndServe(":7860", k.Handler())
package kernel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/shashiranjanraj/drivegate/app/controllers"
	"github.com/shashiranjanraj/drivegate/app/routes"
	"github.com/shashiranjanraj/drivegate/app/services"
	"github.com/shashiranjanraj/drivegate/config"
	"github.com/shashiranjanraj/drivegate/internal/gateway"
	"github.com/shashiranjanraj/drivegate/internal/session"
	"github.com/shashiranjanraj/drivegate/pkg/cache"
	"github.com/shashiranjanraj/drivegate/pkg/drive"
	"github.com/shashiranjanraj/drivegate/pkg/logger"
	"github.com/shashiranjanraj/drivegate/pkg/metrics"
	"github.com/shashiranjanraj/drivegate/pkg/middleware"
	"github.com/shashiranjanraj/drivegate/pkg/reqid"
	"github.com/shashiranjanraj/drivegate/pkg/response"
	"github.com/shashiranjanraj/drivegate/pkg/router"
	"github.com/shashiranjanraj/drivegate/pkg/workerpool"
)

// Version is reported on GET /.
var Version = "dev"

// Config is everything the kernel needs. FromEnv fills it from the config
// package; tests build it directly.
type Config struct {
	Driver string
	Drive  drive.Options

	AuthMode         services.Mode
	CredentialHeader string
	SessionHeader    string
	Secret           []byte
	TokenTTL         time.Duration
	Session          session.Options

	PublicURL string
	LinkTTL   time.Duration

	UploadMaxBytes  int64
	TempDir         string
	TransferWorkers int
	RequestTimeout  time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	// TrustedProxies may report the client address via X-Forwarded-For.
	TrustedProxies []string

	CacheDriver string
	QuotaTTL    time.Duration

	// Metrics mounts GET /metrics.
	Metrics bool
}

// FromEnv reads Config from the layered configuration.
func FromEnv() Config {
	return Config{
		Driver: config.DriveDriver(),
		Drive: drive.Options{
			Memory: drive.MemoryOptions{
				Credentials: config.List("MEMORY_CREDENTIALS"),
				Seed:        config.Bool("MEMORY_SEED", true),
			},
			Local: drive.LocalOptions{
				Root:       config.Get("DRIVE_LOCAL_ROOT", "storage/accounts"),
				QuotaBytes: config.Int64("LOCAL_QUOTA_BYTES", 0),
			},
			S3: drive.S3Options{
				Bucket:     config.Get("S3_BUCKET", ""),
				Region:     config.Get("S3_REGION", "us-east-1"),
				Endpoint:   config.Get("S3_ENDPOINT", ""),
				QuotaBytes: config.Int64("S3_QUOTA_BYTES", 0),
				LinkTTL:    config.Duration("LINK_TTL", 5*time.Minute),
			},
		},

		AuthMode:         services.ParseMode(config.AuthMode()),
		CredentialHeader: config.CredentialHeader(),
		SessionHeader:    config.SessionHeader(),
		Secret:           []byte(config.JWTSecret()),
		TokenTTL:         config.Duration("SESSION_TOKEN_TTL", 0),
		Session: session.Options{
			Policy:        session.ParsePolicy(config.Get("SESSION_POLICY", "manual")),
			IdleTimeout:   config.Duration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			SweepInterval: config.Duration("SESSION_SWEEP_INTERVAL", time.Minute),
			MaxSessions:   config.Int("SESSION_MAX", 0),
			LoginTimeout:  config.Duration("LOGIN_TIMEOUT", 30*time.Second),
		},

		PublicURL: config.PublicURL(),
		LinkTTL:   config.Duration("LINK_TTL", 5*time.Minute),

		UploadMaxBytes:  config.UploadMaxBytes(),
		TempDir:         config.Get("TEMP_DIR", ""),
		TransferWorkers: config.Int("TRANSFER_WORKERS", 8),
		RequestTimeout:  config.Duration("REQUEST_TIMEOUT", 10*time.Minute),

		RateLimitRPS:   config.Float("RATE_LIMIT_RPS", 20),
		RateLimitBurst: config.Int("RATE_LIMIT_BURST", 40),
		CORSOrigins:    config.List("CORS_ORIGINS"),
		TrustedProxies: config.List("TRUSTED_PROXIES"),

		CacheDriver: config.CacheDriver(),
		QuotaTTL:    config.Duration("QUOTA_CACHE_TTL", 0),

		Metrics: true,
	}
}

// Kernel owns the long-lived pieces behind the handler.
type Kernel struct {
	cfg      Config
	driver   drive.Driver
	registry *session.Registry
	tokens   *session.Tokens
	links    *drive.LinkSigner
	pool     *workerpool.Pool
	limiter  *middleware.RateLimiter
	store    cache.Store
	router   *router.Router
}

// New builds the driver, registry and routes described by cfg.
func New(ctx context.Context, cfg Config) (*Kernel, error) {
	k := &Kernel{cfg: cfg}

	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
			return nil, fmt.Errorf("kernel: temp dir: %w", err)
		}
	}

	if err := middleware.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	k.tokens = session.NewTokens(cfg.Secret, cfg.TokenTTL)
	k.links = drive.NewLinkSigner(k.tokens.Secret(), cfg.PublicURL, cfg.LinkTTL)

	opts := cfg.Drive
	opts.Links = k.links
	driver, err := drive.Open(cfg.Driver, opts)
	if err != nil {
		return nil, err
	}
	k.driver = driver
	if o, ok := driver.(drive.BlobOpener); ok {
		k.links.Register(driver.Name(), o)
	}

	sessOpts := cfg.Session
	sessOpts.OnEvict = func(key, _ string) { k.tokens.ForgetKey(key) }
	k.registry = session.NewRegistry(driver, sessOpts)

	if cfg.QuotaTTL > 0 {
		store, err := cache.New(ctx, cfg.CacheDriver)
		if err != nil {
			return nil, err
		}
		k.store = store
	}

	k.pool = workerpool.New(cfg.TransferWorkers)
	k.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	k.router = k.buildRouter()

	if err := k.registerGauges(); err != nil {
		return nil, err
	}

	logger.Info("kernel: ready",
		"driver", driver.Name(),
		"auth_mode", string(cfg.AuthMode),
		"session_policy", string(sessOpts.Policy),
		"cache", cacheDriver(k.store),
	)
	return k, nil
}

func (k *Kernel) registerGauges() error {
	if err := metrics.GaugeFunc("ratelimit", "clients",
		"Clients currently tracked by the rate limiter.",
		func() float64 { return float64(k.limiter.Len()) }); err != nil {
		return err
	}
	return metrics.GaugeFunc("session", "tokens",
		"Session ids currently mapped to a live session.",
		func() float64 { return float64(k.tokens.Len()) })
}

func cacheDriver(s cache.Store) string {
	if s == nil {
		return "none"
	}
	return s.Driver()
}

func (k *Kernel) buildRouter() *router.Router {
	cfg := k.cfg
	r := router.New()

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics
	//  2. Recovery
	//  3. Request ID
	//  4. Logger
	//  5. CORS
	//  6. Rate limiter
	//  7. Body cap and request deadline
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.CORSFromList(cfg.CORSOrigins)))
	r.Use(k.limiter.Handler)
	r.Use(middleware.BodyLimit(cfg.UploadMaxBytes))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { response.MethodNotAllowed(w) })

	mapper := gateway.New(gateway.Options{
		TempDir:    cfg.TempDir,
		QuotaCache: k.store,
		QuotaTTL:   cfg.QuotaTTL,
	})
	auth := services.NewAuthService(k.registry, k.tokens, services.AuthOptions{
		Mode:             cfg.AuthMode,
		CredentialHeader: cfg.CredentialHeader,
		SessionHeader:    cfg.SessionHeader,
	})

	deps := routes.Deps{
		System: controllers.NewSystemController(controllers.SystemInfo{
			Name:    "drivegate",
			Version: Version,
			Driver:  k.driver.Name(),
			Mode:    string(cfg.AuthMode),
		}, r.Routes, k.registry.Len),
		Auth:    controllers.NewAuthController(auth),
		Drive:   controllers.NewDriveController(mapper, k.pool),
		Session: auth,
	}
	if _, ok := k.driver.(drive.BlobOpener); ok {
		deps.Links = k.links
	}
	if cfg.Metrics {
		deps.Metrics = metrics.Handler()
	}

	routes.RegisterAPI(r, deps)
	return r
}

// Handler returns the root handler.
func (k *Kernel) Handler() http.Handler { return k.router.Handler() }

// Routes lists the registered routes.
func (k *Kernel) Routes() []router.Route { return k.router.Routes() }

// Registry exposes the session registry.
func (k *Kernel) Registry() *session.Registry { return k.registry }

// Driver exposes the configured drive driver.
func (k *Kernel) Driver() drive.Driver { return k.driver }

// Run drives the background janitors until ctx ends.
func (k *Kernel) Run(ctx context.Context) {
	go k.limiter.Run(ctx)
	go k.registry.Run(ctx)
	<-ctx.Done()
}

// Close stops the transfer pool and releases the cache connection.
func (k *Kernel) Close() error {
	k.pool.Shutdown()
	if c, ok := k.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
