// Package config parses gateway configuration from flags and environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/alecthomas/kong"
)

type Config struct {
	Server     Server     `embed:"" prefix:"server-"`
	Log        Log        `embed:"" prefix:"log-"`
	Redis      Redis      `embed:"" prefix:"redis-"`
	Session    Session    `embed:"" prefix:"session-"`
	Cookie     Cookie     `embed:"" prefix:"cookie-"`
	IDToken    IDToken    `embed:"" prefix:"idtoken-"`
	Paths      Paths      `embed:"" prefix:"paths-"`
	Headers    Headers    `embed:"" prefix:"header-"`
	Upstream   Upstream   `embed:"" prefix:"upstream-"`
	Enrichment Enrichment `embed:"" prefix:"enrichment-"`
	Cache      Cache      `embed:"" prefix:"cache-"`
	Audit      Audit      `embed:"" prefix:"audit-"`
	Telemetry  Telemetry  `embed:"" prefix:"telemetry-"`
}

type Server struct {
	Addr              string        `help:"HTTP listen address" default:":8080" env:"HEALTHBFF_ADDR"`
	ReadHeaderTimeout time.Duration `help:"HTTP read header timeout" default:"5s" env:"HEALTHBFF_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `help:"graceful shutdown budget" default:"15s" env:"HEALTHBFF_SHUTDOWN_TIMEOUT"`
	InstanceID        string        `help:"pub/sub instance id; generated when empty" env:"HEALTHBFF_INSTANCE_ID"`
	AdminToken        string        `help:"token required on /admin endpoints; admin disabled when empty" env:"HEALTHBFF_ADMIN_TOKEN"`
}

type Log struct {
	Level  string `help:"log level" default:"info" enum:"debug,info,warn,error" env:"HEALTHBFF_LOG_LEVEL"`
	Format string `help:"log format" default:"json" enum:"json,text,console" env:"HEALTHBFF_LOG_FORMAT"`
}

type Redis struct {
	URL          string        `help:"Redis URL; in-memory stores are used when empty" env:"HEALTHBFF_REDIS_URL"`
	PoolSize     int           `help:"connection pool size" default:"10" env:"HEALTHBFF_REDIS_POOL_SIZE"`
	MinIdleConns int           `help:"minimum idle connections" default:"2" env:"HEALTHBFF_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `help:"dial timeout" default:"2s" env:"HEALTHBFF_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `help:"read timeout" default:"1s" env:"HEALTHBFF_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `help:"write timeout" default:"1s" env:"HEALTHBFF_REDIS_WRITE_TIMEOUT"`
}

type Session struct {
	TTL                  time.Duration `help:"session lifetime, sliding" default:"30m" env:"HEALTHBFF_SESSION_TTL"`
	RotationInterval     time.Duration `help:"session id rotation interval" default:"15m" env:"HEALTHBFF_SESSION_ROTATION_INTERVAL"`
	RotationGrace        time.Duration `help:"how long a rotated-away id keeps working" default:"30s" env:"HEALTHBFF_SESSION_ROTATION_GRACE"`
	LockTTL              time.Duration `help:"rotation lock lifetime" default:"10s" env:"HEALTHBFF_SESSION_LOCK_TTL"`
	TouchInterval        time.Duration `help:"minimum gap between sliding-expiry writes" default:"1m" env:"HEALTHBFF_SESSION_TOUCH_INTERVAL"`
	Rotate               bool          `help:"rotate session ids" default:"true" negatable:"" env:"HEALTHBFF_SESSION_ROTATE"`
	Binding              bool          `help:"bind sessions to the client device" default:"true" negatable:"" env:"HEALTHBFF_SESSION_BINDING"`
	Fingerprint          bool          `help:"compute device fingerprints" default:"true" negatable:"" env:"HEALTHBFF_SESSION_FINGERPRINT"`
	BindIP               bool          `help:"bind to client IP when no fingerprint is stored" default:"false" env:"HEALTHBFF_SESSION_BIND_IP"`
	BindUserAgent        bool          `help:"bind to user agent when no fingerprint is stored" default:"true" negatable:"" env:"HEALTHBFF_SESSION_BIND_USER_AGENT"`
	InvalidateOnMismatch bool          `help:"invalidate the session on a binding mismatch" default:"true" negatable:"" env:"HEALTHBFF_SESSION_INVALIDATE_ON_MISMATCH"`
	LocalCacheTTL        time.Duration `help:"per-instance session cache lifetime; 0 disables" default:"5s" env:"HEALTHBFF_SESSION_LOCAL_CACHE_TTL"`
	LocalCacheSize       int           `help:"per-instance session cache entries" default:"10000" env:"HEALTHBFF_SESSION_LOCAL_CACHE_SIZE"`
}

type Cookie struct {
	Name     string `help:"session cookie name" default:"BFF_SESSION" env:"HEALTHBFF_COOKIE_NAME"`
	Domain   string `help:"session cookie domain" env:"HEALTHBFF_COOKIE_DOMAIN"`
	Path     string `help:"session cookie path" default:"/" env:"HEALTHBFF_COOKIE_PATH"`
	Secure   bool   `help:"mark the session cookie Secure" default:"true" negatable:"" env:"HEALTHBFF_COOKIE_SECURE"`
	SameSite string `name:"samesite" help:"session cookie SameSite" default:"lax" enum:"lax,strict,none" env:"HEALTHBFF_COOKIE_SAMESITE"`
}

// IDToken configures verification of the IdP's ID token at login. Exactly
// one of HMACSecret and PublicKeyFile is set.
type IDToken struct {
	Issuer        string        `help:"expected iss claim" env:"HEALTHBFF_IDTOKEN_ISSUER"`
	Audience      string        `help:"expected aud claim" default:"healthbff" env:"HEALTHBFF_IDTOKEN_AUDIENCE"`
	HMACSecret    string        `name:"hmac-secret" help:"shared secret for HS256 ID tokens" env:"HEALTHBFF_IDTOKEN_HMAC_SECRET"`
	PublicKeyFile string        `help:"PEM RSA or ECDSA public key of the IdP" type:"path" env:"HEALTHBFF_IDTOKEN_PUBLIC_KEY_FILE"`
	Leeway        time.Duration `help:"clock skew tolerated on token times" default:"30s" env:"HEALTHBFF_IDTOKEN_LEEWAY"`
}

// Paths are glob templates: "*" is one segment, "**" any depth.
type Paths struct {
	Public      []string `help:"paths needing no authentication" default:"/health,/metrics,/auth/login,/admin/**" env:"HEALTHBFF_PATHS_PUBLIC"`
	DualAuth    []string `help:"paths open to either channel" default:"/api/v1/session,/api/v1/authorize" env:"HEALTHBFF_PATHS_DUAL_AUTH"`
	SessionOnly []string `help:"paths requiring a member session" default:"/api/v1/**" env:"HEALTHBFF_PATHS_SESSION_ONLY"`
	ProxyOnly   []string `help:"paths requiring partner authentication" default:"/api/partner/**" env:"HEALTHBFF_PATHS_PROXY_ONLY"`
}

type Headers struct {
	AuthType          string `help:"auth type header" default:"X-Auth-Type" env:"HEALTHBFF_HEADER_AUTH_TYPE"`
	ClientID          string `help:"partner client id header" default:"X-Client-Id" env:"HEALTHBFF_HEADER_CLIENT_ID"`
	EnterpriseID      string `help:"target member header" default:"X-Enterprise-Id" env:"HEALTHBFF_HEADER_ENTERPRISE_ID"`
	MemberIDValue     string `help:"operator id header" default:"X-Logged-In-Member-Id-Value" env:"HEALTHBFF_HEADER_MEMBER_ID_VALUE"`
	MemberIDType      string `help:"operator id type header" default:"X-Logged-In-Member-Id-Type" env:"HEALTHBFF_HEADER_MEMBER_ID_TYPE"`
	MemberPersona     string `help:"operator persona header" default:"X-Logged-In-Member-Persona" env:"HEALTHBFF_HEADER_MEMBER_PERSONA"`
	MinMemberIDLength int    `help:"shortest accepted operator id" default:"3" env:"HEALTHBFF_HEADER_MIN_MEMBER_ID_LENGTH"`
}

type Upstream struct {
	UserInfoURL    string        `name:"userinfo-url" help:"identity service base URL" default:"http://localhost:9001" env:"HEALTHBFF_UPSTREAM_USERINFO_URL"`
	EligibilityURL string        `name:"eligibility-url" help:"eligibility service base URL" default:"http://localhost:9002" env:"HEALTHBFF_UPSTREAM_ELIGIBILITY_URL"`
	PermissionsURL string        `name:"permissions-url" help:"permissions service base URL" default:"http://localhost:9003" env:"HEALTHBFF_UPSTREAM_PERMISSIONS_URL"`
	APIKey         string        `help:"API key sent to every backend" env:"HEALTHBFF_UPSTREAM_API_KEY"`
	AttemptTimeout time.Duration `help:"per-attempt timeout" default:"2s" env:"HEALTHBFF_UPSTREAM_ATTEMPT_TIMEOUT"`
	MaxTries       uint          `help:"attempts per call including the first" default:"3" env:"HEALTHBFF_UPSTREAM_MAX_TRIES"`
	InitialBackoff time.Duration `help:"first retry delay" default:"100ms" env:"HEALTHBFF_UPSTREAM_INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `help:"retry delay cap" default:"1s" env:"HEALTHBFF_UPSTREAM_MAX_BACKOFF"`
}

type Enrichment struct {
	MinimumAge     int           `help:"youngest member allowed to log in" default:"13" env:"HEALTHBFF_ENRICHMENT_MINIMUM_AGE"`
	AdultAge       int           `help:"youngest member allowed to act as a delegate" default:"18" env:"HEALTHBFF_ENRICHMENT_ADULT_AGE"`
	LoginTimeout   time.Duration `help:"backend budget for one login" default:"5s" env:"HEALTHBFF_ENRICHMENT_LOGIN_TIMEOUT"`
	PermissionsTTL time.Duration `help:"how long a fetched permission set is trusted" default:"300s" env:"HEALTHBFF_ENRICHMENT_PERMISSIONS_TTL"`
}

type Cache struct {
	Enabled          bool          `help:"cache backend lookups" default:"true" negatable:"" env:"HEALTHBFF_CACHE_ENABLED"`
	LocalSize        int           `help:"per-instance cache entries" default:"10000" env:"HEALTHBFF_CACHE_LOCAL_SIZE"`
	LocalTTL         time.Duration `help:"per-instance cache lifetime" default:"30s" env:"HEALTHBFF_CACHE_LOCAL_TTL"`
	UserInfoTTL      time.Duration `help:"identity cache lifetime" default:"5m" env:"HEALTHBFF_CACHE_USERINFO_TTL"`
	EligibilityTTL   time.Duration `help:"eligibility cache lifetime" default:"5m" env:"HEALTHBFF_CACHE_ELIGIBILITY_TTL"`
	PermissionsTTL   time.Duration `help:"managed member cache lifetime" default:"5m" env:"HEALTHBFF_CACHE_PERMISSIONS_TTL"`
	OpTimeout        time.Duration `help:"shared cache operation timeout" default:"200ms" env:"HEALTHBFF_CACHE_OP_TIMEOUT"`
	BreakerThreshold int           `help:"consecutive failures before the shared cache is skipped" default:"5" env:"HEALTHBFF_CACHE_BREAKER_THRESHOLD"`
	BreakerCooldown  time.Duration `help:"probe interval while the shared cache is skipped" default:"5s" env:"HEALTHBFF_CACHE_BREAKER_COOLDOWN"`
}

type Audit struct {
	Async        bool     `help:"emit audit events off the request path" default:"true" negatable:"" env:"HEALTHBFF_AUDIT_ASYNC"`
	Buffer       int      `help:"async audit queue size" default:"1024" env:"HEALTHBFF_AUDIT_BUFFER"`
	KafkaBrokers []string `help:"Kafka seed brokers for the audit topic" env:"HEALTHBFF_AUDIT_KAFKA_BROKERS"`
	KafkaTopic   string   `help:"audit topic" default:"bff.audit" env:"HEALTHBFF_AUDIT_KAFKA_TOPIC"`
	PostgresDSN  string   `help:"Postgres DSN for the audit table" env:"HEALTHBFF_AUDIT_POSTGRES_DSN"`
}

type Telemetry struct {
	OTLPEndpoint string  `help:"OTLP gRPC endpoint; tracing disabled when empty" env:"HEALTHBFF_OTLP_ENDPOINT"`
	Insecure     bool    `help:"disable TLS to the OTLP endpoint" default:"false" env:"HEALTHBFF_OTLP_INSECURE"`
	ServiceName  string  `help:"service name on exported spans" default:"healthbff" env:"HEALTHBFF_SERVICE_NAME"`
	SampleRatio  float64 `help:"fraction of traces sampled" default:"1.0" env:"HEALTHBFF_TRACE_SAMPLE_RATIO"`
}

// Load parses args and the environment, then validates the result.
func Load(args []string, opts ...kong.Option) (*Config, error) {
	var cfg Config
	base := []kong.Option{
		kong.Name("healthbff"),
		kong.Description("Health member gateway with session and partner authentication."),
	}
	parser, err := kong.New(&cfg, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("build config parser: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field invariants kong cannot express.
func (c *Config) Validate() error {
	var errs []error
	s := c.Session
	if s.TTL <= 0 || s.RotationInterval <= 0 || s.RotationGrace <= 0 || s.LockTTL <= 0 {
		errs = append(errs, errors.New("session durations must be positive"))
	}
	if s.LockTTL >= s.RotationInterval {
		errs = append(errs, errors.New("session lock TTL must be shorter than the rotation interval"))
	}
	if s.RotationInterval >= s.TTL {
		errs = append(errs, errors.New("session rotation interval must be shorter than the session TTL"))
	}
	if s.RotationGrace >= s.RotationInterval {
		errs = append(errs, errors.New("session rotation grace must be shorter than the rotation interval"))
	}
	if c.Cookie.Name == "" {
		errs = append(errs, errors.New("cookie name is required"))
	}
	if c.IDToken.Issuer == "" || c.IDToken.Audience == "" {
		errs = append(errs, errors.New("id token issuer and audience are required"))
	}
	if (c.IDToken.HMACSecret == "") == (c.IDToken.PublicKeyFile == "") {
		errs = append(errs, errors.New("exactly one of the id token HMAC secret and public key file is required"))
	}
	if c.IDToken.Leeway < 0 {
		errs = append(errs, errors.New("id token leeway must not be negative"))
	}
	if c.Headers.MinMemberIDLength < 1 {
		errs = append(errs, errors.New("minimum member id length must be at least 1"))
	}
	if c.Enrichment.MinimumAge < 0 || c.Enrichment.MinimumAge >= c.Enrichment.AdultAge {
		errs = append(errs, errors.New("minimum age must be non-negative and below the adult age"))
	}
	if c.Enrichment.LoginTimeout <= 0 {
		errs = append(errs, errors.New("login timeout must be positive"))
	}
	for name, raw := range map[string]string{
		"userinfo":    c.Upstream.UserInfoURL,
		"eligibility": c.Upstream.EligibilityURL,
		"permissions": c.Upstream.PermissionsURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("upstream %s URL %q is not absolute", name, raw))
		}
	}
	if c.Upstream.MaxTries < 1 {
		errs = append(errs, errors.New("upstream max tries must be at least 1"))
	}
	if c.Audit.Async && c.Audit.Buffer <= 0 {
		errs = append(errs, errors.New("async audit needs a positive buffer"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("trace sample ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}
