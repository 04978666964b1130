package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the sync API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
	CRM   CRMConfig
	Sync  SyncConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// CRMConfig describes the remote portal REST endpoint and the
// fetch-client budget applied to every paginated listing.
type CRMConfig struct {
	// PortalURL is the base portal address, e.g. https://example.bitrix24.com.
	PortalURL string
	// WebhookToken is the inbound webhook path segment (user id + token).
	WebhookToken string
	// EntityTypeID identifies the custom target entity (crm.item.* methods).
	EntityTypeID int

	PageTimeout  time.Duration // single page call budget
	FetchTimeout time.Duration // whole listing budget
	PageDelay    time.Duration // rate-limit pause between pages
	MaxRetries   int           // transient retries per page
	RetryBase    time.Duration // linear backoff base (attempt * base)
}

// SyncConfig controls matching and backfill behavior.
type SyncConfig struct {
	// MatchWindow is the symmetric activity-match interval around a call start.
	// Values below one minute are clamped at load.
	MatchWindow time.Duration

	ChunkDays      int
	ProgressStride int

	// IndexKey selects the activity index bucket key: "user" or "phone".
	IndexKey string

	DispositionPrefix string
	Dispositions      []string

	VerifySave           bool
	WriteBackDisposition bool
}

const minMatchWindow = time.Minute

// DefaultDispositions is the fallback outcome catalog scanned inside
// activity result text. Portals usually override via SYNC_DISPOSITIONS.
var DefaultDispositions = []string{
	"MEETING SCHEDULED",
	"SPOKE TO ASSISTANT",
	"FOLLOW-UP",
	"EMAIL FOLLOW-UP",
	"NO INTEREST",
	"VOICEMAIL",
	"LINE BUSY",
	"HUNG UP",
	"MISSED CALL",
	"WRONG NUMBER",
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optInt("DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optInt("REDIS_PORT", 6379)

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL", 0)
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL", 0)

	c.CRM.PortalURL = strings.TrimSpace(os.Getenv("CRM_PORTAL_URL"))
	c.CRM.WebhookToken = strings.TrimSpace(os.Getenv("CRM_WEBHOOK_TOKEN"))
	{
		n, err := mustInt("CRM_ENTITY_TYPE_ID")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.CRM.EntityTypeID = n
	}
	c.CRM.PageTimeout = optDuration("CRM_PAGE_TIMEOUT", 120*time.Second)
	c.CRM.FetchTimeout = optDuration("CRM_FETCH_TIMEOUT", 900*time.Second)
	c.CRM.PageDelay = optDuration("CRM_PAGE_DELAY", 150*time.Millisecond)
	c.CRM.MaxRetries = optInt("CRM_MAX_RETRIES", 3)
	c.CRM.RetryBase = optDuration("CRM_RETRY_BASE", 400*time.Millisecond)

	c.Sync.MatchWindow = optDuration("SYNC_MATCH_WINDOW", 3*time.Minute)
	c.Sync.ChunkDays = optInt("SYNC_CHUNK_DAYS", 7)
	c.Sync.ProgressStride = optInt("SYNC_PROGRESS_STRIDE", 10)
	c.Sync.IndexKey = strings.TrimSpace(os.Getenv("SYNC_INDEX_KEY"))
	if c.Sync.IndexKey == "" {
		c.Sync.IndexKey = "user"
	}
	c.Sync.DispositionPrefix = strings.TrimSpace(os.Getenv("SYNC_DISPOSITION_PREFIX"))
	if c.Sync.DispositionPrefix == "" {
		c.Sync.DispositionPrefix = "[DISPOSITION]"
	}
	c.Sync.Dispositions = splitList(os.Getenv("SYNC_DISPOSITIONS"))
	if len(c.Sync.Dispositions) == 0 {
		c.Sync.Dispositions = DefaultDispositions
	}
	c.Sync.VerifySave = optBool("SYNC_VERIFY_SAVE", false)
	c.Sync.WriteBackDisposition = optBool("SYNC_WRITE_BACK_DISPOSITION", true)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	// Postgres (run history) and Redis (run lock) are mandatory in production.
	// Outside production an empty host degrades to in-memory equivalents,
	// which keeps local development free of external services.
	if c.IsProduction() && c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required in production"))
	}
	if c.DB.Host != "" {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if strings.TrimSpace(c.DB.SSLMode) == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				// Local-friendly default; production must be explicit.
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.IsProduction() && c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required in production"))
	}
	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.CRM.PortalURL == "" {
		errs = append(errs, errors.New("CRM_PORTAL_URL is required"))
	} else if !strings.HasPrefix(c.CRM.PortalURL, "http://") && !strings.HasPrefix(c.CRM.PortalURL, "https://") {
		errs = append(errs, fmt.Errorf("CRM_PORTAL_URL must be an http(s) URL, got %q", c.CRM.PortalURL))
	}
	if c.CRM.WebhookToken == "" {
		errs = append(errs, errors.New("CRM_WEBHOOK_TOKEN is required"))
	}
	if c.CRM.EntityTypeID <= 0 {
		errs = append(errs, fmt.Errorf("CRM_ENTITY_TYPE_ID must be positive, got %d", c.CRM.EntityTypeID))
	}
	if c.CRM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("CRM_MAX_RETRIES must not be negative, got %d", c.CRM.MaxRetries))
	}

	// Pathologically small windows produce empty candidate sets; clamp.
	if c.Sync.MatchWindow < minMatchWindow {
		c.Sync.MatchWindow = minMatchWindow
	}
	if c.Sync.ChunkDays < 1 {
		c.Sync.ChunkDays = 1
	}
	if c.Sync.ProgressStride < 1 {
		c.Sync.ProgressStride = 1
	}
	if c.Sync.IndexKey != "user" && c.Sync.IndexKey != "phone" {
		errs = append(errs, fmt.Errorf("SYNC_INDEX_KEY must be user or phone, got %q", c.Sync.IndexKey))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func optDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func optBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
