package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the noyel service.
type Config struct {
	Addr               string        `env:"ADDR,default=:8080"`
	DBDSN              string        `env:"DB_DSN,required"`
	SecretKey          string        `env:"SECRET_KEY"`
	SiteName           string        `env:"SITE_NAME,default=noyel"`
	SiteURL            string        `env:"SITE_URL,default=http://localhost:8080"`
	RedisURL           string        `env:"REDIS_URL"`
	NATSURL            string        `env:"NATS_URL"`
	SMTPHost           string        `env:"SMTP_HOST"`
	SMTPPort           int           `env:"SMTP_PORT,default=587"`
	SMTPUser           string        `env:"SMTP_USER"`
	SMTPPassword       string        `env:"SMTP_PASS"`
	MailFrom           string        `env:"MAIL_FROM,default=noyel@localhost"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	SessionTTL         time.Duration `env:"SESSION_TTL,default=336h"`
	PasswordResetTTL   time.Duration `env:"PASSWORD_RESET_TTL,default=72h"`
	CookieDomain       string        `env:"COOKIE_DOMAIN"`
	CookieSecure       bool          `env:"COOKIE_SECURE,default=false"`
	BcryptCost         int           `env:"BCRYPT_COST,default=12"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE,default=100"`
	AgeSecretKey       string        `env:"AGE_SECRET_KEY"`
	ExportRecipient    string        `env:"EXPORT_RECIPIENT"`
	S3                 S3            `env:", prefix=S3_"`
}

// S3 holds object storage settings used for account exports.
type S3 struct {
	Endpoint     string `env:"ENDPOINT"`
	Region       string `env:"REGION,default=us-east-1"`
	AccessKey    string `env:"ACCESS_KEY"`
	SecretKey    string `env:"SECRET_KEY"`
	Bucket       string `env:"BUCKET"`
	UsePathStyle bool   `env:"USE_PATH_STYLE,default=true"`
}

// Enabled reports whether exports should be uploaded to object storage.
func (s S3) Enabled() bool {
	return s.Bucket != ""
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return loadWith(ctx, envconfig.OsLookuper())
}

func loadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings required to serve HTTP traffic.
func (c Config) Validate() error {
	var errs []error
	if len(c.SecretKey) < 32 {
		errs = append(errs, errors.New("SECRET_KEY must be at least 32 characters"))
	}
	if u, err := url.Parse(c.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("SITE_URL %q is not an absolute URL", c.SiteURL))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.PasswordResetTTL <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_TTL must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range 4..31", c.BcryptCost))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if c.S3.Enabled() && c.AgeSecretKey == "" {
		errs = append(errs, errors.New("AGE_SECRET_KEY is required when S3_BUCKET is set"))
	}
	return errors.Join(errs...)
}
