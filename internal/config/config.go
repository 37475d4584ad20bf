package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity provider名
const (
	IdentityProviderGoTrue = "gotrue"
	IdentityProviderLocal  = "local"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL     string
	FallbackEnabled bool

	// Session
	SessionSecret string
	SessionMaxAge int

	// Identity provider
	IdentityProvider    string
	GoTrueURL           string
	GoTrueServiceKey    string
	GoTrueJWTSecret     string
	LocalIdentitiesPath string

	// Object storage
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicBaseURL string

	// Upload
	UploadMaxBytes     int64
	UploadFetchTimeout time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Server
	ServerPort string
	BaseURL    string
	StaticDir  string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS / CSRF
	CORSAllowedOrigin string
	CSRFEnabled       bool

	// TrustedProxies はX-Forwarded-For/X-Real-IPを信頼するプロキシのCIDR。空の場合は信頼しない。
	TrustedProxies []netip.Prefix

	// Logging
	LogLevel string
}

// UploadEnabled はオブジェクトストレージの認証情報が揃っているかを返す。
func (c *Config) UploadEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// LoadDotEnv は.envファイルを環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.IdentityProvider = getEnvString("IDENTITY_PROVIDER", IdentityProviderGoTrue)
	switch cfg.IdentityProvider {
	case IdentityProviderGoTrue:
		cfg.GoTrueURL = strings.TrimRight(os.Getenv("GOTRUE_URL"), "/")
		if cfg.GoTrueURL == "" {
			missing = append(missing, "GOTRUE_URL")
		}
		cfg.GoTrueServiceKey = os.Getenv("GOTRUE_SERVICE_KEY")
		if cfg.GoTrueServiceKey == "" {
			missing = append(missing, "GOTRUE_SERVICE_KEY")
		}
	case IdentityProviderLocal:
	default:
		return nil, fmt.Errorf("unknown IDENTITY_PROVIDER %q (want %q or %q)",
			cfg.IdentityProvider, IdentityProviderGoTrue, IdentityProviderLocal)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FallbackEnabled = getEnvBool("FALLBACK_ENABLED", true)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.GoTrueJWTSecret = getEnvString("GOTRUE_JWT_SECRET", "")
	cfg.LocalIdentitiesPath = getEnvString("LOCAL_IDENTITIES_PATH", "./identities.yaml")
	cfg.S3Endpoint = getEnvString("S3_ENDPOINT", "")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3Bucket = getEnvString("S3_BUCKET", "receipts")
	cfg.S3AccessKey = getEnvString("S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvString("S3_SECRET_KEY", "")
	cfg.S3PublicBaseURL = strings.TrimRight(getEnvString("S3_PUBLIC_BASE_URL", ""), "/")
	cfg.UploadMaxBytes = getEnvInt64("UPLOAD_MAX_BYTES", 5242880)
	cfg.UploadFetchTimeout = getEnvDuration("UPLOAD_FETCH_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.StaticDir = getEnvString("STATIC_DIR", "")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")
	cfg.CSRFEnabled = getEnvBool("CSRF_ENABLED", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	proxies, err := parsePrefixes(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	return cfg, nil
}

// parsePrefixes はカンマ区切りのCIDRまたは単一IPを解析する。
func parsePrefixes(s string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
