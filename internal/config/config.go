package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Membership MembershipConfig `yaml:"membership"`
	Upload     UploadConfig     `yaml:"upload"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"` // debug, release, test
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects the driver. DSN wins when set; otherwise one is
// assembled from the discrete fields for mysql and postgres.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite, mysql, postgres
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	DBName       string `yaml:"dbname"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type JWTConfig struct {
	Secret              string `yaml:"secret"`
	ExpireHour          int    `yaml:"expire_hour"`
	SignupExpireMinutes int    `yaml:"signup_expire_minutes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Admin no-op policies. See MembershipConfig.
const (
	AdminNoopSuppress = "suppress"
	AdminNoopRecord   = "record"
	AdminNoopReject   = "reject"
)

// MembershipConfig holds the policy knobs of the membership core.
// AdminNoopPolicy decides what setAdmin does when the flag already has
// the requested value: succeed silently, succeed and write a history
// record anyway, or fail with REDUNDANT_CHANGE.
type MembershipConfig struct {
	AdminNoopPolicy string `yaml:"admin_noop_policy"`
}

// Upload drivers. See UploadConfig.
const (
	UploadDriverMock = "mock"
	UploadDriverS3   = "s3"
)

// UploadConfig selects the presigner. The s3 driver signs with the AWS
// default credential chain; Endpoint points it at an S3-compatible store.
type UploadConfig struct {
	Driver        string `yaml:"driver"` // mock, s3
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	URLTTLSeconds int    `yaml:"url_ttl_seconds"`
	KeyPrefix     string `yaml:"key_prefix"`
}

type RateLimitConfig struct {
	SignupRPS   float64 `yaml:"signup_rps"`
	SignupBurst int     `yaml:"signup_burst"`
	APIRPS      float64 `yaml:"api_rps"`
	APIBurst    int     `yaml:"api_burst"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			Mode:           "debug",
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "waffice.db",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		JWT: JWTConfig{
			Secret:              "waffice-secret-key-change-in-production",
			ExpireHour:          24,
			SignupExpireMinutes: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Membership: MembershipConfig{
			AdminNoopPolicy: AdminNoopSuppress,
		},
		Upload: UploadConfig{
			Driver:        UploadDriverMock,
			Bucket:        "waffice-uploads",
			Region:        "ap-northeast-2",
			URLTTLSeconds: 900,
			KeyPrefix:     "uploads",
		},
		RateLimit: RateLimitConfig{
			SignupRPS:   0.5,
			SignupBurst: 5,
			APIRPS:      20,
			APIBurst:    40,
		},
	}
}

func (c *Config) overrideFromEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = v
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
			*dst = v
		}
	}

	setString("SERVER_HOST", &c.Server.Host)
	setString("SERVER_PORT", &c.Server.Port)
	setString("SERVER_MODE", &c.Server.Mode)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(strings.ReplaceAll(v, " ", ""), ",")
	}
	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_DSN", &c.Database.DSN)
	setString("DB_HOST", &c.Database.Host)
	setInt("DB_PORT", &c.Database.Port)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.DBName)
	setString("JWT_SECRET", &c.JWT.Secret)
	setInt("JWT_EXPIRE_HOURS", &c.JWT.ExpireHour)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)
	setString("ADMIN_NOOP_POLICY", &c.Membership.AdminNoopPolicy)
	setString("UPLOAD_DRIVER", &c.Upload.Driver)
	setString("UPLOAD_ENDPOINT", &c.Upload.Endpoint)
	setString("UPLOAD_BUCKET", &c.Upload.Bucket)
	setString("UPLOAD_REGION", &c.Upload.Region)
	setInt("UPLOAD_URL_TTL", &c.Upload.URLTTLSeconds)
	setFloat("SIGNUP_RATE_RPS", &c.RateLimit.SignupRPS)
	setInt("SIGNUP_RATE_BURST", &c.RateLimit.SignupBurst)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Membership.AdminNoopPolicy {
	case AdminNoopSuppress, AdminNoopRecord, AdminNoopReject:
	default:
		return fmt.Errorf("unknown admin_noop_policy: %q", c.Membership.AdminNoopPolicy)
	}
	switch c.Upload.Driver {
	case UploadDriverMock, UploadDriverS3:
	default:
		return fmt.Errorf("unsupported upload driver: %s", c.Upload.Driver)
	}
	if c.Server.Mode == "release" && (c.JWT.Secret == "" || c.JWT.Secret == DefaultConfig().JWT.Secret) {
		return fmt.Errorf("jwt.secret must be set in release mode")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must not be empty")
	}
	return nil
}

// DataSource returns the DSN for the configured driver.
func (d DatabaseConfig) DataSource() string {
	if d.DSN != "" && (d.Driver == "sqlite" || d.Host == "") {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		port := d.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, port, d.DBName)
	case "postgres":
		port := d.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			d.Host, port, d.User, d.Password, d.DBName)
	}
	return d.DSN
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
