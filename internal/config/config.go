package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Campaign  CampaignConfig  `mapstructure:"campaign"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	// sqlite 使用的文件路径，":memory:" 表示内存库
	Path string
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
	S3Endpoint    string `mapstructure:"s3_endpoint"`
	S3Region      string `mapstructure:"s3_region"`
	S3AccessKey   string `mapstructure:"s3_access_key"`
	S3SecretKey   string `mapstructure:"s3_secret_key"`
	S3Bucket      string `mapstructure:"s3_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CampaignConfig 步数挑战的业务规则，可热更新
type CampaignConfig struct {
	Timezone               string        `mapstructure:"timezone"`
	Cooldown               time.Duration `mapstructure:"cooldown"`
	MaxStepCount           int           `mapstructure:"max_step_count"`
	EvidenceExemptBelow    int           `mapstructure:"evidence_exempt_below"`
	ReviewThreshold        int           `mapstructure:"review_threshold"`
	DeleteEvidenceOnVerify bool          `mapstructure:"delete_evidence_on_verify"`
	MaxUploadBytes         int64         `mapstructure:"max_upload_bytes"`
	MaxPixels              int           `mapstructure:"max_pixels"`
	JPEGQuality            int           `mapstructure:"jpeg_quality"`
	KmPerStep              float64       `mapstructure:"km_per_step"`
	KcalPerStep            float64       `mapstructure:"kcal_per_step"`
	LevelBreakpoints       []int         `mapstructure:"level_breakpoints"`
	ConfirmationTTL        time.Duration `mapstructure:"confirmation_ttl"`
	ResetRequiresPassword  bool          `mapstructure:"reset_requires_password"`
}

// Location 返回活动所在时区，无法解析时退回本地时区
func (c CampaignConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DefaultCampaign 返回活动规则的默认值
func DefaultCampaign() CampaignConfig {
	return CampaignConfig{
		Timezone:               "Local",
		Cooldown:               5 * time.Minute,
		MaxStepCount:           100000,
		EvidenceExemptBelow:    10000,
		ReviewThreshold:        15000,
		DeleteEvidenceOnVerify: false,
		MaxUploadBytes:         5 << 20,
		MaxPixels:              40_000_000,
		JPEGQuality:            85,
		KmPerStep:              0.0008,
		KcalPerStep:            0.04,
		LevelBreakpoints:       []int{50000, 150000},
		ConfirmationTTL:        2 * time.Minute,
		ResetRequiresPassword:  true,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.s3_region", "us-east-1")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)

	d := DefaultCampaign()
	v.SetDefault("campaign.timezone", d.Timezone)
	v.SetDefault("campaign.cooldown", d.Cooldown)
	v.SetDefault("campaign.max_step_count", d.MaxStepCount)
	v.SetDefault("campaign.evidence_exempt_below", d.EvidenceExemptBelow)
	v.SetDefault("campaign.review_threshold", d.ReviewThreshold)
	v.SetDefault("campaign.delete_evidence_on_verify", d.DeleteEvidenceOnVerify)
	v.SetDefault("campaign.max_upload_bytes", d.MaxUploadBytes)
	v.SetDefault("campaign.max_pixels", d.MaxPixels)
	v.SetDefault("campaign.jpeg_quality", d.JPEGQuality)
	v.SetDefault("campaign.km_per_step", d.KmPerStep)
	v.SetDefault("campaign.kcal_per_step", d.KcalPerStep)
	v.SetDefault("campaign.level_breakpoints", d.LevelBreakpoints)
	v.SetDefault("campaign.confirmation_ttl", d.ConfirmationTTL)
	v.SetDefault("campaign.reset_requires_password", d.ResetRequiresPassword)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STEP_TRACKER")
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.s3_endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3_region", "S3_REGION")
	v.BindEnv("storage.s3_access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.s3_secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.s3_bucket", "S3_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if err := cfg.Campaign.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0700)
		}
	}

	return &cfg, nil
}

// Validate 检查活动规则之间的一致性
func (c CampaignConfig) Validate() error {
	if c.Cooldown < 0 {
		return fmt.Errorf("campaign.cooldown must not be negative")
	}
	if c.MaxStepCount <= 0 {
		return fmt.Errorf("campaign.max_step_count must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("campaign.max_upload_bytes must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("campaign.jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if len(c.LevelBreakpoints) != 2 || c.LevelBreakpoints[0] <= 0 || c.LevelBreakpoints[1] <= c.LevelBreakpoints[0] {
		return fmt.Errorf("campaign.level_breakpoints must be two increasing positive values, got %v", c.LevelBreakpoints)
	}
	if c.ConfirmationTTL <= 0 {
		return fmt.Errorf("campaign.confirmation_ttl must be positive")
	}
	return nil
}
