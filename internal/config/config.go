package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/docguard/internal/logging"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		AllowedOrigins  []string      `yaml:"allowedOrigins"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		RateCapacity    int           `yaml:"rateCapacity"`
		RateRefill      int           `yaml:"rateRefill"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		// Path is the sqlite file, ":memory:" when empty.
		Path    string `yaml:"path"`
		Migrate bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Backend struct {
		Mode    string        `yaml:"mode"` // http | openai | local
		URL     string        `yaml:"url"`
		APIKey  string        `yaml:"apiKey"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		BaseURL string `yaml:"baseURL"`
		Model   string `yaml:"model"`
	} `yaml:"openai"`

	Limits struct {
		MaxUploadBytes   int64         `yaml:"maxUploadBytes"`
		DocumentTypes    []string      `yaml:"documentTypes"`
		ProgressInterval time.Duration `yaml:"progressInterval"`
		ProgressStep     int           `yaml:"progressStep"`
		ProgressCap      int           `yaml:"progressCap"`
		AnchorLines      bool          `yaml:"anchorLines"`
		SessionIdleTTL   time.Duration `yaml:"sessionIdleTTL"`
	} `yaml:"limits"`

	Logging logging.Config `yaml:"logging"`

	Auth struct {
		// APIKeys maps tenant to key; empty disables auth.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`
}

// Load baca file config.yaml, lalu isi default dan override dari env
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes and applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// secrets can come from the environment instead of the file
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.Database.Password, "DOCGUARD_DB_PASSWORD")
	override(&c.Minio.AccessKey, "DOCGUARD_MINIO_ACCESS_KEY")
	override(&c.Minio.SecretKey, "DOCGUARD_MINIO_SECRET_KEY")
	override(&c.Backend.URL, "DOCGUARD_BACKEND_URL")
	override(&c.Backend.APIKey, "DOCGUARD_BACKEND_API_KEY")
	override(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	override(&c.Logging.Level, "DOCGUARD_LOG_LEVEL")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Backend.Mode == "" {
		c.Backend.Mode = "http"
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 2 * time.Minute
	}
	if c.Limits.SessionIdleTTL <= 0 {
		c.Limits.SessionIdleTTL = 2 * time.Hour
	}
	if c.Logging.RingSize == 0 {
		c.Logging.RingSize = 200
	}
}

// Validate checks the combinations that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	switch c.Backend.Mode {
	case "http":
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required in http mode")
		}
		if _, err := url.ParseRequestURI(c.Backend.URL); err != nil {
			return fmt.Errorf("backend.url: %w", err)
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.apiKey is required in openai mode")
		}
	case "local":
	default:
		return fmt.Errorf("backend.mode: unknown mode %q", c.Backend.Mode)
	}
	return nil
}

// MinioEnabled reports whether exports should be archived.
func (c *Config) MinioEnabled() bool {
	return strings.TrimSpace(c.Minio.Endpoint) != ""
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
