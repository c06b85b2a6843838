// Package config handles application configuration loading from a YAML file and environment variables.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "metronix/internal/utils"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at the YAML config file
const ConfigFileEnv = "METRONIX_CONFIG_FILE"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Authentication and token issuance
	Auth AuthConfig `json:"auth" yaml:"auth"`

	// Attachment storage
	Uploads UploadsConfig `json:"uploads" yaml:"uploads"`

	// Reporting cache and defaults
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Reporting ReportingConfig `json:"reporting" yaml:"reporting"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Email Configuration
	Email EmailConfig `json:"email" yaml:"email"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port"`
	AdminName     string   `json:"admin_name" yaml:"admin_name"`
	AdminEmail    string   `json:"admin_email" yaml:"admin_email"`
	AdminPassword string   `json:"admin_password" yaml:"admin_password"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	AppBaseURL    string   `json:"app_base_url" yaml:"app_base_url"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
	// SeedDepartments creates the default departments on startup when none exist.
	SeedDepartments bool `json:"seed_departments" yaml:"seed_departments"`
}

// AuthConfig represents authentication-related configuration
type AuthConfig struct {
	SignupsDisabled bool          `json:"signups_disabled" yaml:"signups_disabled"`
	JWTSecret       string        `json:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer       string        `json:"jwt_issuer" yaml:"jwt_issuer"`
	TokenTTL        time.Duration `json:"token_ttl" yaml:"token_ttl"`
	BcryptCost      int           `json:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// UploadsConfig controls where complaint attachments are written
type UploadsConfig struct {
	Dir          string `json:"dir" yaml:"dir"`
	URLPrefix    string `json:"url_prefix" yaml:"url_prefix"`
	MaxFileBytes int64  `json:"max_file_bytes" yaml:"max_file_bytes"`
	MaxFiles     int    `json:"max_files" yaml:"max_files"`
}

// RedisConfig configures the optional reporting cache
type RedisConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// ReportingConfig holds dashboard defaults
type ReportingConfig struct {
	WindowDays   int `json:"window_days" yaml:"window_days"`
	RecentLimit  int `json:"recent_limit" yaml:"recent_limit"`
	SummaryLimit int `json:"summary_limit" yaml:"summary_limit"`
}

// IsSignupDisabled returns whether citizen self-signup is disabled
func (c *Config) IsSignupDisabled() bool {
	return c.Auth.SignupsDisabled
}

// TokenSecret returns the JWT signing secret, falling back to the session secret
func (c *Config) TokenSecret() string {
	if c.Auth.JWTSecret != "" {
		return c.Auth.JWTSecret
	}
	return c.Server.SessionSecret
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "metronix-server"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
}

// EmailConfig represents email/SMTP configuration
type EmailConfig struct {
	SMTP    SMTPConfig `json:"smtp" yaml:"smtp"`
	Enabled bool       `json:"enabled" yaml:"enabled"`
}

// SMTPConfig represents SMTP server configuration
type SMTPConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	Username    string `json:"username" yaml:"username"`
	Password    string `json:"password" yaml:"password"`
	FromAddress string `json:"from_address" yaml:"from_address"`
	FromName    string `json:"from_name" yaml:"from_name"`
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyDefaults fills zero values that have a sensible default
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.AdminName == "" {
		c.Server.AdminName = "Administrator"
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.Auth.JWTIssuer == "" {
		c.Auth.JWTIssuer = "metronix"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = DefaultBcryptCost
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads/complaints"
	}
	if c.Uploads.URLPrefix == "" {
		c.Uploads.URLPrefix = "/uploads/complaints"
	}
	if c.Uploads.MaxFileBytes == 0 {
		c.Uploads.MaxFileBytes = MaxAttachmentBytes
	}
	if c.Uploads.MaxFiles == 0 {
		c.Uploads.MaxFiles = MaxAttachmentsPerComplaint
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultReportCacheTTL
	}
	if c.Reporting.WindowDays <= 0 {
		c.Reporting.WindowDays = DefaultReportingWindowDays
	}
	if c.Reporting.RecentLimit <= 0 {
		c.Reporting.RecentLimit = DefaultRecentComplaints
	}
	if c.Reporting.SummaryLimit <= 0 {
		c.Reporting.SummaryLimit = DefaultSummaryComplaints
	}
	if c.Email.SMTP.FromName == "" {
		c.Email.SMTP.FromName = "Metronix"
	}
}

// Validate checks invariants that would otherwise surface as confusing runtime failures
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid server port %q", c.Server.Port)
	}
	if !c.Server.Debug && !c.IsTest && c.Server.SessionSecret == "" {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "server.session_secret is required outside debug mode")
	}
	if c.Server.AdminEmail != "" && !contextutils.IsValidEmail(c.Server.AdminEmail) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid admin email")
	}
	if c.Uploads.MaxFileBytes < 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "uploads.max_file_bytes must be positive")
	}
	return nil
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by METRONIX_CONFIG_FILE or ./config.yaml
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
