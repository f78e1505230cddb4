package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/listsync/backend/internal/domain/integration"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Blob persistence backends
const (
	BackendDatabase = "database"
	BackendRedis    = "redis"
	BackendS3       = "s3"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Persistence PersistenceConfig
	Telemetry   TelemetryConfig
	External    ExternalConfig
	List        ListConfig
	Sync        SyncConfig
	Classifier  ClassifierConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// NotifyRateLimit caps notify requests per list and client within NotifyRateWindow; 0 disables
	NotifyRateLimit  int
	NotifyRateWindow time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Path            string // sqlite file, ":memory:" for tests
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	UsePathStyle    bool
}

// PersistenceConfig selects where mapping and category blobs are kept
type PersistenceConfig struct {
	Backend   string // database, redis, s3, memory
	KeyPrefix string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable tracing and metrics export
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	LogsEnabled       bool // Export zap logs through the OTLP log bridge
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
	// Continuous profiling
	ProfilingEnabled       bool
	ProfilingServerAddress string
}

// ExternalConfig holds the external list command transport settings
type ExternalConfig struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// ListConfig names the internal list and the external endpoints it is bound to
type ListConfig struct {
	MessageRef    string
	SnapshotID    string
	CommandPrefix string
	ConnectionID  string
	DisplayName   string
}

// Binding converts the list section into a domain binding
func (l ListConfig) Binding() integration.ListBinding {
	return integration.ListBinding{
		MessageRef:    l.MessageRef,
		SnapshotID:    l.SnapshotID,
		CommandPrefix: l.CommandPrefix,
		ConnectionID:  l.ConnectionID,
		DisplayName:   l.DisplayName,
	}
}

// SyncConfig holds the reconciliation engine settings
type SyncConfig struct {
	Locale                 string
	RetentionWindow        time.Duration // 0 disables the retention sweeper
	FullSyncInterval       time.Duration
	CategorizeDebounce     time.Duration
	EmptySnapshotThreshold int
	MaxPendingMisses       int
	MaxCreateTries         int
	EchoWindow             time.Duration
	Categories             []string
	ConfidenceThreshold    float64
	ClassifierBatchSize    int
	QueueSize              int
	JobTimeout             time.Duration
	HistorySize            int
}

// Options converts the sync section into resolved engine options
func (s SyncConfig) Options() integration.SyncOptions {
	return integration.SyncOptions{
		Locale:                 s.Locale,
		RetentionWindow:        s.RetentionWindow,
		FullSyncInterval:       s.FullSyncInterval,
		CategorizeDebounce:     s.CategorizeDebounce,
		EmptySnapshotThreshold: s.EmptySnapshotThreshold,
		MaxPendingMisses:       s.MaxPendingMisses,
		MaxCreateTries:         s.MaxCreateTries,
		EchoWindow:             s.EchoWindow,
		Categories:             slices.Clone(s.Categories),
		ConfidenceThreshold:    s.ConfidenceThreshold,
		ClassifierBatchSize:    s.ClassifierBatchSize,
	}.WithDefaults()
}

// ClassifierConfig holds the OpenAI-compatible classifier settings
type ClassifierConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LISTSYNC_ prefix (e.g., LISTSYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LISTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// zero is meaningful for these, so they cannot go through applyDefaults
	v.SetDefault("sync.retention_window", integration.DefaultRetentionWindow)
	v.SetDefault("sync.categorize_debounce", integration.DefaultCategorizeDebounce)
	v.SetDefault("sync.echo_window", integration.DefaultEchoWindow)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: stringList(v, "http.trusted_proxies"),

			NotifyRateLimit:  v.GetInt("http.notify_rate_limit"),
			NotifyRateWindow: v.GetDuration("http.notify_rate_window"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UseSSL:          v.GetBool("storage.use_ssl"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Persistence: PersistenceConfig{
			Backend:   v.GetString("persistence.backend"),
			KeyPrefix: v.GetString("persistence.key_prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:                v.GetBool("telemetry.enabled"),
			CollectorEndpoint:      v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:          v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:            v.GetString("telemetry.service_name"),
			Insecure:               v.GetBool("telemetry.insecure"),
			MetricsInterval:        v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:            v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:         v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:           v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh:      v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:       v.GetBool("telemetry.profiling_enabled"),
			ProfilingServerAddress: v.GetString("telemetry.profiling_server_address"),
		},
		External: ExternalConfig{
			BaseURL:      v.GetString("external.base_url"),
			Token:        v.GetString("external.token"),
			Timeout:      v.GetDuration("external.timeout"),
			MaxBodyBytes: v.GetInt64("external.max_body_bytes"),
		},
		List: ListConfig{
			MessageRef:    v.GetString("list.message_ref"),
			SnapshotID:    v.GetString("list.snapshot_id"),
			CommandPrefix: v.GetString("list.command_prefix"),
			ConnectionID:  v.GetString("list.connection_id"),
			DisplayName:   v.GetString("list.display_name"),
		},
		Sync: SyncConfig{
			Locale:                 v.GetString("sync.locale"),
			RetentionWindow:        v.GetDuration("sync.retention_window"),
			FullSyncInterval:       v.GetDuration("sync.full_sync_interval"),
			CategorizeDebounce:     v.GetDuration("sync.categorize_debounce"),
			EmptySnapshotThreshold: v.GetInt("sync.empty_snapshot_threshold"),
			MaxPendingMisses:       v.GetInt("sync.max_pending_misses"),
			MaxCreateTries:         v.GetInt("sync.max_create_tries"),
			EchoWindow:             v.GetDuration("sync.echo_window"),
			Categories:             stringList(v, "sync.categories"),
			ConfidenceThreshold:    v.GetFloat64("sync.confidence_threshold"),
			ClassifierBatchSize:    v.GetInt("sync.classifier_batch_size"),
			QueueSize:              v.GetInt("sync.queue_size"),
			JobTimeout:             v.GetDuration("sync.job_timeout"),
			HistorySize:            v.GetInt("sync.history_size"),
		},
		Classifier: ClassifierConfig{
			Enabled: v.GetBool("classifier.enabled"),
			BaseURL: v.GetString("classifier.base_url"),
			APIKey:  v.GetString("classifier.api_key"),
			Model:   v.GetString("classifier.model"),
			Timeout: v.GetDuration("classifier.timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// stringList reads a TOML array or a comma separated env value
func stringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "listsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.NotifyRateWindow == 0 {
		cfg.HTTP.NotifyRateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "listsync.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "listsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Persistence.Backend == "" {
		cfg.Persistence.Backend = BackendDatabase
	}
	if cfg.Persistence.KeyPrefix == "" {
		cfg.Persistence.KeyPrefix = "listsync"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "listsync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingServerAddress == "" {
		cfg.Telemetry.ProfilingServerAddress = "http://localhost:4040"
	}

	if cfg.External.BaseURL == "" {
		cfg.External.BaseURL = "http://localhost:8087/v1"
	}
	if cfg.External.Timeout == 0 {
		cfg.External.Timeout = 10 * time.Second
	}
	if cfg.External.MaxBodyBytes == 0 {
		cfg.External.MaxBodyBytes = 4 << 20
	}

	if cfg.List.MessageRef == "" {
		cfg.List.MessageRef = "shopping"
	}
	if cfg.List.SnapshotID == "" {
		cfg.List.SnapshotID = "alexa.0.Lists.SHOP.json"
	}
	if cfg.List.CommandPrefix == "" {
		cfg.List.CommandPrefix = "alexa.0.Lists.SHOP"
	}
	if cfg.List.DisplayName == "" {
		cfg.List.DisplayName = "Shopping"
	}

	if cfg.Sync.Locale == "" {
		cfg.Sync.Locale = integration.DefaultLocale
	}
	if cfg.Sync.FullSyncInterval == 0 {
		cfg.Sync.FullSyncInterval = integration.DefaultFullSyncInterval
	}
	if cfg.Sync.EmptySnapshotThreshold == 0 {
		cfg.Sync.EmptySnapshotThreshold = integration.DefaultEmptySnapshotThreshold
	}
	if cfg.Sync.MaxPendingMisses == 0 {
		cfg.Sync.MaxPendingMisses = integration.DefaultMaxPendingMisses
	}
	if cfg.Sync.MaxCreateTries == 0 {
		cfg.Sync.MaxCreateTries = integration.DefaultMaxCreateTries
	}
	if cfg.Sync.ConfidenceThreshold == 0 {
		cfg.Sync.ConfidenceThreshold = integration.DefaultConfidenceThreshold
	}
	if cfg.Sync.ClassifierBatchSize == 0 {
		cfg.Sync.ClassifierBatchSize = integration.DefaultClassifierBatchSize
	}
	if cfg.Sync.QueueSize == 0 {
		cfg.Sync.QueueSize = 64
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 2 * time.Minute
	}
	if cfg.Sync.HistorySize == 0 {
		cfg.Sync.HistorySize = 50
	}

	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = "gpt-4o-mini"
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 20 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Persistence.Backend {
	case BackendDatabase, BackendRedis, BackendMemory:
	case BackendS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 persistence backend")
		}
	default:
		return fmt.Errorf("persistence.backend %q is not supported", c.Persistence.Backend)
	}

	if _, err := url.ParseRequestURI(c.External.BaseURL); err != nil {
		return fmt.Errorf("external.base_url is invalid: %w", err)
	}
	if c.Classifier.Enabled && c.Classifier.BaseURL == "" {
		return fmt.Errorf("classifier.base_url is required when the classifier is enabled")
	}

	if err := c.List.Binding().Validate(); err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if err := c.Sync.Options().Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if c.Sync.QueueSize < 1 {
		return fmt.Errorf("sync.queue_size must be positive")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == DriverPostgres && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
