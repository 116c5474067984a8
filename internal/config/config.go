package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Projects  ProjectsConfig  `yaml:"projects" envconfig:"PROJECTS"`
	Reports   ReportsConfig   `yaml:"reports" envconfig:"REPORTS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT" default:"2m"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"100"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// ProjectsConfig locates the project folders and bounds the work done on them.
type ProjectsConfig struct {
	Root           string `yaml:"root" envconfig:"ROOT" default:"./Construction"`
	MaxPreviewRows int    `yaml:"max_preview_rows" envconfig:"MAX_PREVIEW_ROWS" default:"1000"`
	HistogramBins  int    `yaml:"histogram_bins" envconfig:"HISTOGRAM_BINS" default:"20"`
	SummaryWorkers int    `yaml:"summary_workers" envconfig:"SUMMARY_WORKERS" default:"4"`
}

// ReportsConfig controls where exported report workbooks go and how long they stay.
type ReportsConfig struct {
	Dir       string        `yaml:"dir" envconfig:"DIR" default:""`
	Retention time.Duration `yaml:"retention" envconfig:"RETENTION" default:"24h"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"projectdash"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	// The dashboard historically read its root from CONSTRUCTION_FOLDER_PATH.
	if !envSet("PROJECTS_ROOT") {
		if legacy := os.Getenv(LegacyProjectsRootEnv); legacy != "" {
			cfg.Projects.Root = legacy
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envSet reports whether DASH_<key> is present in the environment.
func envSet(key string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + key)
	return ok
}

// pick keeps the env value when its variable is set or the file left the field empty.
func pick[T comparable](key string, envVal, fileVal T) T {
	var zero T
	if envSet(key) || fileVal == zero {
		return envVal
	}
	return fileVal
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(file, env Config) Config {
	out := env

	out.Server.Port = pick("SERVER_PORT", env.Server.Port, file.Server.Port)
	out.Server.ReadTimeout = pick("SERVER_READ_TIMEOUT", env.Server.ReadTimeout, file.Server.ReadTimeout)
	out.Server.WriteTimeout = pick("SERVER_WRITE_TIMEOUT", env.Server.WriteTimeout, file.Server.WriteTimeout)
	out.Server.IdleTimeout = pick("SERVER_IDLE_TIMEOUT", env.Server.IdleTimeout, file.Server.IdleTimeout)
	out.Server.MaxHeaderBytes = pick("SERVER_MAX_HEADER_BYTES", env.Server.MaxHeaderBytes, file.Server.MaxHeaderBytes)
	out.Server.ShutdownTimeout = pick("SERVER_SHUTDOWN_TIMEOUT", env.Server.ShutdownTimeout, file.Server.ShutdownTimeout)
	out.Server.OperationTimeout = pick("SERVER_OPERATION_TIMEOUT", env.Server.OperationTimeout, file.Server.OperationTimeout)

	if !envSet("SECURITY_ALLOWED_ORIGINS") && len(file.Security.AllowedOrigins) > 0 {
		out.Security.AllowedOrigins = file.Security.AllowedOrigins
	}
	out.Security.RateLimit.RPS = pick("SECURITY_RATE_LIMIT_RPS", env.Security.RateLimit.RPS, file.Security.RateLimit.RPS)
	out.Security.RateLimit.Burst = pick("SECURITY_RATE_LIMIT_BURST", env.Security.RateLimit.Burst, file.Security.RateLimit.Burst)

	out.Logging.Level = pick("LOGGING_LEVEL", env.Logging.Level, file.Logging.Level)
	out.Logging.Format = pick("LOGGING_FORMAT", env.Logging.Format, file.Logging.Format)
	out.Logging.Output = pick("LOGGING_OUTPUT", env.Logging.Output, file.Logging.Output)
	out.Logging.FilePath = pick("LOGGING_FILE_PATH", env.Logging.FilePath, file.Logging.FilePath)

	out.Projects.Root = pick("PROJECTS_ROOT", env.Projects.Root, file.Projects.Root)
	out.Projects.MaxPreviewRows = pick("PROJECTS_MAX_PREVIEW_ROWS", env.Projects.MaxPreviewRows, file.Projects.MaxPreviewRows)
	out.Projects.HistogramBins = pick("PROJECTS_HISTOGRAM_BINS", env.Projects.HistogramBins, file.Projects.HistogramBins)
	out.Projects.SummaryWorkers = pick("PROJECTS_SUMMARY_WORKERS", env.Projects.SummaryWorkers, file.Projects.SummaryWorkers)

	out.Reports.Dir = pick("REPORTS_DIR", env.Reports.Dir, file.Reports.Dir)
	out.Reports.Retention = pick("REPORTS_RETENTION", env.Reports.Retention, file.Reports.Retention)

	out.WebSocket.ReadBufferSize = pick("WEBSOCKET_READ_BUFFER_SIZE", env.WebSocket.ReadBufferSize, file.WebSocket.ReadBufferSize)
	out.WebSocket.WriteBufferSize = pick("WEBSOCKET_WRITE_BUFFER_SIZE", env.WebSocket.WriteBufferSize, file.WebSocket.WriteBufferSize)
	out.WebSocket.PingPeriod = pick("WEBSOCKET_PING_PERIOD", env.WebSocket.PingPeriod, file.WebSocket.PingPeriod)
	out.WebSocket.PongWait = pick("WEBSOCKET_PONG_WAIT", env.WebSocket.PongWait, file.WebSocket.PongWait)

	out.Telemetry.ServiceName = pick("TELEMETRY_SERVICE_NAME", env.Telemetry.ServiceName, file.Telemetry.ServiceName)
	out.Telemetry.TraceExporter = pick("TELEMETRY_TRACE_EXPORTER", env.Telemetry.TraceExporter, file.Telemetry.TraceExporter)

	return out
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Projects.Root == "" {
		return fmt.Errorf("projects root must be specified")
	}

	if c.Projects.HistogramBins <= 0 {
		return fmt.Errorf("histogram bins must be positive: %d", c.Projects.HistogramBins)
	}

	if c.Projects.SummaryWorkers <= 0 {
		c.Projects.SummaryWorkers = 1
	}

	switch c.Telemetry.TraceExporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unknown trace exporter: %q", c.Telemetry.TraceExporter)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	// Check for config file in common locations
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20, // 1MB
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 2 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Projects: ProjectsConfig{
			Root:           DefaultProjectsRoot,
			MaxPreviewRows: 1000,
			HistogramBins:  DefaultHistogramBins,
			SummaryWorkers: 4,
		},
		Reports: ReportsConfig{
			Retention: 24 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
	}
}
