package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"qcmpulse/pkg/contracts/domain"
)

// EnvPrefix namespaces every environment variable, e.g. QCM_SERVER_PORT
const EnvPrefix = "QCM"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"2m"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"209715200" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080" validate:"min=1"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output      string `yaml:"output" envconfig:"OUTPUT" default:"both" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

// PathsConfig contains file system paths configuration. An empty DataDir resolves to the
// directory of the executable.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
}

// AnalysisConfig holds the analysis options that stay fixed for a whole run
type AnalysisConfig struct {
	Device               string        `yaml:"device" envconfig:"DEVICE" default:"next" validate:"oneof=next qcm-i qsense awsensors"`
	CalibrationMode      string        `yaml:"calibration_mode" envconfig:"CALIBRATION_MODE" default:"theoretical" validate:"oneof=theoretical measured"`
	TimeScale            string        `yaml:"time_scale" envconfig:"TIME_SCALE" default:"s" validate:"oneof=s min hr"`
	NormalizeFrequency   bool          `yaml:"normalize_frequency" envconfig:"NORMALIZE_FREQUENCY" default:"false"`
	DataFormat           string        `yaml:"data_format" envconfig:"DATA_FORMAT" default:"clean" validate:"oneof=clean raw"`
	NoiseFloor           float64       `yaml:"noise_floor" envconfig:"NOISE_FLOOR" default:"1e-8" validate:"gt=0"`
	MaxTimeProbes        int           `yaml:"max_time_probes" envconfig:"MAX_TIME_PROBES" default:"10" validate:"min=1,max=10"`
	FundamentalFrequency float64       `yaml:"fundamental_frequency" envconfig:"FUNDAMENTAL_FREQUENCY" default:"4998264.628859391" validate:"gt=0"`
	TheoreticalC         bool          `yaml:"theoretical_c" envconfig:"THEORETICAL_C" default:"true"`
	TheoreticalTable     string        `yaml:"theoretical_table" envconfig:"THEORETICAL_TABLE"`
	Voinova              VoinovaConfig `yaml:"voinova" envconfig:"VOINOVA"`
}

// VoinovaConfig holds the fixed properties and the starting point of the viscoelastic fit
type VoinovaConfig struct {
	CrystalThickness float64   `yaml:"crystal_thickness" envconfig:"CRYSTAL_THICKNESS" default:"3.3698e-4" validate:"gt=0"`
	BulkViscosity    float64   `yaml:"bulk_viscosity" envconfig:"BULK_VISCOSITY" default:"1e-3" validate:"gt=0"`
	FilmDensity      float64   `yaml:"film_density" envconfig:"FILM_DENSITY" default:"1000" validate:"gt=0"`
	FilmViscosity    float64   `yaml:"film_viscosity" envconfig:"FILM_VISCOSITY" default:"1e-3" validate:"gt=0"`
	InitialGuess     []float64 `yaml:"initial_guess" envconfig:"INITIAL_GUESS" default:"2.5e-7,1e5,1e-8" validate:"len=3,dive,gt=0"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// TelemetryConfig selects the trace and metric exporters. Spans are created even with
// the "none" trace exporter so trace ids still reach the logs.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none" validate:"oneof=none stdout"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus" validate:"oneof=none prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
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

// mergeConfigs overlays the analysis and path settings of a config file on top of the
// environment. Variables explicitly set in the environment win.
func mergeConfigs(fileConfig, envConfig Config) Config {
	set := func(name string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + name)
		return ok
	}

	if fileConfig.Server.Port != 0 && !set("SERVER_PORT") {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if fileConfig.Paths.DataDir != "" && !set("PATHS_DATA_DIR") {
		envConfig.Paths.DataDir = fileConfig.Paths.DataDir
	}
	if fileConfig.Logging.Level != "" && !set("LOGGING_LEVEL") {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if fileConfig.Telemetry.TraceExporter != "" && !set("TELEMETRY_TRACE_EXPORTER") {
		envConfig.Telemetry.TraceExporter = fileConfig.Telemetry.TraceExporter
	}

	a, fa := &envConfig.Analysis, fileConfig.Analysis
	if fa.Device != "" && !set("ANALYSIS_DEVICE") {
		a.Device = fa.Device
	}
	if fa.CalibrationMode != "" && !set("ANALYSIS_CALIBRATION_MODE") {
		a.CalibrationMode = fa.CalibrationMode
	}
	if fa.TimeScale != "" && !set("ANALYSIS_TIME_SCALE") {
		a.TimeScale = fa.TimeScale
	}
	if fa.NormalizeFrequency && !set("ANALYSIS_NORMALIZE_FREQUENCY") {
		a.NormalizeFrequency = true
	}
	if fa.DataFormat != "" && !set("ANALYSIS_DATA_FORMAT") {
		a.DataFormat = fa.DataFormat
	}
	if fa.FundamentalFrequency != 0 && !set("ANALYSIS_FUNDAMENTAL_FREQUENCY") {
		a.FundamentalFrequency = fa.FundamentalFrequency
	}
	if fa.TheoreticalTable != "" && !set("ANALYSIS_THEORETICAL_TABLE") {
		a.TheoreticalTable = fa.TheoreticalTable
	}
	if len(fa.Voinova.InitialGuess) > 0 && !set("ANALYSIS_VOINOVA_INITIAL_GUESS") {
		a.Voinova.InitialGuess = fa.Voinova.InitialGuess
	}

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Logs are always structured JSON
	c.Logging.Format = "json"
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

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

// DeviceKind returns the configured device
func (a AnalysisConfig) DeviceKind() domain.DeviceKind {
	kind, err := domain.ParseDeviceKind(a.Device)
	if err != nil {
		return domain.DeviceNext
	}
	return kind
}

// Mode returns the configured calibration mode
func (a AnalysisConfig) Mode() domain.CalibrationMode {
	return domain.CalibrationMode(a.CalibrationMode)
}

// Scale returns the configured time scale
func (a AnalysisConfig) Scale() domain.TimeScale {
	return domain.TimeScale(a.TimeScale)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
			MaxUploadBytes:  200 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Analysis: AnalysisConfig{
			Device:               string(domain.DeviceNext),
			CalibrationMode:      string(domain.CalibrationTheoretical),
			TimeScale:            string(domain.TimeScaleSeconds),
			DataFormat:           "clean",
			NoiseFloor:           1e-8,
			MaxTimeProbes:        10,
			FundamentalFrequency: 4998264.628859391,
			TheoreticalC:         true,
			Voinova: VoinovaConfig{
				CrystalThickness: 3.3698e-4,
				BulkViscosity:    1e-3,
				FilmDensity:      1000,
				FilmViscosity:    1e-3,
				InitialGuess:     []float64{2.5e-7, 1e5, 1e-8},
			},
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
		},
	}
}
