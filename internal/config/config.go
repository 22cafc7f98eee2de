package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "statesync.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLConfig holds settings for the GORM-backed storage.
type SQLConfig struct {
	Driver        string        `json:"driver" mapstructure:"driver"`
	BatchSize     int           `json:"batchSize" mapstructure:"batchSize"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	DumpInterval  time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	DumpPath      string        `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebSocketConfig holds the remote viewer connection settings.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the recording backend.
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQL       SQLConfig       `json:"sql" mapstructure:"sql"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Path     string
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ExportInterval time.Duration
	Stdout         bool
	// LogFile mirrors log entries as OTel records into <logsDir>.
	LogFile     bool
	LogEndpoint string
	LogInsecure bool
}

// GeoConfig anchors the scene origin on the globe.
type GeoConfig struct {
	Enabled bool
	Lon     float64
	Lat     float64
	Alt     float64
}

// StatusConfig holds the status HTTP server settings.
type StatusConfig struct {
	Enabled bool
	Address string
}

// APIConfig holds the upload API settings.
type APIConfig struct {
	ServerURL string
	APIKey    string
}

// S3Config holds the object store upload settings.
type S3Config struct {
	Enabled   bool
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("defaultTag", "session")
	viper.SetDefault("worldCenterMode", "auto")
	viper.SetDefault("worldCenter", -1)
	viper.SetDefault("frameInterval", "33ms")
	viper.SetDefault("manifest", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sql.driver", "sqlite")
	viper.SetDefault("storage.sql.batchSize", 500)
	viper.SetDefault("storage.sql.flushInterval", "1s")
	viper.SetDefault("storage.sql.dumpInterval", "3m")
	viper.SetDefault("storage.sql.dumpPath", "")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "statesync")
	viper.SetDefault("db.path", "statesync.db")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "statesync")
	viper.SetDefault("influx.bucket", "frames")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "statesync")
	viper.SetDefault("otel.exportInterval", "30s")
	viper.SetDefault("otel.stdout", false)
	viper.SetDefault("otel.logFile", false)
	viper.SetDefault("otel.logEndpoint", "")
	viper.SetDefault("otel.logInsecure", false)

	viper.SetDefault("geo.enabled", false)
	viper.SetDefault("geo.lon", 0.0)
	viper.SetDefault("geo.lat", 0.0)
	viper.SetDefault("geo.alt", 0.0)

	viper.SetDefault("status.enabled", false)
	viper.SetDefault("status.address", "127.0.0.1:8090")

	viper.SetDefault("api.serverUrl", "")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("s3.enabled", false)
	viper.SetDefault("s3.bucket", "")
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.endpoint", "")
	viper.SetDefault("s3.prefix", "sessions/")
	viper.SetDefault("s3.accessKey", "")
	viper.SetDefault("s3.secretKey", "")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQL: SQLConfig{
			Driver:        viper.GetString("storage.sql.driver"),
			BatchSize:     viper.GetInt("storage.sql.batchSize"),
			FlushInterval: viper.GetDuration("storage.sql.flushInterval"),
			DumpInterval:  viper.GetDuration("storage.sql.dumpInterval"),
			DumpPath:      viper.GetString("storage.sql.dumpPath"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetDBConfig returns the db section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
		Path:     viper.GetString("db.path"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
		Stdout:         viper.GetBool("otel.stdout"),
		LogFile:        viper.GetBool("otel.logFile"),
		LogEndpoint:    viper.GetString("otel.logEndpoint"),
		LogInsecure:    viper.GetBool("otel.logInsecure"),
	}
}

// GetGeoConfig returns the geo section.
func GetGeoConfig() GeoConfig {
	return GeoConfig{
		Enabled: viper.GetBool("geo.enabled"),
		Lon:     viper.GetFloat64("geo.lon"),
		Lat:     viper.GetFloat64("geo.lat"),
		Alt:     viper.GetFloat64("geo.alt"),
	}
}

// GetStatusConfig returns the status section.
func GetStatusConfig() StatusConfig {
	return StatusConfig{
		Enabled: viper.GetBool("status.enabled"),
		Address: viper.GetString("status.address"),
	}
}

// GetAPIConfig returns the api section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}

// GetS3Config returns the s3 section.
func GetS3Config() S3Config {
	return S3Config{
		Enabled:   viper.GetBool("s3.enabled"),
		Bucket:    viper.GetString("s3.bucket"),
		Region:    viper.GetString("s3.region"),
		Endpoint:  viper.GetString("s3.endpoint"),
		Prefix:    viper.GetString("s3.prefix"),
		AccessKey: viper.GetString("s3.accessKey"),
		SecretKey: viper.GetString("s3.secretKey"),
	}
}
