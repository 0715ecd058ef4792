package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory
const FileName = "planview.cfg.json"

// SQLiteConfig holds the in-memory SQLite backend settings
type SQLiteConfig struct {
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the record store
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // memory | sqlite | postgres
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// InteractionConfig tunes marker dragging and plan rendering
type InteractionConfig struct {
	LongPress      time.Duration
	ResizeDebounce time.Duration
}

// ViewerConfig tunes the panorama viewports
type ViewerConfig struct {
	MinFOV        float64
	MaxFOV        float64
	FOVStep       float64
	FrameInterval time.Duration
	RotateSpeed   float64
	EnableDamping bool
	DampingFactor float64
}

// ServerConfig holds listen addresses and the document root
type ServerConfig struct {
	HTTPListen    string
	SessionListen string
	FilesRoot     string
}

// CacheConfig selects the marker list cache
type CacheConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// TelemetryConfig holds the InfluxDB interaction telemetry settings
type TelemetryConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("http.listen", ":8080")
	viper.SetDefault("session.listen", ":8081")
	viper.SetDefault("files.root", "./documents")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.dumpPath", "./planview.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "planview")
	viper.SetDefault("db.sslMode", "disable")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl", "10m")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "planview")
	viper.SetDefault("influx.bucket", "interaction")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "planview")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("drag.longPress", "600ms")
	viper.SetDefault("plan.resizeDebounce", "150ms")

	viper.SetDefault("viewer.minFov", 30.0)
	viper.SetDefault("viewer.maxFov", 90.0)
	viper.SetDefault("viewer.fovStep", 1.5)
	viper.SetDefault("viewer.frameInterval", "16ms")
	viper.SetDefault("viewer.rotateSpeed", 0.5)
	viper.SetDefault("viewer.enableDamping", false)
	viper.SetDefault("viewer.dampingFactor", 0.05)

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
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

// GetStorageConfig returns the storage backend settings
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInteractionConfig returns the drag and plan settings
func GetInteractionConfig() InteractionConfig {
	return InteractionConfig{
		LongPress:      viper.GetDuration("drag.longPress"),
		ResizeDebounce: viper.GetDuration("plan.resizeDebounce"),
	}
}

// GetViewerConfig returns the panorama viewer settings
func GetViewerConfig() ViewerConfig {
	return ViewerConfig{
		MinFOV:        viper.GetFloat64("viewer.minFov"),
		MaxFOV:        viper.GetFloat64("viewer.maxFov"),
		FOVStep:       viper.GetFloat64("viewer.fovStep"),
		FrameInterval: viper.GetDuration("viewer.frameInterval"),
		RotateSpeed:   viper.GetFloat64("viewer.rotateSpeed"),
		EnableDamping: viper.GetBool("viewer.enableDamping"),
		DampingFactor: viper.GetFloat64("viewer.dampingFactor"),
	}
}

// GetServerConfig returns listen addresses and the document root
func GetServerConfig() ServerConfig {
	return ServerConfig{
		HTTPListen:    viper.GetString("http.listen"),
		SessionListen: viper.GetString("session.listen"),
		FilesRoot:     viper.GetString("files.root"),
	}
}

// GetCacheConfig returns the marker cache settings
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		RedisEnabled:  viper.GetBool("redis.enabled"),
		RedisAddr:     viper.GetString("redis.addr"),
		RedisPassword: viper.GetString("redis.password"),
		RedisDB:       viper.GetInt("redis.db"),
		TTL:           viper.GetDuration("redis.ttl"),
	}
}

// GetTelemetryConfig returns the InfluxDB telemetry settings
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL:     viper.GetString("influx.url"),
		Token:   viper.GetString("influx.token"),
		Org:     viper.GetString("influx.org"),
		Bucket:  viper.GetString("influx.bucket"),
	}
}
