package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Storage  StorageConfig  `json:"storage"`
	Cache    CacheConfig    `json:"cache"`
	Map      MapConfig      `json:"map"`
	Sessions SessionsConfig `json:"sessions"`
	Client   ClientConfig   `json:"client"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	ReadTimeout     Duration `json:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
	Mode            string   `json:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	User           string   `json:"user"`
	Password       string   `json:"password"`
	DBName         string   `json:"db_name"`
	SSLMode        string   `json:"ssl_mode"`
	MaxConnections int      `json:"max_connections"`
	MaxIdleConns   int      `json:"max_idle_conns"`
	MaxLifetime    Duration `json:"max_lifetime"`
}

// RedisConfig enables the shared listing cache when Addr is set
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// StorageConfig selects where listing images go. An empty bucket keeps
// images in memory.
type StorageConfig struct {
	Bucket          string   `json:"bucket"`
	Region          string   `json:"region"`
	Endpoint        string   `json:"endpoint"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	URLExpiry       Duration `json:"url_expiry"`
}

// CacheConfig controls the listing cache
type CacheConfig struct {
	TTL          Duration `json:"ttl"`
	WarmSchedule string   `json:"warm_schedule"` // cron expression
}

// MapConfig holds map defaults for new draw sessions
type MapConfig struct {
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	Zoom         int     `json:"zoom"`
	MaxZoom      int     `json:"max_zoom"`
	StreetURL    string  `json:"street_url"`
	SatelliteURL string  `json:"satellite_url"`
}

// SessionsConfig controls draw session lifetime
type SessionsConfig struct {
	IdleTimeout   Duration `json:"idle_timeout"`
	SweepSchedule string   `json:"sweep_schedule"` // cron expression
	LocateTimeout Duration `json:"locate_timeout"`
}

// ClientConfig is used by landctl
type ClientConfig struct {
	BaseURL string   `json:"base_url"`
	Timeout Duration `json:"timeout"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// Duration reads "30s"-style strings or plain nanoseconds from JSON
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9090,
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{30 * time.Second},
			ShutdownTimeout: Duration{5 * time.Second},
			Mode:            "debug",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "land_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    Duration{time.Hour},
		},
		Storage: StorageConfig{
			Region:    "us-east-1",
			URLExpiry: Duration{time.Hour},
		},
		Cache: CacheConfig{
			TTL:          Duration{5 * time.Minute},
			WarmSchedule: "*/5 * * * *",
		},
		Map: MapConfig{
			CenterLat: 41.3111,
			CenterLng: 69.2406,
			Zoom:      13,
			MaxZoom:   19,
		},
		Sessions: SessionsConfig{
			IdleTimeout:   Duration{30 * time.Minute},
			SweepSchedule: "* * * * *",
			LocateTimeout: Duration{10 * time.Second},
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:9090",
			Timeout: Duration{10 * time.Second},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads .env, then the JSON file if it exists, then environment overrides
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	setDuration := func(key string, dst *Duration) error {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			dst.Duration = d
		}
		return nil
	}

	setString("SERVER_HOST", &config.Server.Host)
	setString("GIN_MODE", &config.Server.Mode)
	setString("DATABASE_HOST", &config.Database.Host)
	setString("DATABASE_USER", &config.Database.User)
	setString("DATABASE_PASSWORD", &config.Database.Password)
	setString("DATABASE_DBNAME", &config.Database.DBName)
	setString("DATABASE_SSLMODE", &config.Database.SSLMode)
	setString("REDIS_ADDR", &config.Redis.Addr)
	setString("REDIS_PASSWORD", &config.Redis.Password)
	setString("S3_BUCKET", &config.Storage.Bucket)
	setString("S3_REGION", &config.Storage.Region)
	setString("S3_ENDPOINT", &config.Storage.Endpoint)
	setString("S3_ACCESS_KEY_ID", &config.Storage.AccessKeyID)
	setString("S3_SECRET_ACCESS_KEY", &config.Storage.SecretAccessKey)
	setString("MAP_STREET_URL", &config.Map.StreetURL)
	setString("MAP_SATELLITE_URL", &config.Map.SatelliteURL)
	setString("LAND_API_URL", &config.Client.BaseURL)
	setString("LOG_LEVEL", &config.Logging.Level)

	for key, dst := range map[string]*int{
		"SERVER_PORT":   &config.Server.Port,
		"DATABASE_PORT": &config.Database.Port,
		"REDIS_DB":      &config.Redis.DB,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	for key, dst := range map[string]*Duration{
		"CACHE_TTL":            &config.Cache.TTL,
		"SESSION_IDLE_TIMEOUT": &config.Sessions.IdleTimeout,
	} {
		if err := setDuration(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
