package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the bootstrap agent.
type Config struct {
	Environment string
	Logging     LoggingConfig
	Agent       AgentConfig
	Verify      VerifyConfig
	Identity    IdentityConfig
	Redis       RedisConfig
	Scylla      ScyllaConfig
	Kafka       KafkaConfig
}

type LoggingConfig struct {
	Level  string
	Format string
}

// AgentConfig describes the device-side pieces: where local state lives,
// where the login surface listens, and what gets launched on handoff.
type AgentConfig struct {
	StateDir       string
	ListenAddr     string
	HandoffCommand string
	HandoffArgs    []string
	ReadyInterval  time.Duration
	ReadyTimeout   time.Duration
	RetryAttempts  int
	RetryInterval  time.Duration
}

// VerifyConfig points at the remote one-time-code verification endpoint.
type VerifyConfig struct {
	BaseURL string
	Timeout time.Duration
}

// IdentityConfig points at the identity provider token service.
type IdentityConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// LoadConfig reads the environment (optionally seeded from a .env file)
// and returns the complete agent configuration.
func LoadConfig() *Config {
	loadDotenv()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Agent: AgentConfig{
			StateDir:       getEnv("AGENT_STATE_DIR", defaultStateDir()),
			ListenAddr:     getEnv("AGENT_LISTEN_ADDR", "127.0.0.1:8422"),
			HandoffCommand: getEnv("AGENT_HANDOFF_COMMAND", ""),
			HandoffArgs:    getEnvSlice("AGENT_HANDOFF_ARGS", nil),
			ReadyInterval:  getEnvDuration("AGENT_READY_INTERVAL", 100*time.Millisecond),
			ReadyTimeout:   getEnvDuration("AGENT_READY_TIMEOUT", 30*time.Second),
			RetryAttempts:  getEnvInt("AGENT_STATUS_RETRY_ATTEMPTS", 3),
			RetryInterval:  getEnvDuration("AGENT_STATUS_RETRY_INTERVAL", time.Second),
		},
		Verify: VerifyConfig{
			BaseURL: getEnv("VERIFY_BASE_URL", "http://localhost:9090"),
			Timeout: getEnvDuration("VERIFY_TIMEOUT", 15*time.Second),
		},
		Identity: IdentityConfig{
			BaseURL: getEnv("IDENTITY_BASE_URL", "http://localhost:9091"),
			APIKey:  getEnv("IDENTITY_API_KEY", ""),
			Timeout: getEnvDuration("IDENTITY_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Scylla: ScyllaConfig{
			Nodes:    getEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "profiles"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_AUTH_EVENTS_TOPIC", "auth-events"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func defaultStateDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".auth-bootstrap")
	}
	return ".auth-bootstrap"
}

func loadDotenv() {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Overload(p)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
