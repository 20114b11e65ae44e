package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// MongoDB Configuration
	MongoDB MongoDBConfig `json:"mongodb"`

	Storage StorageConfig `json:"storage"`

	// AI provider Configuration
	Provider ProviderConfig `json:"provider"`

	Moderation ModerationConfig `json:"moderation"`

	Auth AuthConfig `json:"auth"`

	Events EventsConfig `json:"events"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	MetricsAddr  string `json:"metrics_addr"`
	Environment  string `json:"environment"` // development, staging, production

	AllowedOrigins []string `json:"allowed_origins"`
}

// MongoDBConfig contains document store connection configuration
type MongoDBConfig struct {
	URI      string `json:"-"` // full URI, wins over the parts below
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	Database string `json:"database"`
}

type StorageConfig struct {
	Backend         string `json:"backend"` // mongo or memory
	ArchiveOnDelete bool   `json:"archive_on_delete"`
}

// ProviderConfig describes the external completion API
type ProviderConfig struct {
	Kind          string  `json:"kind"` // alleai, openai, mock
	URL           string  `json:"url"`
	APIKey        string  `json:"-"`
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	Timeout       int     `json:"timeout"` // Seconds
	FallbackReply string  `json:"fallback_reply"`
}

// ModerationConfig holds the moderator roster used for round robin
type ModerationConfig struct {
	Roster     []string `json:"roster"`
	RosterFile string   `json:"roster_file"`
	KeyHash    string   `json:"-"`
}

type AuthConfig struct {
	JWTSecret string `json:"-"`
	TokenTTL  int    `json:"token_ttl"` // Hours
}

// EventsConfig sizes the event fan-out worker pool
type EventsConfig struct {
	Workers    int `json:"workers"`
	BufferSize int `json:"buffer_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, text
	OutputPath string `json:"output_path"` // stdout, stderr, or file path
}

const (
	DefaultAlleAIURL     = "https://api.alle-ai.com/api/v1/chat/completions"
	DefaultOpenAIURL     = "https://api.openai.com/v1/"
	DefaultFallbackReply = "Let me connect you with someone"
)

// DefaultRoster is used when neither MODERATOR_ROSTER nor a roster file is set
var DefaultRoster = []string{"moderator_1", "moderator_2", "moderator_3", "moderator_4"}

// LoadConfig builds the configuration from environment variables.
// The caller is expected to have loaded any .env file already.
func LoadConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("HTTP_HOST", ""),
			Port:         getEnvOrDefault("HTTP_PORT", getEnvOrDefault("PORT", "5000")),
			ReadTimeout:  getIntEnv("HTTP_READ_TIMEOUT", 15),
			WriteTimeout: getIntEnv("HTTP_WRITE_TIMEOUT", 60),
			MetricsAddr:  getEnvOrDefault("METRICS_ADDR", ":2112"),
			Environment:  getEnvOrDefault("APP_ENV", "development"),

			AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnvOrDefault("MONGO_URI", getEnvOrDefault("MONGODB_URI", "")),
			Host:     getEnvOrDefault("MONGO_HOST", "localhost"),
			Port:     getEnvOrDefault("MONGO_PORT", "27017"),
			Username: getEnvOrDefault("MONGO_USERNAME", ""),
			Password: getEnvOrDefault("MONGO_PASSWORD", ""),
			Database: getEnvOrDefault("MONGO_DATABASE", "supportrelay"),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", "mongo")),
			ArchiveOnDelete: getBoolEnv("ARCHIVE_ON_DELETE", false),
		},
		Provider: ProviderConfig{
			Kind:          strings.ToLower(getEnvOrDefault("PROVIDER_KIND", "alleai")),
			Model:         getEnvOrDefault("PROVIDER_MODEL", "gpt-4o"),
			Temperature:   getFloatEnv("PROVIDER_TEMPERATURE", 0.7),
			MaxTokens:     getIntEnv("PROVIDER_MAX_TOKENS", 1000),
			Timeout:       getIntEnv("PROVIDER_TIMEOUT_SECONDS", 30),
			FallbackReply: getEnvOrDefault("FALLBACK_REPLY", DefaultFallbackReply),
		},
		Moderation: ModerationConfig{
			RosterFile: getEnvOrDefault("MODERATOR_ROSTER_FILE", ""),
			KeyHash:    getEnvOrDefault("MODERATOR_KEY_HASH", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
			TokenTTL:  getIntEnv("JWT_TTL_HOURS", 24),
		},
		Events: EventsConfig{
			Workers:    getIntEnv("EVENT_WORKERS", 2),
			BufferSize: getIntEnv("EVENT_BUFFER_SIZE", 256),
		},
		Logging: LoggingConfig{
			Level:      getEnvOrDefault("LOG_LEVEL", "info"),
			Format:     getEnvOrDefault("LOG_FORMAT", "text"),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
		},
	}

	switch cfg.Provider.Kind {
	case "openai":
		cfg.Provider.URL = getEnvOrDefault("PROVIDER_URL", DefaultOpenAIURL)
		cfg.Provider.APIKey = getEnvOrDefault("OPENAI_API_KEY", "")
	default:
		cfg.Provider.URL = getEnvOrDefault("PROVIDER_URL", DefaultAlleAIURL)
		cfg.Provider.APIKey = getEnvOrDefault("ALLEAI_API_KEY", "")
	}

	roster, err := ResolveRoster(getEnvOrDefault("MODERATOR_ROSTER", ""), cfg.Moderation.RosterFile)
	if err != nil {
		log.WithError(err).Warn("could not resolve moderator roster, using default roster")
		roster = append([]string(nil), DefaultRoster...)
	}
	cfg.Moderation.Roster = roster

	return cfg
}

// GetMongoURI returns MONGO_URI when set, else builds one from the parts
func (cfg *Config) GetMongoURI() string {
	if cfg.MongoDB.URI != "" {
		return cfg.MongoDB.URI
	}
	host := cfg.MongoDB.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.MongoDB.Port
	if port == "" {
		port = "27017"
	}

	if cfg.MongoDB.Username == "" {
		return fmt.Sprintf("mongodb://%s:%s/%s", host, port, cfg.MongoDB.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
		url.QueryEscape(cfg.MongoDB.Username),
		url.QueryEscape(cfg.MongoDB.Password),
		host,
		port,
		cfg.MongoDB.Database,
	)
}

// ProviderTimeout is the per-call deadline for the completion API
func (cfg *Config) ProviderTimeout() time.Duration {
	if cfg.Provider.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Provider.Timeout) * time.Second
}

// ListenAddr joins host and port for http.Server
func (cfg *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
}

type rosterFile struct {
	Moderators []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"moderators"`
}

// ResolveRoster picks the roster from a YAML file, then a comma list, then the default.
func ResolveRoster(list, path string) ([]string, error) {
	if path != "" {
		return LoadRosterFile(path)
	}
	if ids := splitList(list); len(ids) > 0 {
		return ids, nil
	}
	return append([]string(nil), DefaultRoster...), nil
}

// LoadRosterFile reads
//
//	moderators:
//	  - id: moderator_1
//	    name: Alice
func LoadRosterFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster file: %w", err)
	}

	ids := make([]string, 0, len(rf.Moderators))
	seen := make(map[string]bool)
	for _, m := range rf.Moderators {
		id := strings.TrimSpace(m.ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("roster file %s lists no moderators", path)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": v, "default": def}).Warn("invalid integer setting, using default")
		return def
	}
	return n
}

func getFloatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": v, "default": def}).Warn("invalid float setting, using default")
		return def
	}
	return f
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
