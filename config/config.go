package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	App      AppConfig
	Celonis  CelonisConfig
	LeanIX   LeanIXConfig
	Graph    GraphConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Port string `validate:"required"`
}

// DatabaseConfig points at the Postgres database holding run summaries.
// Summaries stay in memory when Enabled is false.
type DatabaseConfig struct {
	Enabled  bool
	Host     string `validate:"required_if=Enabled true"`
	Port     int    `validate:"min=1,max=65535"`
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"min=0"`
}

type AppConfig struct {
	Environment string
	LogLevel    string `validate:"oneof=debug info warn warning error"`
	Version     string
}

type CelonisConfig struct {
	Tenant                string `validate:"required"`
	AuthToken             string `validate:"required"`
	StorageCollection     string
	Facet                 string
	LCID                  int    `validate:"min=0"`
	RootProcessID         string `validate:"required"`
	RootDiagramID         string
	NavigatorCollectionID string
	BaseURL               string  `validate:"omitempty,url"`
	RateLimit             float64 `validate:"min=0"`
	Burst                 int     `validate:"min=0"`
}

type LeanIXConfig struct {
	BaseURL      string `validate:"required,url"`
	APIToken     string `validate:"required"`
	TagID        string
	OwnerRoleID  string
	RecordType   string
	Category     string
	Relationship string `validate:"omitempty,alphanum"`
}

// GraphConfig enables the Azure AD owner lookup when all three values are set.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the owner lookup is configured.
func (g GraphConfig) Enabled() bool {
	return g.TenantID != "" && g.ClientID != "" && g.ClientSecret != ""
}

type SyncConfig struct {
	MaxDepth     int    `validate:"min=1"`
	CacheBackend string `validate:"oneof=file redis"`
	CacheDir     string
	AttachLinks  bool
	JobsFile     string
	Schedule     string
}

var validate = validator.New()

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "process_sync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Celonis: CelonisConfig{
			Tenant:                getEnv("CELONIS_TENANT", ""),
			AuthToken:             getEnv("CELONIS_AUTH_TOKEN", ""),
			StorageCollection:     getEnv("CELONIS_STORAGE_COLLECTION", "Processworld"),
			Facet:                 getEnv("CELONIS_FACET", "processes"),
			LCID:                  getEnvAsInt("CELONIS_LCID", 1033),
			RootProcessID:         getEnv("CELONIS_ROOT_PROCESS_ID", ""),
			RootDiagramID:         getEnv("CELONIS_ROOT_DIAGRAM_ID", ""),
			NavigatorCollectionID: getEnv("CELONIS_NAVIGATOR_COLLECTION_ID", ""),
			BaseURL:               getEnv("CELONIS_BASE_URL", ""),
			RateLimit:             getEnvAsFloat("CELONIS_RATE_LIMIT", 5),
			Burst:                 getEnvAsInt("CELONIS_BURST", 1),
		},
		LeanIX: LeanIXConfig{
			BaseURL:      getEnv("LEANIX_BASE_URL", ""),
			APIToken:     getEnv("LEANIX_API_TOKEN", ""),
			TagID:        getEnv("LEANIX_TAG_ID", ""),
			OwnerRoleID:  getEnv("LEANIX_OWNER_ROLE_ID", ""),
			RecordType:   getEnv("LEANIX_RECORD_TYPE", "BusinessContext"),
			Category:     getEnv("LEANIX_CATEGORY", "process"),
			Relationship: getEnv("LEANIX_RELATIONSHIP", "relToChild"),
		},
		Graph: GraphConfig{
			TenantID:     getEnv("GRAPH_TENANT_ID", ""),
			ClientID:     getEnv("GRAPH_CLIENT_ID", ""),
			ClientSecret: getEnv("GRAPH_CLIENT_SECRET", ""),
		},
		Sync: SyncConfig{
			MaxDepth:     getEnvAsInt("SYNC_MAX_DEPTH", 4),
			CacheBackend: strings.ToLower(getEnv("SYNC_CACHE_BACKEND", "file")),
			CacheDir:     getEnv("SYNC_CACHE_DIR", "."),
			AttachLinks:  getEnvAsBool("SYNC_ATTACH_LINKS", false),
			JobsFile:     getEnv("SYNC_JOBS_FILE", ""),
			Schedule:     getEnv("SYNC_SCHEDULE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid configuration: %s failed on %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Sync.CacheBackend == "file" && c.Sync.CacheDir == "" {
		return fmt.Errorf("SYNC_CACHE_DIR is required for the file cache")
	}

	if c.Sync.CacheBackend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required for the redis cache")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}
