package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config lists the tunable parameters of the Ecoleta server and CLI.
type Config struct {
	HTTPAddr       string
	Store          string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	RedisDB        int
	PublicURL      string
	UploadsDir     string
	CatalogFile    string
	AllowedOrigins []string
	JWTSecret      string
	MQTTBroker     string
	MQTTTopic      string
	IBGEURL        string
	LogLevel       string
}

const (
	defaultHTTPAddr      = ":3333"
	defaultStore         = "sqlite"
	defaultDatabaseURL   = "data/ecoleta.db"
	defaultMongoURI      = "mongodb://localhost:27017"
	defaultMongoDatabase = "ecoleta"
	defaultPublicURL     = "http://localhost:3333"
	defaultUploadsDir    = "uploads"
	defaultCatalogFile   = "data/items.yaml"
	defaultMQTTTopic     = "ecoleta/points"
	defaultIBGEURL       = "https://servicodados.ibge.gov.br"
	defaultLogLevel      = "info"
)

var defaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// Load reads an optional .env file and derives the configuration from the
// environment, falling back to defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment only")
	}

	cfg := Config{
		HTTPAddr:       getEnv("ECOLETA_HTTP_ADDR", defaultHTTPAddr),
		Store:          strings.ToLower(getEnv("ECOLETA_STORE", defaultStore)),
		DatabaseURL:    getEnv("ECOLETA_DATABASE_URL", defaultDatabaseURL),
		MongoURI:       getEnv("MONGODB_URI", defaultMongoURI),
		MongoDatabase:  getEnv("MONGODB_DATABASE", defaultMongoDatabase),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		PublicURL:      strings.TrimRight(getEnv("ECOLETA_PUBLIC_URL", defaultPublicURL), "/"),
		UploadsDir:     getEnv("ECOLETA_UPLOADS_DIR", defaultUploadsDir),
		CatalogFile:    getEnv("ECOLETA_CATALOG_FILE", defaultCatalogFile),
		AllowedOrigins: defaultAllowedOrigins,
		JWTSecret:      os.Getenv("ECOLETA_JWT_SECRET"),
		MQTTBroker:     os.Getenv("ECOLETA_MQTT_BROKER"),
		MQTTTopic:      getEnv("ECOLETA_MQTT_TOPIC", defaultMQTTTopic),
		IBGEURL:        strings.TrimRight(getEnv("ECOLETA_IBGE_URL", defaultIBGEURL), "/"),
		LogLevel:       getEnv("ECOLETA_LOG_LEVEL", defaultLogLevel),
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}

	if v := os.Getenv("ECOLETA_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		cfg.AllowedOrigins = origins
	}

	switch cfg.Store {
	case "sqlite", "postgres", "mongo":
	default:
		return Config{}, fmt.Errorf("invalid ECOLETA_STORE %q: want sqlite, postgres or mongo", cfg.Store)
	}

	return cfg, nil
}

// NewLogger builds the JSON slog logger used across the process.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
