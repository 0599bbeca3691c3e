package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	LogLevel   string
	LogFormat  string
	Database   DatabaseConfig
	Store      StoreConfig
	Minio      MinioConfig
	GCS        GCSConfig
	Remote     RemoteConfig
	Events     EventsConfig
	RabbitMQ   RabbitMQConfig
	PubSub     PubSubConfig
	Auth       AuthConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// StoreConfig selects where persisted state lives.
type StoreConfig struct {
	// Backend is one of memory, file, postgres, minio, gcs.
	Backend   string
	DataDir   string
	Namespace string
	// ObjectPrefix is prepended to object keys for the minio and gcs backends.
	ObjectPrefix string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

// RemoteConfig points at the read-only demo endpoints.
type RemoteConfig struct {
	UsersURL string
	TodosURL string
	Timeout  time.Duration
}

// EventsConfig selects the broker used for record change notifications.
type EventsConfig struct {
	// Backend is one of none, memory, rabbitmq, pubsub.
	Backend string
	Channel string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// DemoPasswordHash is a bcrypt hash of the shared login password. Empty
	// means the built-in demo password.
	DemoPasswordHash string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "roster"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "roster_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
		Database:   dbConfig,
		Store: StoreConfig{
			Backend:      getEnv("STORE_BACKEND", "file"),
			DataDir:      getEnv("DATA_DIR", defaultDataDir()),
			Namespace:    getEnv("STORE_NAMESPACE", ""),
			ObjectPrefix: getEnv("STORE_OBJECT_PREFIX", "roster/"),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "roster"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		Remote: RemoteConfig{
			UsersURL: getEnv("REMOTE_USERS_URL", "https://jsonplaceholder.typicode.com/users"),
			TodosURL: getEnv("REMOTE_TODOS_URL", "https://jsonplaceholder.typicode.com/todos"),
			Timeout:  getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
		},
		Events: EventsConfig{
			Backend: getEnv("EVENTS_BACKEND", "none"),
			Channel: getEnv("EVENTS_CHANNEL", "roster.records"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			TokenTTL:         getEnvDuration("TOKEN_TTL", 24*time.Hour),
			DemoPasswordHash: getEnv("DEMO_PASSWORD_HASH", ""),
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + string(os.PathSeparator) + "roster"
	}
	return ".roster"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(strings.TrimSpace(valueStr)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}
