package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	AppName    string
	ClientURL  string
	Database   DatabaseConfig
	Auth       AuthConfig
	Mail       MailConfig
	SMTP       SMTPConfig
	Google     GoogleConfig
	Photos     PhotoStorageConfig
	Minio      MinioConfig
	GCS        GCSConfig
	Queue      QueueConfig
	RabbitMQ   RabbitMQConfig
	PubSub     PubSubConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// AuthConfig holds the signing keys for the three token classes.
// Each class is keyed independently so rotating or leaking one key
// does not weaken the others.
type AuthConfig struct {
	SessionSecret    string
	ActivationSecret string
	ResetSecret      string
}

// MailConfig selects how outbound mail is dispatched. Dispatch "smtp"
// delivers inline; "queue" publishes to the mail queue for the worker.
type MailConfig struct {
	From      string
	ContactTo string
	Dispatch  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type GoogleConfig struct {
	ClientID string
}

// PhotoStorageConfig selects the object storage backend for photos.
type PhotoStorageConfig struct {
	Backend string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
}

// QueueConfig selects the message broker backend for the mail queue.
type QueueConfig struct {
	Backend   string
	MailQueue string
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

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8000),
		AppName:    getEnv("APP_NAME", "lifenippon"),
		ClientURL:  getEnv("CLIENT_URL", "http://localhost:3000"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "lifenippon"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "lifenippon_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		Auth: AuthConfig{
			SessionSecret:    getEnv("JWT_SECRET", ""),
			ActivationSecret: getEnv("JWT_ACCOUNT_ACTIVATION", ""),
			ResetSecret:      getEnv("JWT_RESET_PASSWORD", ""),
		},
		Mail: MailConfig{
			From:      getEnv("EMAIL_FROM", "noreply@lifenippon.com"),
			ContactTo: getEnv("EMAIL_TO", ""),
			Dispatch:  getEnv("MAIL_DISPATCH", "smtp"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		Google: GoogleConfig{
			ClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		Photos: PhotoStorageConfig{
			Backend: getEnv("PHOTO_STORAGE_BACKEND", "minio"),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "lifenippon-photos"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		Queue: QueueConfig{
			Backend:   getEnv("QUEUE_BACKEND", "rabbitmq"),
			MailQueue: getEnv("MAIL_QUEUE", "emails"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH_COUNT", 8),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}
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
		return valueStr == "true" || valueStr == "1"
	}
	return defaultValue
}
