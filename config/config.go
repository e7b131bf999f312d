package config

import (
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName    string `env:"APP_NAME" env-default:"fern-etl"`
	Port       int    `env:"PORT" env-default:"8000"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// Dependency readiness probing
	StartupMaxAttempts   int           `env:"STARTUP_MAX_ATTEMPTS" env-default:"30" validate:"gt=0"`
	StartupRetryInterval time.Duration `env:"STARTUP_RETRY_INTERVAL" env-default:"2s"`
	StartupProbeTimeout  time.Duration `env:"STARTUP_PROBE_TIMEOUT" env-default:"2s"`

	// PostgreSQL (source of record, read-only)
	PostgresHost     string `env:"POSTGRES_HOST" env-default:"postgres" validate:"required"`
	PostgresPort     int    `env:"POSTGRES_PORT" env-default:"5432"`
	PostgresDB       string `env:"POSTGRES_DB" env-default:"shop" validate:"required"`
	PostgresUser     string `env:"POSTGRES_USER" env-default:"myuser"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" env-default:"mypassword"`
	PostgresSSLMode  string `env:"POSTGRES_SSL_MODE" env-default:"disable"`

	// Graph database (Memgraph/Neo4j over Bolt)
	GraphURI      string `env:"NEO4J_URI" env-default:"bolt://neo4j:7687" validate:"required"`
	GraphUser     string `env:"NEO4J_USER" env-default:"neo4j"`
	GraphPassword string `env:"NEO4J_PASSWORD" env-default:"yourStrongPassword123"`

	// Load batching
	BatchSize int `env:"BATCH_SIZE" env-default:"1000" validate:"gt=0"`

	// Kafka run-event emission (optional; the pipeline result never depends on it)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaTopic        string   `env:"KAFKA_TOPIC" env-default:"etl-run-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`
}

// Load reads the configuration from the environment, applying any .env file
// first. Defaults mirror the docker-compose service names.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
