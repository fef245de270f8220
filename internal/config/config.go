// Package config gathers the server's VITALS_* environment settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/soaringjerry/Vitals/internal/utils"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	EventsLog   = "log"
	EventsKafka = "kafka"
	EventsSQS   = "sqs"
	EventsNone  = "none"
)

type Config struct {
	Addr         string
	Store        string
	SnapshotPath string
	SQLitePath   string
	PostgresDSN  string
	SessionTTL   time.Duration
	StoreTimeout time.Duration
	DemoMode     bool
	SeedPassword string
	CORSOrigin   string

	Events       string
	KafkaBrokers []string
	KafkaTopic   string
	SQSQueue     string

	BackupBucket string
}

func Load() Config {
	return Config{
		Addr:         utils.SafeEnv("VITALS_ADDR", ":8080"),
		Store:        strings.ToLower(utils.SafeEnv("VITALS_STORE", StoreMemory)),
		SnapshotPath: utils.SafeEnv("VITALS_SNAPSHOT_PATH", "data/vitals.json"),
		SQLitePath:   utils.SafeEnv("VITALS_SQLITE_PATH", "data/vitals.db"),
		PostgresDSN:  utils.SafeEnv("VITALS_POSTGRES_DSN", ""),
		SessionTTL:   utils.SafeEnvDuration("VITALS_SESSION_TTL", 12*time.Hour),
		StoreTimeout: utils.SafeEnvDuration("VITALS_STORE_TIMEOUT", 5*time.Second),
		DemoMode:     utils.SafeEnvBool("VITALS_DEMO_MODE", false),
		SeedPassword: utils.SafeEnv("VITALS_SEED_PASSWORD", ""),
		CORSOrigin:   utils.SafeEnv("VITALS_CORS_ORIGIN", "*"),
		Events:       strings.ToLower(utils.SafeEnv("VITALS_EVENTS", EventsLog)),
		KafkaBrokers: utils.SafeEnvList("VITALS_KAFKA_BROKERS"),
		KafkaTopic:   utils.SafeEnv("VITALS_KAFKA_TOPIC", "vitals.events"),
		SQSQueue:     utils.SafeEnv("VITALS_SQS_QUEUE", ""),
		BackupBucket: utils.SafeEnv("VITALS_BACKUP_BUCKET", ""),
	}
}

// Validate reports the first setting that cannot work together with the rest.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("VITALS_SQLITE_PATH required for store %q", c.Store)
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("VITALS_POSTGRES_DSN required for store %q", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", c.Store)
	}
	switch c.Events {
	case EventsLog, EventsNone:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("VITALS_KAFKA_BROKERS required for kafka events")
		}
	case EventsSQS:
		if c.SQSQueue == "" {
			return fmt.Errorf("VITALS_SQS_QUEUE required for sqs events")
		}
	default:
		return fmt.Errorf("unknown events sink %q (want log, kafka, sqs or none)", c.Events)
	}
	return nil
}
