package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"VITALS_ADDR", "VITALS_STORE", "VITALS_SESSION_TTL", "VITALS_DEMO_MODE", "VITALS_EVENTS", "VITALS_KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, StoreMemory, c.Store)
	assert.Equal(t, 12*time.Hour, c.SessionTTL)
	assert.Equal(t, 5*time.Second, c.StoreTimeout)
	assert.False(t, c.DemoMode)
	assert.Equal(t, EventsLog, c.Events)
	assert.Empty(t, c.KafkaBrokers)
	require.NoError(t, c.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VITALS_STORE", "SQLite")
	t.Setenv("VITALS_SQLITE_PATH", "/tmp/v.db")
	t.Setenv("VITALS_SESSION_TTL", "30m")
	t.Setenv("VITALS_DEMO_MODE", "1")
	t.Setenv("VITALS_EVENTS", "kafka")
	t.Setenv("VITALS_KAFKA_BROKERS", "k1:9092,k2:9092")
	c := Load()
	assert.Equal(t, StoreSQLite, c.Store)
	assert.Equal(t, "/tmp/v.db", c.SQLitePath)
	assert.Equal(t, 30*time.Minute, c.SessionTTL)
	assert.True(t, c.DemoMode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.KafkaBrokers)
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	base := Config{Store: StoreMemory, Events: EventsNone}
	require.NoError(t, base.Validate())

	c := base
	c.Store = "redis"
	assert.ErrorContains(t, c.Validate(), "unknown store")

	c = base
	c.Store = StorePostgres
	assert.ErrorContains(t, c.Validate(), "VITALS_POSTGRES_DSN")

	c = base
	c.Events = EventsSQS
	assert.ErrorContains(t, c.Validate(), "VITALS_SQS_QUEUE")

	c = base
	c.Events = "carrier-pigeon"
	assert.ErrorContains(t, c.Validate(), "unknown events sink")
}
