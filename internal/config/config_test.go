package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PIX_EXPIRES_AFTER", "")
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, time.Hour, cfg.PixExpiresAfter)
	assert.Equal(t, "brl", cfg.Currency)
	assert.True(t, cfg.RunMigrations)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("SWEEP_INTERVAL", "nope")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("CURRENCY", "BRL")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "brl", cfg.Currency)
}

func TestLoad_StaleAfterHasAFloor(t *testing.T) {
	t.Setenv("STALE_AFTER", "10m")
	assert.Equal(t, 30*time.Minute, Load().StaleAfter)
}
