package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesSpecDefaults(t *testing.T) {
	for _, key := range []string{
		"BATCH_SIZE", "POLL_INTERVAL_MS", "REQUEST_TIMEOUT_MS", "MAX_RETRIES",
		"PUBLISHER_CONCURRENCY", "PAYMENT_FAILURE_RATE",
		"ORDER_SERVICE_URL", "PAYMENT_SERVICE_URL", "INVENTORY_SERVICE_URL", "SHIPPING_SERVICE_URL",
	} {
		os.Unsetenv(key)
	}

	cfg := Load("3001")

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.PublisherConcurrency)
	assert.Equal(t, 0.10, cfg.PaymentFailureRate)
	assert.Equal(t, "http://localhost:3002", cfg.PaymentServiceURL)
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	os.Setenv("BATCH_SIZE", "25")
	defer os.Unsetenv("BATCH_SIZE")

	cfg := Load("3001")
	assert.Equal(t, 25, cfg.BatchSize)
}

func TestServiceURLLooksUpByName(t *testing.T) {
	cfg := Load("3001")
	assert.Equal(t, cfg.InventoryServiceURL, cfg.ServiceURL("inventory"))
	assert.Equal(t, "", cfg.ServiceURL("unknown"))
}
