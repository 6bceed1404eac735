package jobrunner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Second, cfg.IdleSleep)
	assert.Equal(t, 5*time.Minute, cfg.LeaseTTL)
	assert.Equal(t, time.Minute, cfg.ReapInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.JobRetention)
	assert.Equal(t, 24*time.Hour, cfg.PurgeInterval)
}

func TestConfig_WithDefaults_PreservesOverrides(t *testing.T) {
	cfg := Config{Workers: 8, IdleSleep: 5 * time.Second}.withDefaults()

	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.IdleSleep)
}

func TestUnknownOperationError_Error(t *testing.T) {
	err := &unknownOperationError{msg: "unknown job operation: bogus"}
	assert.Equal(t, "unknown job operation: bogus", err.Error())
}
