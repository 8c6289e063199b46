package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()
	assert.Equal(t, "collections", cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.ConnectionTimeout)
}

func TestConnectionManager_CachesHandles(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}

	cfg := DefaultConnectionConfig()
	cfg.URI = uri
	cm, err := Connect(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer cm.Close(context.Background())

	a := cm.DatabaseByName("one")
	b := cm.DatabaseByName("one")
	assert.Same(t, a, b)
	assert.Equal(t, 1, cm.GetConnectionCount())
	assert.Equal(t, "collections", cm.Database().Name())
}
