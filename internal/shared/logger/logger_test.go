package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"firestore-collection/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithOutput(&bytes.Buffer{}, "info", "json")
	var _ Logger = NewZapLogger("info", "json")
}

func TestNew_SelectsBackend(t *testing.T) {
	_, isZap := New("zap", "info", "json").(*ZapLogger)
	assert.True(t, isZap)

	_, isLogrus := New("logrus", "debug", "text").(*LogrusLogger)
	assert.True(t, isLogrus)

	t.Setenv("LOG_BACKEND", "zap")
	_, isZap = New("", "", "").(*ZapLogger)
	assert.True(t, isZap)
}

func contextWithAllKeys() context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, contextkeys.CollectionKey, "users")
	ctx = context.WithValue(ctx, contextkeys.OperationKey, "set.all")
	ctx = context.WithValue(ctx, contextkeys.TransactionIDKey, "tx-9")
	return ctx
}

func TestLogrusLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput(&buf, "debug", "json")

	log.WithContext(contextWithAllKeys()).WithFields(map[string]interface{}{"count": 2}).Info("written")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "users", line["collection"])
	assert.Equal(t, "set.all", line["operation"])
	assert.Equal(t, "tx-9", line["tx_id"])
	assert.Equal(t, float64(2), line["count"])
	assert.Equal(t, "written", line["msg"])
}

func TestLogrusLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput(&buf, "warn", "json")
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestZapLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewZapLoggerWithOutput(&buf, "debug", "json")

	log.WithContext(contextWithAllKeys()).WithComponent("bulk-writer").Infof("wrote %d", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "tx-9", line["tx_id"])
	assert.Equal(t, "bulk-writer", line["component"])
	assert.Equal(t, "wrote 3", line["message"])
}

func TestNew_ProductionForcesJSON(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_FORMAT", "text")
	assert.Equal(t, logFormatJSON, envFormat())

	t.Setenv("ENVIRONMENT", "development")
	assert.Equal(t, logFormatText, envFormat())
}

func TestLogrusLogger_UnknownLevelMeansInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput(&buf, "LOUD", "text")
	log.Debug("dropped")
	assert.Zero(t, buf.Len())
	log.WithComponent("sync-manager").Info("kept")
	assert.Contains(t, buf.String(), "component=sync-manager")
}

func TestNop(t *testing.T) {
	log := Nop().WithFields(map[string]interface{}{"a": 1}).WithContext(context.Background()).WithComponent("x")
	assert.NotPanics(t, func() { log.Errorf("nothing %d", 1) })
}
