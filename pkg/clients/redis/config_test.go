package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===========================================================================
// Secret Type Tests
// ===========================================================================

func TestSecret_String_ReturnsRedacted(t *testing.T) {
	t.Parallel()
	s := Secret("cache-password")
	assert.Equal(t, "[REDACTED]", s.String())
}

func TestSecret_Value_ReturnsActualValue(t *testing.T) {
	t.Parallel()
	s := Secret("cache-password")
	assert.Equal(t, "cache-password", s.Value())
}

func TestSecret_MarshalText_ReturnsRedacted(t *testing.T) {
	t.Parallel()
	s := Secret("cache-password")
	data, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(data))
}

// ===========================================================================
// Validate Tests
// ===========================================================================

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultDB, cfg.DB)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_ZeroValueGetsDefaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultPoolSize, cfg.PoolSize)
	assert.Equal(t, DefaultDialTimeout, cfg.DialTimeout)
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	t.Parallel()
	cfg := &Config{Port: 70000}
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_PoolSizeLessThanMinIdle(t *testing.T) {
	t.Parallel()
	cfg := &Config{PoolSize: 2, MinIdleConns: 10}
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_NegativeTimeout(t *testing.T) {
	t.Parallel()
	cfg := &Config{ReadTimeout: -1}
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_URI_Valid(t *testing.T) {
	t.Parallel()
	cfg := &Config{URI: "redis://:pw@cache.internal:6379/0"}
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_URI_TLSScheme(t *testing.T) {
	t.Parallel()
	cfg := &Config{URI: "rediss://cache.internal:6380/0"}
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_URI_BadScheme(t *testing.T) {
	t.Parallel()
	cfg := &Config{URI: "http://cache.internal:6379"}
	assert.Error(t, cfg.Validate())
}

// ===========================================================================
// truncateStatement Tests
// ===========================================================================

func TestTruncateStatement_Short(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "GET key1", truncateStatement("GET key1"))
}

func TestTruncateStatement_Long(t *testing.T) {
	t.Parallel()
	long := "SET " + strings.Repeat("x", 200)
	got := truncateStatement(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, maxStatementTruncateLen, len([]rune(got))-3)
}

func TestTruncateStatement_MultiByte(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("日", 150)
	got := truncateStatement(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, maxStatementTruncateLen+3, len([]rune(got)))
}
