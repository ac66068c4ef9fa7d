package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONCarriesServiceAndEnv(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := newLogger(buf, &Config{LogFormat: "json", LogLevel: "info", AppEnv: "staging"})
	logger.Debug("hidden")
	logger.Info("receipt posted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "receipt posted", entry["msg"])
	require.Equal(t, "sitestock", entry["service"])
	require.Equal(t, "staging", entry["env"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel("debug").String())
	require.Equal(t, "WARN", parseLevel(" Warning ").String())
	require.Equal(t, "INFO", parseLevel("").String())
}
