package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"api_base_url": "http://json-config.com/api",
	"credentials_file": "json_credentials.json",
	"log_level": "debug",
	"demo_address": "localhost:9999"
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	file, err := os.CreateTemp("", "config*.json")
	require.NoError(t, err)
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	t.Cleanup(func() {
		err := os.Remove(file.Name())
		require.NoError(t, err)
	})
	return file.Name()
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Contains(t, cfg.CredentialsFile, ".linkboard")
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, "http://json-config.com/api", cfg.APIBaseURL)
	assert.Equal(t, "json_credentials.json", cfg.CredentialsFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "localhost:9999", cfg.DemoAddr)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("LINKBOARD_API_URL", "http://env.com/api")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, "http://env.com/api", cfg.APIBaseURL) // env overrides json
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "json_credentials.json", cfg.CredentialsFile) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("LINKBOARD_API_URL", "http://env.com/api")

	os.Args = []string{
		"testbin",
		"-a", "http://cli.com/api",
		"-l", "info",
		"links", "list",
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "http://cli.com/api", cfg.APIBaseURL) // CLI > ENV > JSON
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json_credentials.json", cfg.CredentialsFile) // from JSON
	assert.Equal(t, []string{"links", "list"}, cfg.Args)
}

func TestConfigEnvOnly(t *testing.T) {
	t.Setenv("LINKBOARD_API_URL", "http://envonly.com/api")
	t.Setenv("LINKBOARD_REQUEST_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, "http://envonly.com/api", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfigRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}

func TestConfigRejectsMalformedAPIURL(t *testing.T) {
	t.Setenv("LINKBOARD_API_URL", "not a url")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}
