package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
service:
  name: psdglot-test
state:
  path: /tmp/psdglot-test.db
storage:
  endpoint: http://localhost:9000
  access_key: minioadmin
  secret_key: minioadmin
  bucket: psdglot-staging
image_api:
  base_url: https://image.example.com/pie/psdService
  token_url: https://ims.example.com/ims/token/v2
  client_id: test-client
  client_secret: test-secret
translation:
  base_url: https://api.translate.example.com
  auth_key: test-key
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "psdglot-test", cfg.Service.Name)
	assert.Equal(t, "127.0.0.1:8080", cfg.Service.Listen)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ImageAPI.PollInterval)
	assert.Equal(t, 10, cfg.ImageAPI.PollAttempts)
	assert.Equal(t, 1*time.Second, cfg.Translation.CallDelay)
	assert.Equal(t, "EN", cfg.Translation.TargetLang)
	assert.Equal(t, 15*time.Minute, cfg.Storage.URLTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	broken := `
service:
  name: broken
state:
  path: /tmp/x.db
storage:
  endpoint: http://localhost:9000
`
	_, err := Load(writeConfig(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.access_key is required")
}

func TestLoadInterpolatesEnv(t *testing.T) {
	t.Setenv("PSDGLOT_TEST_SECRET", "from-env")

	yaml := minimalYAML[:len(minimalYAML)-len("  auth_key: test-key\n")] +
		"  auth_key: ${PSDGLOT_TEST_SECRET}\n"

	cfg, err := Load(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Translation.AuthKey)
}

func TestLoadRejectsUnresolvedEnv(t *testing.T) {
	yaml := minimalYAML[:len(minimalYAML)-len("  auth_key: test-key\n")] +
		"  auth_key: ${PSDGLOT_DEFINITELY_NOT_SET}\n"

	_, err := Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PSDGLOT_DEFINITELY_NOT_SET")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	yaml := "service:\n  name: psdglot-test\n  log_level: verbose\n" +
		minimalYAML[len("\nservice:\n  name: psdglot-test\n"):]
	_, err := Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}
