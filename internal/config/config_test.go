package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.Auth.Disabled = true
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadPorts(t *testing.T) {
	cfg := Default()
	cfg.Auth.Disabled = true
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Auth.Disabled = true
	cfg.ManageStore.Host = "127.0.0.1"
	cfg.ManageStore.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresKeyHashWhenAuthEnabled(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key hash")
}

func TestValidateRejectsPlaintextKeyHash(t *testing.T) {
	cfg := Default()
	cfg.Auth.APIKeyHash = "definitely-not-a-hash"
	assert.Error(t, cfg.Validate())
}

func TestManageStoreDSN(t *testing.T) {
	ms := ManageStoreConfig{
		Host:     "127.0.0.1",
		Port:     3307,
		User:     "root",
		Database: "inkeep_manage",
	}
	assert.Equal(t, "root@tcp(127.0.0.1:3307)/inkeep_manage?parseTime=true&interpolateParams=true", ms.DSN())

	ms.Password = "secret"
	assert.Equal(t, "root:secret@tcp(127.0.0.1:3307)/inkeep_manage?parseTime=true&interpolateParams=true", ms.DSN())
}

func TestManageStoreEnabled(t *testing.T) {
	assert.False(t, ManageStoreConfig{}.Enabled())
	assert.False(t, ManageStoreConfig{Host: "   "}.Enabled())
	assert.True(t, ManageStoreConfig{Host: "db.internal"}.Enabled())
}

func TestCheckAPIKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("sk-test-key"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := AuthConfig{APIKeyHash: string(hash)}
	assert.True(t, auth.CheckAPIKey("sk-test-key"))
	assert.False(t, auth.CheckAPIKey("wrong"))
	assert.False(t, auth.CheckAPIKey(""))

	assert.True(t, AuthConfig{Disabled: true}.CheckAPIKey(""))
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agents.yml")
	data := []byte(`
server:
  port: 4000
manage_store:
  host: dolt.internal
  database: manage
auth:
  disabled: true
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("AGENTS_CONFIG", path)
	t.Setenv("AGENTS_SERVER_PORT", "4001")
	t.Setenv("AGENTS_MANAGE_DB_POOL_SIZE", "3")

	cfg, err := Load()
	require.NoError(t, err)

	// env beats file beats default
	assert.Equal(t, 4001, cfg.Server.Port)
	assert.Equal(t, "dolt.internal", cfg.ManageStore.Host)
	assert.Equal(t, 3, cfg.ManageStore.PoolSize)
	assert.Equal(t, "main", cfg.ManageStore.DefaultBranch)
}

func TestLoadIgnoresMalformedEnvNumbers(t *testing.T) {
	t.Setenv("AGENTS_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))
	t.Setenv("AGENTS_SERVER_PORT", "not-a-number")
	t.Setenv("AGENTS_AUTH_DISABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	assert.True(t, cfg.Auth.Disabled)
}
