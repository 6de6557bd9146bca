package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Listen)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folioserve.yaml")
	content := `
listen: ":8080"
data_dir: /srv/folioserve
jwt_secret: super-secret
log_level: debug
admin:
  username: root
  password: changeme
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "/srv/folioserve", cfg.DataDir)
	assert.Equal(t, "super-secret", cfg.JWTSecret)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "root", cfg.Admin.Username)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folioserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [broken"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestJWTSecretFromEnv(t *testing.T) {
	t.Setenv("FOLIOSERVE_JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
}

func TestHomeDirExpansion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folioserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: ~/folio\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "folio"), cfg.DataDir)
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}

	assert.Equal(t, filepath.Join("/data", "objects"), cfg.ObjectsDir())
	assert.Equal(t, filepath.Join("/data", "config", "users.yaml"), cfg.UsersFile())
	assert.Equal(t, filepath.Join("/data", "config", "tags.yaml"), cfg.TagsFile())
	assert.Equal(t, filepath.Join("/data", "config", "pinned.yaml"), cfg.PinnedFile())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "x"
	assert.NoError(t, cfg.Validate())
}
