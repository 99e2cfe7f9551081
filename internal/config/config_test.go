package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		yml := `
api:
  environment: production
  port: "9090"
  jwt_signing_key: secret
store:
  use_sql: true
  flush_interval: 5s
postgres:
  driver: sqlite
  dsn: data/shops.db
`
		require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

		conf, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "production", conf.API.Environment)
		assert.Equal(t, "9090", conf.API.Port)
		assert.True(t, conf.Store.UseSQL)
		assert.Equal(t, 5*time.Second, conf.Store.FlushInterval)
		assert.Equal(t, "data/shops.json", conf.Store.FilePath)
		assert.Equal(t, DriverSQLite, conf.Postgres.Driver)
		assert.False(t, conf.Store.FallbackToFile)
		assert.Equal(t, 10, conf.Postgres.MaxOpenConns)
		assert.Equal(t, 30*time.Minute, conf.Postgres.ConnMaxLifetime)
	})

	t.Run("missing file uses defaults and env", func(t *testing.T) {
		t.Setenv("SHOP_API_JWT_SIGNING_KEY", "from-env")
		t.Setenv("SHOP_STORE_SQL_WORKERS", "8")
		t.Setenv("SHOP_POSTGRES_MAX_OPEN_CONNS", "25")

		conf, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
		require.NoError(t, err)
		assert.Equal(t, "from-env", conf.API.JWTSigningKey)
		assert.Equal(t, 8, conf.Store.SQLWorkers)
		assert.Equal(t, 25, conf.Postgres.MaxOpenConns)
		assert.Equal(t, 30*time.Second, conf.Store.FlushInterval)
		assert.False(t, conf.Store.UseSQL)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		yml := `
api:
  jwt_signing_key: secret
store:
  flush_interval: 10ms
`
		require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}
