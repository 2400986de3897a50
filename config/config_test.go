package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.JobStore)
	assert.Equal(t, 30*time.Second, cfg.MAASTimeout)
	assert.Equal(t, []string{"default"}, cfg.MAAS.Pools)
}

func TestLoadFromConfFiles(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultMAASConfFile),
		[]byte("MAAS_URL=http://maas:5240/MAAS\nAPI_KEY=ck:tk:secret\nPOOLS=gpu,default\n"), 0o600))
	t.Setenv("JOB_STORE", StoreSQLite)
	t.Setenv("MAAS_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://maas:5240/MAAS", cfg.MAAS.URL)
	assert.Equal(t, "ck:tk:secret", cfg.MAAS.APIKey)
	assert.Equal(t, []string{"gpu", "default"}, cfg.MAAS.Pools)
	assert.Equal(t, StoreSQLite, cfg.JobStore)
	assert.Equal(t, 5*time.Second, cfg.MAASTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdirTemp(t)

	t.Setenv("JOB_STORE", "redis")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JOB_STORE")

	t.Setenv("JOB_STORE", StoreMemory)
	t.Setenv("PORT", "eighty")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse PORT")
}

func TestDBConfig(t *testing.T) {
	db := DBConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "jobs", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=jobs port=5433 sslmode=disable", db.DSN())
	assert.Equal(t, "postgres://u:p@db:5433/jobs?sslmode=disable", db.URL())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("MAASPROV_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("MAASPROV_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("MAASPROV_TEST_MISSING_KEY", "fallback"))
}
