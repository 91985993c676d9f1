package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 8*time.Second, cfg.Dispatcher.SendTimeout)
	assert.Equal(t, int64(1), cfg.Pricing.CreditsPerSegment)
	assert.Equal(t, 15*time.Minute, cfg.Credits.HoldMaxAge)
	assert.Equal(t, 10, cfg.Segments.Max)
	assert.Equal(t, "routee", cfg.Routing.Default.Primary)
	assert.Len(t, cfg.Gateways.Providers, 3)

	p, ok := cfg.Provider("bulkgate")
	require.True(t, ok)
	assert.Equal(t, "bulkgate", p.Kind)
	assert.Equal(t, 5, p.Breaker.FailThreshold)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\nsegments:\n  max: 4\n"), 0o600))

	t.Setenv("SMSGW_MYSQL_DSN", "user:pw@tcp(db:3306)/x")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 4, cfg.Segments.Max)
	assert.Equal(t, "user:pw@tcp(db:3306)/x", cfg.MySQL.DSN)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	bad := base
	bad.Pricing.CreditsPerSegment = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Routing.Default.Fallback = "nope"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Credits.HoldMaxAge = 10 * time.Second
	assert.Error(t, bad.Validate())

	bad = base
	bad.Gateways.Providers = append(bad.Gateways.Providers, bad.Gateways.Providers[0])
	assert.Error(t, bad.Validate())
}
