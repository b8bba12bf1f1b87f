package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// point at a file that does not exist so nothing on disk interferes
	t.Setenv("TRADEFARM_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Trading.SlippageBps)
	require.Equal(t, 10, cfg.Trading.FeeBps)
	require.Equal(t, "admin", cfg.Trading.Operator)
	require.Equal(t, 10, cfg.UI.PageSize)
	require.Equal(t, "$", cfg.UI.CurrencySymbol)
	require.Equal(t, "UTC", cfg.UI.Timezone)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte(`
[database]
path = "/tmp/farm.db"

[trading]
slippage_bps = 2
fee_bps = 7
operator = "kvist"

[ui]
page_size = 25
currency_symbol = "€"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("TRADEFARM_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/farm.db", cfg.Database.Path)
	require.Equal(t, 2, cfg.Trading.SlippageBps)
	require.Equal(t, 7, cfg.Trading.FeeBps)
	require.Equal(t, "kvist", cfg.Trading.Operator)
	require.Equal(t, 25, cfg.UI.PageSize)
	require.Equal(t, "€", cfg.UI.CurrencySymbol)
}

func TestLoadClampsPageSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\npage_size = 0\n"), 0o600))
	t.Setenv("TRADEFARM_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 10, cfg.UI.PageSize)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("TRADEFARM_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.UI.PageSize = 50
	cfg.Trading.Operator = "nightshift"
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, 50, got.UI.PageSize)
	require.Equal(t, "nightshift", got.Trading.Operator)
}
