package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	require.Equal(t, defaultBinds, s.Binds)
	require.Equal(t, "DEFAULT", s.WorldType)
	require.Equal(t, int64(300000), s.MaintenanceInterval.Milliseconds())
	require.Equal(t, int64(300000), s.SaveFrequency.Milliseconds())
	require.Equal(t, 20, s.MaxPlayers)
}

func TestLoadReadsConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "motd: Custom message\nworld_type: FLAT\nbinds: \"127.0.0.1:25566\"\nseed: \"42\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Custom message", s.Motd)
	require.Equal(t, "FLAT", s.WorldType)
	require.Equal(t, []string{"127.0.0.1:25566"}, s.Binds)
	require.Equal(t, int64(42), s.Seed)
}

func TestResolveSeedHashesNonIntegerStrings(t *testing.T) {
	a, err := resolveSeed("my world")
	require.NoError(t, err)
	b, err := resolveSeed("my world")
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := resolveSeed("a different world")
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestResolveSeedAcceptsIntegerLiteral(t *testing.T) {
	seed, err := resolveSeed("12345")
	require.NoError(t, err)
	require.Equal(t, int64(12345), seed)
}
