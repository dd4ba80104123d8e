// Package persist provides the server's configuration surface, file
// logger, and in-memory reference DataProvider.
package persist

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/unicode/norm"

	"github.com/nebulouslabs/blockserver/crypto"
)

const envPrefix = "BLOCKSERVER"

// Settings is the server's fully-resolved configuration, unmarshaled
// from Viper after defaults, config file, and environment overrides are
// applied.
type Settings struct {
	Binds               []string
	NumThreads          int
	Motd                string
	Favicon             string
	MaxPlayers          int
	MaintenanceInterval time.Duration
	SaveFrequency       time.Duration
	Seed                int64
	WorldType           string
}

// defaultBinds matches the dual-stack default every vanilla server ships
// with: IPv4 and IPv6 wildcard binds on the standard port.
var defaultBinds = []string{"0.0.0.0:25565", "[::]:25565"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binds", strings.Join(defaultBinds, ";"))
	v.SetDefault("num_threads", 0)
	v.SetDefault("motd", "A Go Minecraft Server")
	v.SetDefault("favicon", "")
	v.SetDefault("max_players", 20)
	v.SetDefault("maintenance_interval", 300000)
	v.SetDefault("save_frequency", 300000)
	v.SetDefault("seed", "")
	v.SetDefault("world_type", "DEFAULT")
}

// Load reads configuration from built-in defaults, configPath (if
// non-empty and present), and environment variables prefixed
// BLOCKSERVER_, in ascending precedence, and resolves it into a Settings.
func Load(configPath string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Settings{}, err
			}
		}
	}

	return resolve(v)
}

func resolve(v *viper.Viper) (Settings, error) {
	s := Settings{
		NumThreads:          v.GetInt("num_threads"),
		Motd:                v.GetString("motd"),
		Favicon:             v.GetString("favicon"),
		MaxPlayers:          v.GetInt("max_players"),
		MaintenanceInterval: time.Duration(v.GetInt64("maintenance_interval")) * time.Millisecond,
		SaveFrequency:       time.Duration(v.GetInt64("save_frequency")) * time.Millisecond,
		WorldType:           v.GetString("world_type"),
	}

	for _, b := range strings.Split(v.GetString("binds"), ";") {
		if b = strings.TrimSpace(b); b != "" {
			s.Binds = append(s.Binds, b)
		}
	}
	if len(s.Binds) == 0 {
		s.Binds = defaultBinds
	}

	seed, err := resolveSeed(v.GetString("seed"))
	if err != nil {
		return Settings{}, err
	}
	s.Seed = seed

	return s, nil
}

// resolveSeed implements the configured seed's three forms: an integer
// literal, an arbitrary string (hashed with djb2 after NFC
// normalization), or absent (a fresh value from the crypto package's
// CSPRNG).
func resolveSeed(raw string) (int64, error) {
	if raw == "" {
		return int64(crypto.Uint64()), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	return int64(djb2(norm.NFC.String(raw))), nil
}

func djb2(s string) uint64 {
	var h uint64 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint64(s[i])
	}
	return h
}
