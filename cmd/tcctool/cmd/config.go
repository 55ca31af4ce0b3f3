package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "tcctool.toml"

// Settings are the resolved connection settings for one invocation. Flags
// the user set explicitly win over the config file, the file wins over the
// flag defaults.
type Settings struct {
	Adapter  string
	Port     string
	Baudrate int
	BitRate  float64
	Debug    bool
}

// tcctool.toml key mapping.
type fileConfig struct {
	Adapter  string  `toml:"adapter"`
	Port     string  `toml:"port"`
	Baudrate int     `toml:"baudrate"`
	BitRate  float64 `toml:"bitrate"`
	Debug    bool    `toml:"debug"`
}

func resolveSettings(cmd *cobra.Command) (Settings, error) {
	flags := cmd.Flags()
	set := Settings{}
	var err error
	if set.Adapter, err = flags.GetString(flagAdapter); err != nil {
		return Settings{}, err
	}
	if set.Port, err = flags.GetString(flagPort); err != nil {
		return Settings{}, err
	}
	if set.Baudrate, err = flags.GetInt(flagBaudrate); err != nil {
		return Settings{}, err
	}
	if set.BitRate, err = flags.GetFloat64(flagBitrate); err != nil {
		return Settings{}, err
	}
	if set.Debug, err = flags.GetBool(flagDebug); err != nil {
		return Settings{}, err
	}

	path, err := flags.GetString(flagConfig)
	if err != nil {
		return Settings{}, err
	}
	explicit := path != ""
	if path == "" {
		path = defaultConfigFile
	}
	return overlayConfig(set, path, explicit, flags.Changed)
}

// overlayConfig merges the config file at path into set. Keys absent from
// the file keep their current value, keys the user already set on the
// command line win over the file. A missing file is only an error when it
// was named explicitly.
func overlayConfig(set Settings, path string, explicit bool, changed func(string) bool) (Settings, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return set, nil
		}
		return Settings{}, fmt.Errorf("load config %q: %w", path, err)
	}

	if meta.IsDefined("adapter") && !changed(flagAdapter) {
		set.Adapter = strings.TrimSpace(raw.Adapter)
	}
	if meta.IsDefined("port") && !changed(flagPort) {
		set.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baudrate") && !changed(flagBaudrate) {
		set.Baudrate = raw.Baudrate
	}
	if meta.IsDefined("bitrate") && !changed(flagBitrate) {
		set.BitRate = raw.BitRate
	}
	if meta.IsDefined("debug") && !changed(flagDebug) {
		set.Debug = raw.Debug
	}
	return set, nil
}
