package cmd

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "tcctool",
	Short:        "Tactical Control Component swiss army tool",
	Long:         `Talk to a TCC weapon station over CAN: drive the axes, read telemetry, tune reporting watchdogs, record and replay bus traffic.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

const (
	flagAdapter  = "adapter"
	flagPort     = "port"
	flagBaudrate = "baudrate"
	flagBitrate  = "bitrate"
	flagConfig   = "config"
	flagDebug    = "debug"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP(flagAdapter, "a", "", "adapter to use, empty = pick interactively")
	pf.StringP(flagPort, "p", "*", "serial port or adapter address, * = pick from discovered ports")
	pf.IntP(flagBaudrate, "b", 115200, "serial port baudrate")
	pf.Float64(flagBitrate, 500, "CAN bus bit rate in kbit/s")
	pf.String(flagConfig, "", "config file (default "+defaultConfigFile+" when present)")
	pf.BoolP(flagDebug, "d", false, "debug mode")
}

// newLogger builds the console logger every command hangs its output on.
func newLogger(debug bool) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if debug {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}).
		Level(lvl).
		With().Timestamp().
		Logger()
}
