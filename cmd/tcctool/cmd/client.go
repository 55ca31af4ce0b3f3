package cmd

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"

	"github.com/roffe/gotcc"
	"github.com/roffe/gotcc/adapter"
)

// openClient resolves the connection settings, builds the adapter and opens
// a driver on it. The caller owns the returned client and must Close it.
func openClient(cmd *cobra.Command, extra ...gotcc.Option) (*gotcc.Client, zerolog.Logger, error) {
	set, err := resolveSettings(cmd)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := newLogger(set.Debug)

	dev, err := buildAdapter(set, log)
	if err != nil {
		return nil, log, err
	}

	opts := append([]gotcc.Option{gotcc.WithLogger(log)}, extra...)
	cl := gotcc.New(opts...)
	if err := cl.Open(cmd.Context(), dev); err != nil {
		return nil, log, err
	}
	return cl, log, nil
}

func buildAdapter(set Settings, log zerolog.Logger) (gotcc.Adapter, error) {
	return buildAdapterWith(set, &gotcc.AdapterConfig{
		OnMessage: func(msg string) {
			log.Info().Msg(msg)
		},
		OnError: func(err error) {
			log.Warn().Err(err).Msg("adapter")
		},
	})
}

// buildAdapterWith resolves the adapter name and port interactively where
// needed and fills the connection settings into cfg. Callbacks already on
// cfg are kept, which is how the tui reroutes adapter chatter away from
// stderr.
func buildAdapterWith(set Settings, cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	name := set.Adapter
	if name == "" {
		var err error
		if name, err = pickAdapter(); err != nil {
			return nil, err
		}
	}

	port := set.Port
	if requiresSerialPort(name) {
		var err error
		if port, err = selectPort(port); err != nil {
			return nil, err
		}
	}

	cfg.Port = port
	cfg.PortBaudrate = set.Baudrate
	cfg.BitRate = set.BitRate
	cfg.Debug = set.Debug
	return adapter.New(name, cfg)
}

func pickAdapter() (string, error) {
	names := adapter.ListNames()
	if len(names) == 0 {
		return "", errors.New("no adapters registered")
	}
	prompt := promptui.Select{
		Label:    "Select adapter",
		Items:    names,
		HideHelp: true,
	}
	_, name, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("adapter prompt failed: %w", err)
	}
	return name, nil
}

func requiresSerialPort(name string) bool {
	for _, a := range adapter.List() {
		if a.Name == name {
			return a.RequiresSerialPort
		}
	}
	return false
}

// selectPort resolves a serial port name. "*" and the empty string prompt
// among the discovered ports, anything else must name a discovered port.
func selectPort(portName string) (string, error) {
	if runtime.GOOS == "windows" {
		portName = strings.ToUpper(portName)
	}
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found")
	}

	var names []string
	for _, port := range ports {
		if port.Name == portName {
			return portName, nil
		}
		names = append(names, port.Name)
	}
	if portName != "*" && portName != "" {
		return "", fmt.Errorf("serial port %q not found", portName)
	}

	prompt := promptui.Select{
		Label:    "Select serial port",
		Items:    names,
		HideHelp: true,
	}
	_, name, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("port prompt failed: %w", err)
	}
	return name, nil
}
