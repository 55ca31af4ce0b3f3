package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(rawCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <command> <value>",
	Short: "Execute a device command",
	Long: `Execute a device command by name or numeric identifier, for example

  tcctool send YawPosition 45.0
  tcctool send fan 1
  tcctool send 1310 -- -12.5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := resolveCommand(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad value %q: %w", args[1], err)
		}

		cl, log, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer cl.Close()

		if err := cl.ExecuteCommand(command, value); err != nil {
			return err
		}
		log.Info().Stringer("command", command).Float64("value", value).Msg("sent")
		return nil
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw <id> <data>",
	Short: "Send a raw frame, bypassing the command codec",
	Long: `Send a raw frame with a hex encoded payload, for example

  tcctool raw 1300 0102000042340000`,
	Hidden: true,
	Args:   cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("bad identifier %q: %w", args[0], err)
		}
		data, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("bad payload %q: %w", args[1], err)
		}
		if len(data) > 8 {
			return fmt.Errorf("payload is %d bytes, CAN allows 8", len(data))
		}

		cl, log, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer cl.Close()

		f := gotcc.NewFrame(uint32(id), data, gotcc.Outgoing)
		if err := cl.Send(f); err != nil {
			return err
		}
		log.Info().Msg(f.String())
		return nil
	},
}

// resolveCommand accepts a command name or its numeric identifier.
func resolveCommand(s string) (gotcc.Command, error) {
	if id, err := strconv.ParseUint(s, 10, 16); err == nil {
		return gotcc.Command(id), nil
	}
	return gotcc.CommandNamed(s)
}

// resolveParameter accepts a parameter name or its numeric identifier.
func resolveParameter(s string) (gotcc.Parameter, error) {
	if id, err := strconv.ParseUint(s, 10, 16); err == nil {
		return gotcc.Parameter(id), nil
	}
	return gotcc.ParameterNamed(s)
}
