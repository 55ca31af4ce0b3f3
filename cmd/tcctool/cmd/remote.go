package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
	"github.com/roffe/gotcc/pkg/ctrl"
)

func init() {
	remoteCmd.PersistentFlags().StringP("remote", "r", "127.0.0.1:7788", "address of a running tcctool serve")
	remoteCmd.AddCommand(remoteCheckCmd)
	remoteCmd.AddCommand(remoteSendCmd)
	remoteCmd.AddCommand(remoteGetCmd)
	remoteCmd.AddCommand(remoteTimeoutCmd)
	rootCmd.AddCommand(remoteCmd)
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Talk to a running tcctool serve instance",
}

func dialRemote(cmd *cobra.Command) (*ctrl.Client, error) {
	addr, err := cmd.Flags().GetString("remote")
	if err != nil {
		return nil, err
	}
	return ctrl.Dial(addr)
}

var remoteCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the remote driver is open",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dialRemote(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Check(); err != nil {
			return err
		}
		fmt.Println("interface open")
		return nil
	},
}

var remoteSendCmd = &cobra.Command{
	Use:   "send <command> <value>",
	Short: "Execute a device command through the remote driver",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := resolveCommand(args[0])
		if err != nil {
			return err
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad value %q: %w", args[1], err)
		}
		c, err := dialRemote(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Command(command, value); err != nil {
			return err
		}
		fmt.Printf("%s = %v sent\n", command, value)
		return nil
	},
}

var remoteGetCmd = &cobra.Command{
	Use:   "get <parameter>",
	Short: "Read a telemetry parameter through the remote driver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveParameter(args[0])
		if err != nil {
			return err
		}
		c, err := dialRemote(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		val, stale, err := c.Parameter(p)
		if err != nil {
			return err
		}
		fmt.Printf("%s = %v%s\n", p, val, staleSuffix(stale))
		return nil
	},
}

var remoteTimeoutCmd = &cobra.Command{
	Use:   "timeout <class> [duration]",
	Short: "Show or set a staleness threshold through the remote driver",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := gotcc.TimeoutNamed(args[0])
		if err != nil {
			return err
		}
		c, err := dialRemote(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		if len(args) == 2 {
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("bad duration %q: %w", args[1], err)
			}
			if err := c.SetTimeout(tc, d); err != nil {
				return err
			}
		}
		d, err := c.Timeout(tc)
		if err != nil {
			return err
		}
		fmt.Printf("%-16s %v\n", tc, d)
		return nil
	},
}
