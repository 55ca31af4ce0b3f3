package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
)

func init() {
	rootCmd.AddCommand(timeoutCmd)
}

var timeoutCmd = &cobra.Command{
	Use:   "timeout [class] [duration]",
	Short: "Show or set staleness thresholds",
	Long: `Without arguments the default threshold of every timeout class is
printed. With a class and a duration the threshold is set and the device's
reporting watchdogs are re-armed with the new interval, for example

  tcctool timeout RoverGNSS 100ms`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			// Listing thresholds needs no device.
			cl := gotcc.New()
			for _, tc := range gotcc.TimeoutClasses() {
				d, err := cl.Timeout(tc)
				if err != nil {
					return err
				}
				fmt.Printf("%-16s %v\n", tc, d)
			}
			return nil
		}
		if len(args) == 1 {
			tc, err := gotcc.TimeoutNamed(args[0])
			if err != nil {
				return err
			}
			cl := gotcc.New()
			d, err := cl.Timeout(tc)
			if err != nil {
				return err
			}
			fmt.Printf("%-16s %v\n", tc, d)
			return nil
		}

		tc, err := gotcc.TimeoutNamed(args[0])
		if err != nil {
			return err
		}
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", args[1], err)
		}

		cl, log, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer cl.Close()

		if err := cl.SetTimeout(tc, d); err != nil {
			return err
		}
		log.Info().Stringer("class", tc).Dur("timeout", d).Msg("watchdogs re-armed")
		return nil
	},
}
