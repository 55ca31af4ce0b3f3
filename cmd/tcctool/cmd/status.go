package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roffe/gotcc/pkg/bar"
)

func init() {
	statusCmd.Flags().Duration("wait", 5*time.Second, "how long to wait for all channels")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Wait for every telemetry channel to report, then print the readings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, err := cmd.Flags().GetDuration("wait")
		if err != nil {
			return err
		}
		cl, log, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer cl.Close()

		total := len(cl.Readings())
		b := bar.New(total, "waiting for telemetry")
		deadline := time.After(wait)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		fresh := 0
	poll:
		for fresh < total {
			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case <-deadline:
				break poll
			case <-ticker.C:
				fresh = 0
				for _, r := range cl.Readings() {
					if !r.Stale {
						fresh++
					}
				}
				b.Set(fresh)
			}
		}
		b.Finish()
		fmt.Println()

		if fresh < total {
			log.Warn().Int("fresh", fresh).Int("total", total).Msg("not all channels reported")
		}
		printReadings(cl.Readings())
		fmt.Println(cl.Stats())
		return nil
	},
}
