package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
)

func init() {
	monitorCmd.Flags().Bool("no-color", false, "plain frame dump")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Dump every frame crossing the bus until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noColor, err := cmd.Flags().GetBool("no-color")
		if err != nil {
			return err
		}
		hook := func(f *gotcc.CANFrame) {
			if noColor {
				fmt.Println(f.String())
				return
			}
			fmt.Println(f.ColorString())
		}
		cl, log, err := openClient(cmd, gotcc.WithFrameHook(hook))
		if err != nil {
			return err
		}
		defer cl.Close()

		<-cmd.Context().Done()
		log.Info().Stringer("stats", cl.Stats()).Msg("monitor stopped")
		return nil
	},
}
