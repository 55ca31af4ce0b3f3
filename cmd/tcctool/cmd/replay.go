package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
	"github.com/roffe/gotcc/adapter"
)

func init() {
	replayCmd.Flags().Bool("quiet", false, "suppress the frame dump")
	rootCmd.AddCommand(replayCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a capture file through the driver",
	Long: `Replay a capture file at recorded pace and decode it like live
traffic. Prints the telemetry the recording contained.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, err := cmd.Flags().GetBool("quiet")
		if err != nil {
			return err
		}
		set, err := resolveSettings(cmd)
		if err != nil {
			return err
		}
		log := newLogger(set.Debug)

		dev, err := adapter.New("Playback", &gotcc.AdapterConfig{
			Port: args[0],
			OnMessage: func(msg string) {
				log.Info().Msg(msg)
			},
			OnError: func(err error) {
				log.Warn().Err(err).Msg("adapter")
			},
		})
		if err != nil {
			return err
		}
		pb := dev.(*adapter.Playback)

		var opts []gotcc.Option
		opts = append(opts, gotcc.WithLogger(log))
		if !quiet {
			opts = append(opts, gotcc.WithFrameHook(func(f *gotcc.CANFrame) {
				if f.Direction == gotcc.Incoming {
					fmt.Println(f.ColorString())
				}
			}))
		}
		cl := gotcc.New(opts...)
		if err := cl.Open(cmd.Context(), dev); err != nil {
			return err
		}
		defer cl.Close()

		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-pb.Done():
		}

		fmt.Println()
		printReadings(cl.Readings())
		fmt.Println(cl.Stats())
		return nil
	},
}
