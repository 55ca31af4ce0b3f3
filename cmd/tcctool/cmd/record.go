package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
	"github.com/roffe/gotcc/pkg/bar"
	"github.com/roffe/gotcc/pkg/capture"
)

func init() {
	recordCmd.Flags().Duration("duration", 0, "stop after this long, 0 = until interrupted")
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record all bus traffic to a capture file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, err := cmd.Flags().GetDuration("duration")
		if err != nil {
			return err
		}
		w, err := capture.Create(args[0])
		if err != nil {
			return err
		}

		var once sync.Once
		var writeErr error
		hook := func(f *gotcc.CANFrame) {
			if err := w.WriteFrame(f); err != nil {
				once.Do(func() { writeErr = err })
			}
		}
		cl, _, err := openClient(cmd, gotcc.WithFrameHook(hook))
		if err != nil {
			w.Close()
			return err
		}

		spin := bar.NewSpinner("recording, ctrl-c to stop")
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		var stop <-chan time.Time
		if duration > 0 {
			stop = time.After(duration)
		}
	rec:
		for {
			select {
			case <-cmd.Context().Done():
				break rec
			case <-stop:
				break rec
			case <-ticker.C:
				spin.Describe(fmt.Sprintf("recording, %d frames", w.Count()))
				spin.Add(1)
			}
		}

		// Close the client first so the watchdog disarm frames land in the
		// capture before the writer goes away.
		cl.Close()
		if err := w.Close(); err != nil {
			return err
		}
		fmt.Printf("\nwrote %d frames to %s\n", w.Count(), args[0])
		return writeErr
	},
}
