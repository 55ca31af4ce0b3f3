package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
)

func init() {
	getCmd.Flags().Duration("wait", 2*time.Second, "how long to wait for telemetry")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get [parameter]",
	Short: "Read a telemetry parameter, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, err := cmd.Flags().GetDuration("wait")
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return getAll(cmd, wait)
		}
		return getOne(cmd, args[0], wait)
	},
}

func getOne(cmd *cobra.Command, name string, wait time.Duration) error {
	p, err := resolveParameter(name)
	if err != nil {
		return err
	}
	cl, _, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer cl.Close()

	// Wait for the device to report at least once so the readout is live,
	// not the cleared slot from Open.
	sub := cl.Subscribe(p)
	defer sub.Close()
	if _, err := sub.Wait(cmd.Context(), wait); err != nil {
		fmt.Printf("no report within %v\n", wait)
	}

	val, stale, err := cl.Param(p)
	if err != nil {
		return err
	}
	fmt.Printf("%s = %s%s\n", p, val, staleSuffix(stale))
	return nil
}

func getAll(cmd *cobra.Command, wait time.Duration) error {
	cl, _, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer cl.Close()

	select {
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	case <-time.After(wait):
	}
	printReadings(cl.Readings())
	return nil
}

var staleMark = color.New(color.FgRed).SprintFunc()

func staleSuffix(stale bool) string {
	if stale {
		return " " + staleMark("(stale)")
	}
	return ""
}

func printReadings(readings []gotcc.Reading) {
	fmt.Printf("%4s  %-18s %-14s %s\n", "ID", "PARAMETER", "VALUE", "AGE")
	for _, r := range readings {
		age := "never"
		if r.Value.Kind() != gotcc.KindNone {
			age = r.Age.Round(time.Millisecond).String()
		}
		fmt.Printf("%4d  %-18s %-14s %s%s\n",
			uint16(r.Param), r.Param, r.Value, age, staleSuffix(r.Stale))
	}
}
