package cmd

import (
	"github.com/spf13/cobra"

	"github.com/roffe/gotcc/pkg/ctrl"
)

const defaultListenAddr = "0.0.0.0:7788"

func init() {
	serveCmd.Flags().String("listen", defaultListenAddr, "listen address")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the driver to remote clients over TCP",
	Long: `Open the bus and serve the control protocol until interrupted.
Remote clients issue commands and read parameters without owning the CAN
hardware; see the remote command for the client side.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cmd.Flags().GetString("listen")
		if err != nil {
			return err
		}
		cl, log, err := openClient(cmd)
		if err != nil {
			return err
		}
		defer cl.Close()

		srv := ctrl.NewServer(cl, log)
		if err := srv.Listen(addr); err != nil {
			return err
		}
		return srv.Serve(cmd.Context())
	},
}
