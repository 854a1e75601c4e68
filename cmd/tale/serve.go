package main

import (
	"github.com/aretw0/tale/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves sessions over a JSON API with server-sent events, documented at /swagger.
Prometheus metrics are exposed at /metrics, or on --metrics-addr when set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunServe(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address of the API server")
	serveCmd.Flags().String("metrics-addr", "", "Separate address for /metrics")
	serveCmd.Flags().String("redis", "", "Redis address for the event journal (default: in memory)")
	serveCmd.Flags().Int("max-sessions", 0, "Maximum concurrent sessions")
}
