package main

import (
	"github.com/aretw0/tale/internal/cli"
	"github.com/spf13/cobra"
)

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a story in the terminal",
	Long: `Starts a session in the terminal. Type the number of a choice and press Enter
before the countdown expires; type 'q' to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		headless, _ := cmd.Flags().GetBool("headless")

		return cli.RunPlay(cmd.Context(), cli.PlayOptions{
			Config:   cfg,
			Logger:   logger,
			Headless: headless,
			In:       cmd.InOrStdin(),
			Out:      cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Bool("headless", false, "Plain output without colors, banner or per-second countdown")

	// 'play' is the default if no command is provided.
	rootCmd.Flags().AddFlagSet(playCmd.Flags())
	rootCmd.RunE = playCmd.RunE
}
