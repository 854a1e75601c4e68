package main

import (
	"fmt"

	"github.com/aretw0/tale/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [story.yaml]",
	Short: "Check the story for consistency",
	Long:  `Builds the story graph and reports dangling choices, empty nodes and unreachable nodes.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("story")
		if len(args) > 0 {
			path = args[0]
		}
		if err := cli.Validate(path, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
