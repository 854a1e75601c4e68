package main

import (
	"fmt"

	"github.com/aretw0/tale/internal/cli"
	"github.com/aretw0/tale/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the story graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the story. Thick edges are the choices taken on timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("story")
		if !cmd.Flags().Changed("story") && len(args) > 0 {
			path = args[0]
		}

		g, err := cli.LoadStory(path)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
