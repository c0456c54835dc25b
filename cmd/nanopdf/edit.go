package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/nanopdf/internal/cli"
	"github.com/jackzampolin/nanopdf/internal/plan"
)

var editFlags runFlags

var editCmd = &cobra.Command{
	Use:   "edit <input.pdf> <page> <prompt> [<page> <prompt> ...]",
	Short: "Rewrite the content of existing pages",
	Long: `Rewrite one or more pages of a PDF with generated content.

Each page/prompt pair names a page to regenerate and the instruction to
apply. Pages are generated concurrently and replaced in one pass; a page
whose generation fails is left untouched and reported.

Examples:
  nanopdf edit report.pdf 3 "redraw the chart in a flat style"
  nanopdf edit deck.pdf 1 "new title page" 5 "simplify the diagram"
  nanopdf edit report.pdf 2 "match the cover art" --style-refs 1 --use-context`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := plan.ParsePairs(args[1:])
		if err != nil {
			return err
		}

		runner, cfg, err := editFlags.buildRunner()
		if err != nil {
			return err
		}
		req, err := editFlags.buildRequest(args[0], "edited_", pairs, cfg)
		if err != nil {
			return err
		}

		report, err := runner.Edit(cmd.Context(), req)
		if err != nil {
			return err
		}
		return cli.Output(report)
	},
}

func init() {
	editFlags.register(editCmd)
	rootCmd.AddCommand(editCmd)
}
