package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/nanopdf/internal/cli"
	"github.com/jackzampolin/nanopdf/internal/plan"
)

var addFlags runFlags

var addCmd = &cobra.Command{
	Use:   "add <input.pdf> <after-page> <prompt> [<after-page> <prompt> ...]",
	Short: "Insert newly generated pages",
	Long: `Insert generated pages into a PDF at the requested positions.

Each position/prompt pair names the page the new content goes after
(0 inserts before the first page) and the instruction for the generated
page. Positions refer to the original document; inserting multiple pages
never shifts the meaning of the other positions.

When no style references are given, page 1 is used so new pages match
the document's look.

Examples:
  nanopdf add report.pdf 0 "a cover page for the Q3 report"
  nanopdf add book.pdf 12 "a full-page map of the region" 12 "a legend page"`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := plan.ParsePairs(args[1:])
		if err != nil {
			return err
		}

		runner, cfg, err := addFlags.buildRunner()
		if err != nil {
			return err
		}
		req, err := addFlags.buildRequest(args[0], "extended_", pairs, cfg)
		if err != nil {
			return err
		}

		report, err := runner.Add(cmd.Context(), req)
		if err != nil {
			return err
		}
		return cli.Output(report)
	},
}

func init() {
	addFlags.register(addCmd)
	rootCmd.AddCommand(addCmd)
}
