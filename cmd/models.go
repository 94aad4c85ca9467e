package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"codeagents/internal/adapters/ai"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported model identities with their limits and pricing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeModels(cmd.OutOrStdout(), ai.Catalogue())
		},
	}
}

func writeModels(w io.Writer, models []ai.ModelInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tNAME\tCONTEXT\tMAX OUTPUT\tINPUT $/1K\tOUTPUT $/1K")

	for _, m := range models {
		if m.Identity.IsDeterministic() {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\tfree\tfree\n", m.Identity, m.DisplayName)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Identity,
			m.DisplayName,
			humanize.Comma(int64(m.ContextWindow)),
			humanize.Comma(int64(m.MaxOutputTokens)),
			humanize.FtoaWithDigits(m.InputCostPer1K, 5),
			humanize.FtoaWithDigits(m.OutputCostPer1K, 5),
		)
	}
	return tw.Flush()
}
