package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("version:"), valueStyle.Render(version))
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("built:"), buildTime)
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render("commit:"), gitCommit)
		},
	}
}
