package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/artifact"
)

func newResolveCmd() *cobra.Command {
	var (
		mode      string
		workspace string
	)

	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "List the artifacts a deployment path selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.ParseDeployMode(mode)
			if err != nil {
				return err
			}
			resolver := &artifact.Resolver{BaseDir: workspace}
			ref, err := resolver.Resolve(args[0], m)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, loc := range ref.Locations {
				fmt.Fprintln(out, loc)
			}
			if ref.Single() {
				fmt.Fprintf(out, "%s %s\n", labelStyle.Render("published as:"), artifact.RootDeploymentName(ref.Locations[0]))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "ARCHIVE", "deployment mode: ARCHIVE or BINARY")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", os.Getenv("WORKSPACE"), "directory relative paths are resolved against")
	return cmd
}
