package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"paas-deployer/internal/model"
	"paas-deployer/internal/service"
)

func newCheckCmd(global *globalOptions) *cobra.Command {
	var domain string

	cmd := &cobra.Command{
		Use:   "check <app>...",
		Short: "Check SSH access to configured applications",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := global.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			svc := service.NewSSHService(cfg.SSH, service.NewStaticProvider(cfg.Applications), log)
			req := &model.BatchSSHCheckRequest{}
			for _, name := range args {
				req.Applications = append(req.Applications, model.SSHCheckRequest{AppName: name, Domain: domain})
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, res := range svc.BatchTestConnection(cmd.Context(), req) {
				status := successStyle.Render("[ok]")
				if !res.Success {
					status = errorStyle.Render("[fail]")
					failed++
				}
				fmt.Fprintf(out, "%s %s %s\n", status, valueStyle.Render(res.AppName), dimStyle.Render(res.Endpoint))
				for _, d := range res.Details {
					fmt.Fprintf(out, "    %s\n", d)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d applications unreachable", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "application domain")
	return cmd
}
