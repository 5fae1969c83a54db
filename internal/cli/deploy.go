package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"paas-deployer/internal/config"
	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/metrics"
	"paas-deployer/internal/service"
)

type deployOptions struct {
	req model.DeployRequest

	gitURL string
	sshURL string
	appURL string
}

func newDeployCmd(global *globalOptions) *cobra.Command {
	opts := &deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an artifact to an application",
		Long: "Resolve the deployment path, then publish the artifacts through the\n" +
			"application's Git repository (ARCHIVE) or its SSH endpoint (BINARY).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.req.AppName, "app", "a", "", "application name")
	f.StringVar(&opts.req.Cartridges, "cartridges", "", "space separated cartridges, e.g. \"jbosseap-6 mysql-5.5\"")
	f.StringVar(&opts.req.Domain, "domain", "", "application domain (inferred when only one is configured)")
	f.StringVar(&opts.req.GearProfile, "gear-profile", "small", "gear profile")
	f.StringVarP(&opts.req.DeploymentPath, "path", "p", "", "artifact file, directory, glob or URL")
	f.StringVarP(&opts.req.EnvironmentVariables, "env", "e", "", "environment variables, KEY=VALUE separated by spaces")
	f.StringVarP(&opts.req.Mode, "mode", "m", "ARCHIVE", "deployment mode: ARCHIVE or BINARY")
	f.StringVar(&opts.req.ControlDir, "control-dir", "", "directory merged into the application's .openshift")
	f.StringVar(&opts.req.CommitMessage, "commit-message", "", "commit message template, {build} is replaced by the build id")
	f.StringVar(&opts.req.BuildID, "build", os.Getenv("BUILD_NUMBER"), "build identifier")
	f.StringVarP(&opts.req.Workspace, "workspace", "w", os.Getenv("WORKSPACE"), "directory relative paths are resolved against")
	f.BoolVar(&opts.req.AutoScale, "auto-scale", false, "request a scalable application")
	f.BoolVar(&opts.req.EnableJava7, "java7", false, "set the java7 marker in the application's .openshift/markers")
	f.BoolVar(&opts.req.EnableJPDA, "jpda", false, "set the enable_jpda marker in the application's .openshift/markers")
	f.StringVar(&opts.gitURL, "git-url", "", "application Git URL, overrides configured applications")
	f.StringVar(&opts.sshURL, "ssh-url", "", "application SSH URL")
	f.StringVar(&opts.appURL, "app-url", "", "application URL reported after deployment")

	cmd.MarkFlagRequired("app")
	cmd.MarkFlagRequired("cartridges")
	cmd.MarkFlagRequired("path")
	return cmd
}

func runDeploy(cmd *cobra.Command, global *globalOptions, opts *deployOptions) error {
	cfg, log, err := global.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	apps := cfg.Applications
	if opts.gitURL != "" || opts.sshURL != "" {
		// an application given on the command line replaces the configured ones
		apps = []config.ApplicationConfig{{
			Name:   opts.req.AppName,
			Domain: opts.req.Domain,
			GitURL: opts.gitURL,
			SSHURL: opts.sshURL,
			AppURL: opts.appURL,
		}}
	}

	svc, err := service.NewDeployService(cfg, service.NewStaticProvider(apps), metrics.New(prometheus.NewRegistry()), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	result, err := svc.Deploy(ctx, &opts.req, newConsoleSink(out))
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s %s\n", successStyle.Render("[ok]"), "deployment finished")
	fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("url:"), valueStyle.Render(result.ApplicationURL))
	return nil
}
