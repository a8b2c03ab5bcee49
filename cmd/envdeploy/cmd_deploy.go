// This file contains the deploy command: the four-stage pipeline that
// stages an environment config into a project's build output.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"envdeploy/internal/pipeline"
	"envdeploy/internal/ux"
)

var (
	deployProject        string
	deployEnvironment    string
	deployInstance       string
	deployWorkspace      string
	deployDryRun         bool
	deployJSON           bool
	deployNonInteractive bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy an environment config into a project's build output",
	Long: `Resolves the project, stages the environment config and updates the
project metadata:

  1. Find the project file under <base>/<workspace-root> matching the
     loose project name.
  2. Find the service-instance folder under the project's deployment
     area and the <environment>.config inside it.
  3. Rewrite the hostname placeholder and drive roots in the config
     text.
  4. Back up and overwrite the build-output config, ensure the
     build-copy directive, and point the debug-launch settings at the
     environment's executable.

With --dry-run everything is resolved and a preview is shown, but no
file is touched.

Example:
  envdeploy deploy -p Service -e DEV1 -i Portfolio -w ws1`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVarP(&deployProject, "project", "p", "", "Loose project name (required)")
	deployCmd.Flags().StringVarP(&deployEnvironment, "environment", "e", "", "Environment name, e.g. DEV1 (required)")
	deployCmd.Flags().StringVarP(&deployInstance, "service-instance", "i", "", "Service instance folder name (required)")
	deployCmd.Flags().StringVarP(&deployWorkspace, "workspace-root", "w", "", "Workspace root selector under the base path (required)")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Resolve and preview without writing")
	deployCmd.Flags().BoolVar(&deployJSON, "json", false, "Emit the run summary as JSON")
	deployCmd.Flags().BoolVar(&deployNonInteractive, "non-interactive", false, "Skip the startup-project prompt")
	deployCmd.MarkFlagRequired("project")
	deployCmd.MarkFlagRequired("environment")
	deployCmd.MarkFlagRequired("service-instance")
	deployCmd.MarkFlagRequired("workspace-root")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts := []pipeline.Option{}
	if !deployNonInteractive && !deployDryRun {
		opts = append(opts, pipeline.WithPrompter(&ux.ConsolePrompter{
			In:      os.Stdin,
			Out:     os.Stdout,
			Timeout: cfg.GetPromptTimeout(),
		}))
	}

	p := pipeline.New(cfg, logger, opts...)
	sum, err := p.Run(ctx, pipeline.Request{
		Project:           deployProject,
		Environment:       deployEnvironment,
		Instance:          deployInstance,
		WorkspaceSelector: deployWorkspace,
		DryRun:            deployDryRun,
	})
	if err != nil {
		return err
	}

	if deployJSON {
		data, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderSummary(sum))
	return nil
}
