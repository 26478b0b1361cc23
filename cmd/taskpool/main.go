// Command taskpool runs a synthetic multi-tenant workload through a
// taskpool.Pool and reports what happened to it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("[taskpool]"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "taskpool",
		Short:         "Budgeted, tenant-fair worker pool with delayed retries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; default: $TASKPOOL_CONFIG)")

	root.AddCommand(newRunCmd(&cfgFile))
	root.AddCommand(newConfigCmd(&cfgFile))
	return root
}

func newRunCmd(cfgFile *string) *cobra.Command {
	var (
		workers int
		tasks   int
		queue   string
		mode    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the synthetic workload and print per-band results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Load(*cfgFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Pool.Workers = workers
			}
			if flags.Changed("tasks") {
				cfg.Workload.Tasks = tasks
			}
			if flags.Changed("queue") {
				cfg.Pool.Queue = queue
			}
			if flags.Changed("shutdown") {
				cfg.Pool.Shutdown = mode
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := SetupLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("setup logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			logger.Info("starting workload",
				zap.Int("workers", cfg.Pool.Workers),
				zap.String("queue", cfg.Pool.Queue),
				zap.Int("tasks", cfg.Workload.Tasks),
				zap.Int("tenants", cfg.Workload.Tenants))

			rep, err := runWorkload(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			rep.print(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of workers")
	cmd.Flags().IntVarP(&tasks, "tasks", "n", 0, "number of tasks to submit")
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "queue type: fifo, fair or priority")
	cmd.Flags().StringVar(&mode, "shutdown", "", "shutdown mode: drain or cancel")
	return cmd
}

func newConfigCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Load(*cfgFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}
