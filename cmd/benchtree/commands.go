package main

import (
	"fmt"
	"path/filepath"

	"benchtree/internal/config"
	"benchtree/internal/ledger"
	"benchtree/internal/logging"
	"benchtree/internal/storage"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	folder  string
	verbose bool

	cfg    *config.Config
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:           "benchtree",
		Short:         "Run parametric studies of CFD cases as a tree of jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if folder != "" {
				c.Folder = folder
			}
			l, err := logging.New(c.LogMode, verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cfg, logger = c, l
			return nil
		},
	}

	initCmd = &cobra.Command{
		Use:   "init <campaign.yaml>",
		Short: "Create the job tree and view of a campaign",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit, // cmd_run.go
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute the jobs of the tree level by level",
		RunE:  runRun, // cmd_run.go
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "List jobs with their state and view path",
		RunE:  runStatus, // cmd_status.go
	}
	mergeCmd = &cobra.Command{
		Use:   "merge",
		Short: "Fold shard documents into the canonical job documents",
		RunE:  runMerge, // cmd_status.go
	}
	logsCmd = &cobra.Command{
		Use:   "logs [root]",
		Short: "Report which solver logs below root finished successfully",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLogs, // cmd_status.go
	}
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain of the history journals",
		RunE:  runVerify, // cmd_status.go
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the job tree over HTTP",
		RunE:  runServe, // cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./benchtree.yaml)")
	rootCmd.PersistentFlags().StringVar(&folder, "folder", "", "project folder (overrides the config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("execute", false, "run the jobs after creating them")
	initCmd.Flags().Int("tasks", 0, "parallel jobs per level (default from config)")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSlice("operations", nil, "only run jobs of these operations")
	runCmd.Flags().String("shard", "", "write history to the shard of this suffix")
	runCmd.Flags().Bool("force", false, "rerun jobs that already succeeded")
	runCmd.Flags().Int("tasks", 0, "parallel jobs per level (default from config)")

	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("state", "", "only list jobs in this state")
	statusCmd.Flags().String("operation", "", "only list jobs of this operation")

	rootCmd.AddCommand(mergeCmd)

	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().String("job", "", "print the latest solver log of this job instead")

	rootCmd.AddCommand(verifyCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
}

func openProject() (*storage.Project, error) {
	p, err := storage.Open(cfg.Folder, logger)
	if err != nil {
		return nil, fmt.Errorf("open project %s: %w", cfg.Folder, err)
	}
	return p, nil
}

// ledgerName is the journal file of a writer; shard writers keep their own.
func ledgerName(shard string) string {
	if shard == "" {
		return "ledger.jsonl"
	}
	return "ledger_" + shard + ".jsonl"
}

func openLedger(p *storage.Project) (*ledger.Ledger, error) {
	l, err := ledger.Open(filepath.Join(p.StoreDir(), ledgerName(p.Shard())))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return l, nil
}

// tasksFlag prefers a positive --tasks over the configured value.
func tasksFlag(cmd *cobra.Command) int {
	if n, _ := cmd.Flags().GetInt("tasks"); n > 0 {
		return n
	}
	return cfg.Tasks
}
