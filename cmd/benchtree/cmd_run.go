package main

import (
	"fmt"

	"benchtree/internal/core"
	"benchtree/internal/storage"

	"github.com/spf13/cobra"
)

func newRunner(cmd *cobra.Command, p *storage.Project) (*core.Runner, error) {
	l, err := openLedger(p)
	if err != nil {
		return nil, err
	}
	engine := core.NewEngine(cfg.LogThreshold, l, logger)
	return core.NewRunner(p, engine, tasksFlag(cmd), logger), nil
}

func runInit(cmd *cobra.Command, args []string) error {
	campaign, err := core.LoadConfig(args[0])
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	p, err := openProject()
	if err != nil {
		return err
	}
	runner, err := newRunner(cmd, p)
	if err != nil {
		return err
	}

	exp, err := runner.CreateTree(campaign, cfg.RequireEnv)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %d jobs below %s (%s)\n", len(exp.Jobs), exp.Root.ID, p.ViewDir())

	if execute, _ := cmd.Flags().GetBool("execute"); execute {
		return runner.Run(cmd.Context(), nil)
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	shard, _ := cmd.Flags().GetString("shard")
	if shard == "" {
		shard = cfg.Shard
	}
	if shard != "" {
		p = p.WithShard(shard)
		logger.Info("writing history to shard", "shard", p.Shard())
	}

	runner, err := newRunner(cmd, p)
	if err != nil {
		return err
	}
	runner.Force, _ = cmd.Flags().GetBool("force")
	operations, _ := cmd.Flags().GetStringSlice("operations")
	return runner.Run(cmd.Context(), operations)
}
