package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"benchtree/internal/core"
	"benchtree/internal/inspect"
	"benchtree/internal/ledger"

	"github.com/spf13/cobra"
)

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	jobs, err := p.Jobs()
	if err != nil {
		return err
	}
	view, err := core.ReadView(p.ViewDir())
	if err != nil {
		logger.Warn("cannot read view", "error", err)
	}
	state, _ := cmd.Flags().GetString("state")
	operation, _ := cmd.Flags().GetString("operation")

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tOPERATION\tSTEPS\tVIEW")
	for _, j := range jobs {
		if state != "" && j.Doc.State != state {
			continue
		}
		if operation != "" && j.Operation() != operation {
			continue
		}
		s := j.Doc.State
		if s == "" {
			s = "pending"
		}
		path := view[j.ID]
		if j.Doc.IsBase {
			path = "base"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", j.ID, s, j.Operation(), len(j.Doc.History), path)
	}
	return tw.Flush()
}

func runMerge(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.MergeAll(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "shards merged")
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	if id, _ := cmd.Flags().GetString("job"); id != "" {
		return printJobLog(cmd, id)
	}

	root := cfg.Logs.Root
	if len(args) == 1 {
		root = args[0]
	}
	if root == "" {
		return errors.New("no log root given")
	}
	opts := inspect.DiscoverOptions{Marker: cfg.Logs.Marker, Suffix: cfg.Logs.Suffix}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CAMPAIGN\tTAGS\tSTATUS\tLOG")
	for lf := range inspect.DiscoverLogs(root, opts) {
		status := "incomplete"
		ok, err := inspect.IsSuccessful(lf.Path)
		switch {
		case err != nil:
			status = "unreadable"
		case ok:
			status = "success"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", lf.Campaign, strings.Join(lf.Tags, "/"), status, lf.Path)
	}
	return tw.Flush()
}

func printJobLog(cmd *cobra.Command, id string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	job, err := p.JobByID(id)
	if err != nil {
		return err
	}
	ref := inspect.LatestRelevantLog(job, cfg.Solver)
	if ref == "" {
		return fmt.Errorf("job %s has no %q log", id, cfg.Solver)
	}
	if filepath.IsAbs(ref) {
		data, err := os.ReadFile(ref)
		if err != nil {
			return err
		}
		ref = string(data)
	}
	fmt.Fprint(cmd.OutOrStdout(), ref)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(p.StoreDir(), "ledger*.jsonl"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no journals to verify")
		return nil
	}

	var failed []string
	for _, f := range files {
		l, err := ledger.Open(f)
		if err == nil {
			err = l.VerifyChain()
		}
		if err == nil {
			err = l.VerifyLogs(func(jobID, ref string) string {
				return filepath.Join(p.Workspace(), jobID, "case", ref)
			})
		}
		if err != nil {
			logger.Error("journal verification failed", "file", f, "error", err)
			failed = append(failed, filepath.Base(f))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries ok\n", filepath.Base(f), len(l.Entries()))
	}
	if len(failed) > 0 {
		return fmt.Errorf("verification failed for %s", strings.Join(failed, ", "))
	}
	return nil
}
