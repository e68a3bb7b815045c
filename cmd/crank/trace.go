package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/aocrank/internal/trace"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect message lineage traces",
	}

	cmd.AddCommand(newTraceListCmd())
	return cmd
}

func newTraceListCmd() *cobra.Command {
	var (
		configPath string
		criteria   trace.Criteria
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded traces, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceList(cmd, configPath, criteria)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crank config file")
	cmd.Flags().StringVar(&criteria.ID, "id", "", "only the trace with this id")
	cmd.Flags().StringVar(&criteria.Process, "process", "", "traces sent from or to this process")
	cmd.Flags().StringVar(&criteria.Wallet, "wallet", "", "traces sent from this wallet")
	cmd.Flags().IntVar(&criteria.Limit, "limit", 20, "maximum number of traces")
	cmd.Flags().IntVar(&criteria.Offset, "offset", 0, "number of traces to skip")
	return cmd
}

func runTraceList(cmd *cobra.Command, configPath string, criteria trace.Criteria) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	recorder := trace.NewRecorder(gormDB, newLogger(cfg, cmd.ErrOrStderr()))

	traces, err := recorder.Find(cmd.Context(), criteria)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(traces) == 0 {
		fmt.Fprintln(out, "No traces found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPARENT\tFROM\tTO\tCHILDREN\tSPAWNS\tTRACED AT")
	for _, t := range traces {
		parent := "-"
		if t.Parent != nil {
			parent = *t.Parent
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, parent, t.From, t.To, joinOrDash(t.Children), len(t.Spawns),
			t.TracedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
