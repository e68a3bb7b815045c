package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/aocrank/internal/cursor"
	"github.com/zulandar/aocrank/internal/models"
	"github.com/zulandar/aocrank/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage monitored processes",
	}

	cmd.AddCommand(newMonitorAddCmd())
	cmd.AddCommand(newMonitorListCmd())
	cmd.AddCommand(newMonitorRemoveCmd())
	cmd.AddCommand(newMonitorPollCmd())
	return cmd
}

func newMonitorAddCmd() *cobra.Command {
	var (
		configPath   string
		unauthorized bool
		data         string
	)

	cmd := &cobra.Command{
		Use:   "add <process-id>",
		Short: "Start monitoring a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitorAdd(cmd, configPath, args[0], !unauthorized, data)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crank config file")
	cmd.Flags().BoolVar(&unauthorized, "unauthorized", false, "register the process without polling it")
	cmd.Flags().StringVar(&data, "data", "", "process metadata as a JSON document")
	return cmd
}

func runMonitorAdd(cmd *cobra.Command, configPath, id string, authorized bool, data string) error {
	var processData models.JSON
	if data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("--data must be a JSON document")
		}
		processData = models.JSON(data)
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	registry := monitor.NewRegistry(gormDB, newLogger(cfg, cmd.ErrOrStderr()))

	saved, err := registry.Save(cmd.Context(), models.MonitoredProcess{
		ID:          id,
		Authorized:  authorized,
		ProcessData: processData,
		CreatedAt:   models.NowMillis(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring process %s (authorized: %t)\n", saved, authorized)
	return nil
}

func newMonitorListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List monitored processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitorList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crank config file")
	return cmd
}

func runMonitorList(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	registry := monitor.NewRegistry(gormDB, newLogger(cfg, cmd.ErrOrStderr()))

	procs, err := registry.FindAll(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(procs) == 0 {
		fmt.Fprintln(out, "No monitored processes.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAUTHORIZED\tCURSOR AT\tLAST RUN")
	for _, p := range procs {
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", p.ID, p.Authorized, cursorTime(p.LastFromCursor), millisTime(p.LastRunTime))
	}
	return w.Flush()
}

// cursorTime renders the timestamp a stored cursor points at.
func cursorTime(raw *string) string {
	if raw == nil {
		return "-"
	}
	c, err := cursor.Parse(*raw)
	if err != nil || c == nil {
		return "invalid"
	}
	return formatMillis(c.Timestamp)
}

func millisTime(m *models.Millis) string {
	if m == nil {
		return "never"
	}
	return formatMillis(int64(*m))
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

func newMonitorRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove <process-id>",
		Short: "Stop monitoring a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitorRemove(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crank config file")
	return cmd
}

func runMonitorRemove(cmd *cobra.Command, configPath, id string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	registry := monitor.NewRegistry(gormDB, newLogger(cfg, cmd.ErrOrStderr()))

	if _, err := registry.Get(cmd.Context(), id); err != nil {
		return err
	}
	if _, err := registry.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stopped monitoring process %s\n", id)
	return nil
}

func newMonitorPollCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one poll cycle over all authorized processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitorPoll(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crank config file")
	return cmd
}

func runMonitorPoll(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	comps, err := buildComponents(cmd.Context(), cfg, gormDB, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	poller := newPoller(cfg, gormDB, comps, logger)
	report, err := poller.PollOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Polled %d processes: %d results cranked, %d failed\n",
		report.Polled, report.Cranked, report.Failed)
	return nil
}
