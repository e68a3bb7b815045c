package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/aocrank/internal/crank"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crank the outbox of one evaluated result",
		Long: "Reads a result document (fromTxId, processId, messages, spawns) and cranks " +
			"every message in its outbox. Use --file - to read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrank(cmd, configPath, file)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to crank config file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "result document to crank (- for stdin)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func readResult(cmd *cobra.Command, file string) (crank.Result, error) {
	var r crank.Result
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return r, fmt.Errorf("read result: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parse result: %w", err)
	}
	return r, nil
}

func runCrank(cmd *cobra.Command, configPath, file string) error {
	result, err := readResult(cmd, file)
	if err != nil {
		return err
	}

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

	outcome, crankErr := comps.service.CrankResult(cmd.Context(), result)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MESSAGE\tTARGET\tTX\tASSIGNMENTS")
	cranked := 0
	for _, c := range outcome.Contexts {
		if c.Validated {
			cranked++
		}
		tx := "-"
		if c.Tx != nil {
			tx = c.Tx.ID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.Message.ID, c.Message.Msg.Target, tx, len(c.TagAssignments))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Cranked %d messages, cached %d spawns (%d reused)\n",
		cranked, len(outcome.SpawnIDs), outcome.Reused)
	return crankErr
}
