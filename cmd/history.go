package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/teeql/history"
	"github.com/wkalt/teeql/output"
	"github.com/wkalt/teeql/query/types"
)

const defaultHistoryLimit = 20

var historyLimit int

var errHistoryDisabled = errors.New("history is not enabled: set --history-db")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent tee invocations recorded in the history database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()
		return env.printHistory(cmd.Context(), historyLimit, os.Stdout)
	},
}

var historySchema = types.Schema{
	types.NewColumn("started_at", types.Timestamp),
	types.NewColumn("finished_at", types.Timestamp),
	types.NewColumn("status", types.Varchar),
	types.NewColumn("path", types.Varchar),
	types.NewColumn("rows", types.Integer),
	types.NewColumn("bytes", types.Integer),
	types.NewColumn("query_id", types.Varchar),
	types.NewColumn("error", types.Varchar),
}

// printHistory renders the most recent entries in the selected output format.
func (e *environment) printHistory(ctx context.Context, limit int, w io.Writer) error {
	if e.history == nil {
		return errHistoryDisabled
	}
	entries, err := e.history.List(ctx, limit)
	if err != nil {
		return err
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	writer, err := output.NewWriter(f, w)
	if err != nil {
		return err
	}
	if err := writer.Begin(historySchema); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := writer.Write(historyRows(entries)); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := writer.End(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

func historyRows(entries []history.Entry) [][]types.Value {
	rows := make([][]types.Value, 0, len(entries))
	for _, entry := range entries {
		errmsg := types.NullValue()
		if entry.Error != "" {
			errmsg = types.String(entry.Error)
		}
		rows = append(rows, []types.Value{
			types.Time(entry.StartedAt),
			types.Time(entry.FinishedAt),
			types.String(string(entry.Status)),
			types.String(entry.Path),
			types.Int(entry.Rows),
			types.Int(entry.Bytes),
			types.String(entry.QueryID.String()),
			errmsg,
		})
	}
	return rows
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", defaultHistoryLimit, "Number of entries to list")
	rootCmd.AddCommand(historyCmd)
}
