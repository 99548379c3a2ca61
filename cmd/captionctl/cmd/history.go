package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"live-caption-service/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and delete committed captions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committed captions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete one caption by id, or by position with --index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistoryRm,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every committed caption",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

var (
	historyIndex int
	historyYes   bool
)

func init() {
	historyRmCmd.Flags().IntVar(&historyIndex, "index", -1, "Position in the newest-first list")
	historyClearCmd.Flags().BoolVarP(&historyYes, "yes", "y", false, "Do not ask for confirmation")

	historyCmd.AddCommand(historyListCmd, historyRmCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	var entries []models.HistoryEntry
	if err := newAPIClient(serverURL).call(cmd.Context(), http.MethodGet, "/v1/history", nil, &entries); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No captions.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCREATED\tID\tTEXT")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, e.Time().Local().Format(time.DateTime), e.ID, e.Text)
	}
	return tw.Flush()
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	var path string
	switch {
	case len(args) == 1 && historyIndex >= 0:
		return errors.New("give either an id or --index, not both")
	case len(args) == 1:
		path = "/v1/history/" + args[0]
	case historyIndex >= 0:
		path = "/v1/history/index/" + strconv.Itoa(historyIndex)
	default:
		return errors.New("an id or --index is required")
	}

	if err := newAPIClient(serverURL).call(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
	return nil
}

func runHistoryClear(cmd *cobra.Command, _ []string) error {
	if !historyYes {
		fmt.Fprint(cmd.OutOrStdout(), "Delete all captions? [y/N] ")
		var answer string
		_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := newAPIClient(serverURL).call(ctx, http.MethodDelete, "/v1/history", nil, nil); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
	return nil
}
