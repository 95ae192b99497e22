package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/ad-tracker/engagement-exchange-go/internal/db/models"
	"github.com/ad-tracker/engagement-exchange-go/internal/service"
	"github.com/spf13/cobra"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newUserCmd(use, short string, action func(ctx context.Context, id int64) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			user, err := action(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, user)
		},
	}
}

func newStatsCmd(exchange func() *service.Exchange) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := exchange().Admin.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "users\t%d\n", stats.UserCount)
			fmt.Fprintf(w, "active tasks\t%d\n", stats.ActiveTasks)
			fmt.Fprintf(w, "pending complaints\t%d\n", stats.PendingComplaints)
			fmt.Fprintf(w, "strikes given\t%d\n", stats.StrikesGiven)
			fmt.Fprintf(w, "banned\t%d\n", stats.BannedCount)
			return w.Flush()
		},
	}
}

func newComplaintsCmd(exchange func() *service.Exchange) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "List complaints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "all" {
				status = ""
			}
			complaints, err := exchange().Admin.ListComplaints(cmd.Context(), status, limit, 0)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTASK\tREPORTER\tACCUSED\tSTATUS\tREASON")
			for _, c := range complaints {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%s\n", c.ID, c.TaskID, c.ReporterID, c.AccusedID, c.Status, c.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", models.ComplaintOpen, "open, closed or all")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of complaints")

	cmd.AddCommand(&cobra.Command{
		Use:   "close <complaint-id>",
		Short: "Mark a complaint handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			complaint, err := exchange().Admin.CloseComplaint(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, complaint)
		},
	})
	return cmd
}

func newSweepCmd(exchange func() *service.Exchange) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one anti-cheat pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := exchange().Sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}
