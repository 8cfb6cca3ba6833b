package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/703deuce/upscale/internal/api"
	"github.com/703deuce/upscale/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upscale queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			stats, err := session.Access.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, api.QueueStatsResponse{Counts: stats})
			}
			rows := buildQueueStatusRows(stats)
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the summary as JSON")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			items, err := session.Access.List(cmd.Context(), listStatuses)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, api.QueueListResponse{Items: api.SortQueueItemsNewestFirst(items)})
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			table := renderTable(
				[]string{"ID", "Title", "Status", "Progress", "Created"},
				buildQueueListRows(items),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprint(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit items as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <itemID>",
		Short: "Show one queue item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			session, err := ctx.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			item, err := session.Access.Describe(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("item %d not found", ids[0])
			}
			if jsonOut {
				return writeJSON(cmd, api.QueueItemResponse{Item: *item})
			}
			for _, line := range queueItemDetailLines(*item) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the item as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Retry failed queue items",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			session, err := ctx.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			if len(ids) == 0 {
				updated, err := session.Access.RetryAll(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.RetryResponse{Updated: updated})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d items\n", updated)
				return nil
			}

			result, err := api.RetryItemsByID(cmd.Context(), session.Access, ids)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeQueueRetryResultJSON(cmd, result)
			}
			printQueueRetryResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit per-item outcomes as JSON")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "remove <itemID...>",
		Short: "Remove queue items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}

			session, err := ctx.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			result, err := api.RemoveItemsByID(cmd.Context(), session.Access, ids)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeQueueRemoveResultJSON(cmd, result)
			}
			printQueueRemoveResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit per-item outcomes as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}

			session, err := ctx.openQueue(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			out := cmd.OutOrStdout()
			switch {
			case clearCompleted:
				removed, err := session.Access.Clear(cmd.Context(), "completed")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d completed items\n", removed)
			case clearFailed:
				removed, err := session.Access.Clear(cmd.Context(), "failed")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d failed items\n", removed)
			default:
				removed, err := session.Access.Clear(cmd.Context(), "all")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d queue items\n", removed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}

// newQueueHealthCommand inspects the database file itself, so it always opens
// the store directly instead of asking the daemon.
func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, health)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
			fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
			fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
			fmt.Fprintf(out, "Schema version: %s\n", health.SchemaVersion)
			fmt.Fprintf(out, "queue_items table present: %s\n", yesNo(health.TableExists))
			if len(health.ColumnsPresent) > 0 {
				cols := append([]string(nil), health.ColumnsPresent...)
				sort.Strings(cols)
				fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
			}
			if len(health.MissingColumns) > 0 {
				missing := append([]string(nil), health.MissingColumns...)
				sort.Strings(missing)
				fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
			} else {
				fmt.Fprintln(out, "Missing columns: none")
			}
			fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
			fmt.Fprintf(out, "Total items: %d\n", health.TotalItems)
			if health.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", health.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the health report as JSON")
	return cmd
}
