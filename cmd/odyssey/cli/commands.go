package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// Factory opens a JobsCLI when a command runs.
type Factory func() (*JobsCLI, error)

// NewRootCommand builds the odyssey operator command tree.
func NewRootCommand(open Factory) *cobra.Command {
	root := &cobra.Command{
		Use:           "odyssey",
		Short:         "Operator tools for intercompany journal generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background jobs",
	}
	jobsCmd.AddCommand(newGenerateCommand(open), newInspectCommand(open), newScheduledCommand(open))
	root.AddCommand(jobsCmd)
	return root
}

func newGenerateCommand(open Factory) *cobra.Command {
	var (
		event      string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "generate-icje <billID>...",
		Short: "Queue intercompany journal generation for vendor bills",
		Long: `Queue one icje:generate task covering the given vendor bills.

Examples:
  odyssey jobs generate-icje 1042
  odyssey jobs generate-icje 1042 1043 --event create --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseBillIDs(args)
			if err != nil {
				return err
			}
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			info, err := c.GenerateICJE(cmd.Context(), ids, event)
			if err != nil {
				return err
			}
			result := map[string]any{"bill_ids": ids, "queued": true, "task_id": info.ID}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s for bills %v\n", info.ID, ids)
			return nil
		},
	}
	cmd.Flags().StringVar(&event, "event", "edit", "Bill event that triggered the run (create|edit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newInspectCommand(open Factory) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show default queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			stats, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

type scheduledTask struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	State     string    `json:"state"`
	Payload   string    `json:"payload"`
	NextRunAt time.Time `json:"next_run_at"`
}

func newScheduledCommand(open Factory) *cobra.Command {
	var (
		size       int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List upcoming scheduled and retrying tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer c.Close()
			infos, err := c.ListUpcoming(cmd.Context(), size)
			if err != nil {
				return err
			}
			tasks := make([]scheduledTask, 0, len(infos))
			for _, info := range infos {
				tasks = append(tasks, scheduledTask{ID: info.ID, Type: info.Type, State: info.State.String(), Payload: string(info.Payload), NextRunAt: info.NextProcessAt})
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tSTATE\tNEXT RUN\tPAYLOAD")
			for _, task := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.Type, task.State, task.NextRunAt.Format(time.RFC3339), task.Payload)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "Maximum tasks to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func parseBillIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid bill id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
