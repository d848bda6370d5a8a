package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hexstrike/hexstrike/internal/orchestrator"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List active processes on a running daemon",
	RunE:  runPS,
}

var psTerminateCmd = &cobra.Command{
	Use:   "terminate ID",
	Short: "Terminate a managed process",
	Args:  cobra.ExactArgs(1),
	RunE:  runPSTerminate,
}

func runPS(cmd *cobra.Command, _ []string) error {
	var resp struct {
		Processes []orchestrator.ProcessHandle `json:"processes"`
		Count     int                          `json:"count"`
	}
	if err := newAPIClient().get(cmd.Context(), "/api/v1/processes", &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		cmd.Println(dimStyle.Render("no active processes"))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, headStyle.Render("ID\tTOOL\tSTATE\tPROGRESS\tRUNNING\tCOMMAND"))
	for _, p := range resp.Processes {
		running := ""
		if !p.StartedAt.IsZero() {
			running = time.Since(p.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			p.ID, p.ToolID, p.State, p.ProgressPercent, running, p.CommandLine)
	}
	return w.Flush()
}

func runPSTerminate(cmd *cobra.Command, args []string) error {
	var handle orchestrator.ProcessHandle
	path := "/api/v1/processes/" + args[0] + "/terminate"
	if err := newAPIClient().post(cmd.Context(), path, nil, &handle); err != nil {
		return err
	}
	cmd.Printf("%s %s (%s)\n", okStyle.Render("terminated"), handle.ID, handle.ToolID)
	return nil
}

func init() {
	psCmd.PersistentFlags().StringVar(&apiAddr, "addr", "127.0.0.1:8888", "daemon address")
	psCmd.AddCommand(psTerminateCmd)
}
