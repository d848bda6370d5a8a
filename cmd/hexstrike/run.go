package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	runObjective string
	runJSON      bool
	runVerbose   bool
)

var runCmd = &cobra.Command{
	Use:   "run TARGET",
	Short: "Profile, plan, and execute against a target",
	Long: `Run the full pipeline: profile the target, plan the tool chain for
the objective, execute it with caching and fallback retries, and print
the per-tool results.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	c, err := buildCore()
	if err != nil {
		return err
	}
	defer c.close()

	result, err := c.coord.Run(cmd.Context(), args[0], runObjective)
	if err != nil {
		return err
	}

	if runJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println(titleStyle.Render(fmt.Sprintf("Run %s", result.RunID)))
	cmd.Printf("%s %s (%s)\n", headStyle.Render("target:   "), result.Profile.RawTarget, result.Profile.TargetType)
	cmd.Printf("%s %s\n", headStyle.Render("objective:"), result.Objective)

	if len(result.Steps) == 0 {
		cmd.Println(dimStyle.Render("no applicable tools for this target"))
		return nil
	}

	ids := make([]string, 0, len(result.Steps))
	for id := range result.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, headStyle.Render("TOOL\tSTATUS\tSOURCE\tDURATION\tNOTE"))
	for _, id := range ids {
		step := result.Steps[id]
		note := step.Error
		if step.FellBack {
			note = "after reduced-scope retry"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			step.ToolID,
			renderStepStatus(step.Status),
			step.Provenance,
			step.Duration.Round(time.Millisecond),
			note,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if runVerbose {
		for _, id := range ids {
			step := result.Steps[id]
			if step.Output == "" {
				continue
			}
			cmd.Println(titleStyle.Render("--- " + id))
			cmd.Println(step.Output)
		}
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runObjective, "objective", "comprehensive scan", "objective driving tool selection")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit the aggregate result as JSON")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "print captured tool output")
}
