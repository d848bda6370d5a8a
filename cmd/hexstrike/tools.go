package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	toolsTarget    string
	toolsObjective string
	toolsBudget    int
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or select tools from the catalog",
	Long: `Without --target, lists the full tool catalog. With --target and
--objective, runs the selection engine and prints the ranked tool ids
for that target, optionally capped by a cost budget.`,
	RunE: runTools,
}

func runTools(cmd *cobra.Command, _ []string) error {
	c, err := buildCore()
	if err != nil {
		return err
	}
	defer c.close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	if toolsTarget == "" {
		cmd.Println(titleStyle.Render(fmt.Sprintf("Tool Catalog (%d tools)", c.catalog.Len())))
		fmt.Fprintln(w, headStyle.Render("ID\tCOST\tTYPES\tDESCRIPTION"))
		for _, d := range c.catalog.List() {
			types := make([]string, 0, len(d.ApplicableTypes))
			for _, tt := range d.ApplicableTypes {
				types = append(types, tt.String())
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d.ID, d.BaseCost, strings.Join(types, ","), d.Description)
		}
		return w.Flush()
	}

	profile, err := c.prof.Analyze(cmd.Context(), toolsTarget)
	if err != nil {
		return err
	}

	selected := c.engine.SelectTools(profile, toolsObjective, toolsBudget)
	if len(selected) == 0 {
		cmd.Println(warnStyle.Render(fmt.Sprintf("no applicable tools for %s targets", profile.TargetType)))
		return nil
	}

	cmd.Println(titleStyle.Render(fmt.Sprintf("Selected Tools (%s, %s)", profile.TargetType, toolsObjective)))
	fmt.Fprintln(w, headStyle.Render("RANK\tID\tCOST\tDESCRIPTION"))
	for i, id := range selected {
		d, err := c.catalog.Get(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, d.ID, d.BaseCost, d.Description)
	}
	return w.Flush()
}

func init() {
	toolsCmd.Flags().StringVar(&toolsTarget, "target", "", "target to select tools for")
	toolsCmd.Flags().StringVar(&toolsObjective, "objective", "", "objective driving the selection")
	toolsCmd.Flags().IntVar(&toolsBudget, "budget", 0, "total cost budget, 0 for unlimited")
}
