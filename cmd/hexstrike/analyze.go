package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hexstrike/hexstrike/internal/profiler"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze TARGET",
	Short: "Profile a target",
	Long: `Classify a raw target (IP, hostname, URL, CIDR range, or local
binary path) into a structured profile with resolved addresses and
detected technologies.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	prof := profiler.New(logger, profiler.WithResolveTimeout(cfg.Profiler.ResolveTimeout))

	profile, err := prof.Analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if analyzeJSON {
		out, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println(titleStyle.Render("Target Profile"))
	cmd.Printf("%s %s\n", headStyle.Render("target:    "), profile.RawTarget)
	cmd.Printf("%s %s\n", headStyle.Render("type:      "), profile.TargetType)
	cmd.Printf("%s %.2f\n", headStyle.Render("confidence:"), profile.ConfidenceScore)
	if len(profile.ResolvedAddresses) > 0 {
		cmd.Printf("%s %s\n", headStyle.Render("addresses: "), strings.Join(profile.ResolvedAddresses, ", "))
	}
	if len(profile.DetectedTechnologies) > 0 {
		cmd.Printf("%s %s\n", headStyle.Render("tech:      "), strings.Join(profile.DetectedTechnologies, ", "))
	}
	if profile.ConfidenceScore < 0.5 {
		cmd.Println(warnStyle.Render(fmt.Sprintf("low confidence classification (%.2f)", profile.ConfidenceScore)))
	}
	return nil
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the profile as JSON")
}
