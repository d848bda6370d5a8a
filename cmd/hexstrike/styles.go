package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hexstrike/hexstrike/internal/coordinator"
	"github.com/hexstrike/hexstrike/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// renderStepStatus colors a step status for terminal output.
func renderStepStatus(status coordinator.StepStatus) string {
	switch status {
	case coordinator.StepOK:
		return okStyle.Render(string(status))
	case coordinator.StepSkippedDependency:
		return warnStyle.Render(string(status))
	default:
		return errorStyle.Render(string(status))
	}
}

// renderHealthState colors a component health state.
func renderHealthState(state types.HealthState) string {
	switch state {
	case types.HealthStateHealthy:
		return okStyle.Render(string(state))
	case types.HealthStateDegraded:
		return warnStyle.Render(string(state))
	default:
		return errorStyle.Render(string(state))
	}
}
