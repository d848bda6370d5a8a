package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CommandSpec describes one tool invocation to launch. The tool's
// command-line syntax is opaque to the core: parameters are rendered as
// generic long flags plus a positional target, and the subprocess is
// spawned with an argument vector, never through a shell, so
// target-derived strings cannot smuggle in extra arguments.
type CommandSpec struct {
	ToolID string
	Binary string

	// Args, when set, bypasses parameter rendering entirely.
	Args []string

	// Params are rendered into flags when Args is nil. The "target" key
	// becomes the trailing positional argument.
	Params map[string]any

	// Timeout overrides the cost-derived timeout when positive.
	Timeout time.Duration

	// ProgressPattern is a regex with one capture group yielding a 0-100
	// percentage from incremental output.
	ProgressPattern string
}

// renderArgs produces the argument vector for the spec. Flags are emitted
// in sorted key order so the rendered command line is deterministic.
func renderArgs(spec CommandSpec) ([]string, error) {
	if spec.Args != nil {
		return spec.Args, nil
	}

	keys := make([]string, 0, len(spec.Params))
	for k := range spec.Params {
		if k == "target" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		value := fmt.Sprintf("%v", spec.Params[k])
		if err := validateArg(k); err != nil {
			return nil, err
		}
		if err := validateArg(value); err != nil {
			return nil, err
		}
		args = append(args, fmt.Sprintf("--%s=%s", k, value))
	}

	if target, ok := spec.Params["target"]; ok {
		value := fmt.Sprintf("%v", target)
		if err := validateArg(value); err != nil {
			return nil, err
		}
		args = append(args, value)
	}
	return args, nil
}

// validateArg rejects control characters in rendered arguments. exec's
// argv passing is already injection-safe; this guards against corrupting
// tool output parsing and log lines.
func validateArg(s string) error {
	if strings.ContainsAny(s, "\x00\n\r") {
		return fmt.Errorf("argument contains control characters: %q", s)
	}
	return nil
}

// commandLine formats the full command for display and logging.
func commandLine(binary string, args []string) string {
	return strings.Join(append([]string{binary}, args...), " ")
}
