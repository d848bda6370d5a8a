package decision

import (
	"fmt"
	"net"
	"strings"

	"github.com/hexstrike/hexstrike/internal/catalog"
	"github.com/hexstrike/hexstrike/internal/types"
)

// OptimizeParameters resolves the full parameter map for one tool
// invocation. Precedence, lowest to highest: descriptor defaults,
// target-derived values, caller-supplied overrides. Explicit overrides are
// never dropped or rewritten. Returns PARAMS_INCOMPLETE if a required
// parameter is still missing or a value contains an unresolved
// placeholder after merging.
func (e *Engine) OptimizeParameters(toolID string, profile *types.TargetProfile, overrides map[string]any) (map[string]any, error) {
	desc, err := e.catalog.Get(toolID)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(desc.DefaultParams)+len(overrides)+1)
	for k, v := range desc.DefaultParams {
		params[k] = v
	}
	for k, v := range deriveParams(desc, profile) {
		params[k] = v
	}
	for k, v := range overrides {
		params[k] = v
	}

	if err := validateResolved(desc, params); err != nil {
		return nil, err
	}
	return params, nil
}

// deriveParams computes target-specific parameter overrides from the
// profile. Derivations sit between defaults and explicit overrides in
// precedence.
func deriveParams(desc catalog.ToolDescriptor, profile *types.TargetProfile) map[string]any {
	if profile == nil {
		return map[string]any{}
	}
	derived := map[string]any{
		// Every invocation needs its target; the orchestrator renders it
		// into the command line.
		"target": strings.TrimSpace(profile.RawTarget),
	}

	if _, hasPorts := desc.DefaultParams["ports"]; hasPorts && profile.TargetType == types.TargetTypeNetworkRange {
		// Small ranges warrant a narrower, deeper port sweep; huge ranges
		// keep the default to stay inside the tool's timeout envelope.
		if ones := cidrPrefix(profile.RawTarget); ones >= 24 {
			derived["ports"] = "1-1024"
		}
	}

	if _, hasWordlist := desc.DefaultParams["wordlist"]; hasWordlist && profile.TargetType == types.TargetTypeWebApplication {
		for _, tech := range profile.DetectedTechnologies {
			switch tech {
			case "wordpress":
				derived["wordlist"] = "wordpress.txt"
			case "php":
				derived["wordlist"] = "php-common.txt"
			}
		}
	}

	return derived
}

// cidrPrefix returns the prefix length of a CIDR target, or -1.
func cidrPrefix(target string) int {
	_, ipnet, err := net.ParseCIDR(strings.TrimSpace(target))
	if err != nil {
		return -1
	}
	ones, _ := ipnet.Mask.Size()
	return ones
}

// validateResolved checks that every required parameter is present and
// that no value still carries a template placeholder.
func validateResolved(desc catalog.ToolDescriptor, params map[string]any) error {
	for _, required := range desc.RequiredParams {
		v, ok := params[required]
		if !ok || v == nil {
			return types.NewError(types.PARAMS_INCOMPLETE,
				fmt.Sprintf("required parameter %q for tool %q cannot be resolved", required, desc.ID))
		}
		if s, isStr := v.(string); isStr && s == "" {
			return types.NewError(types.PARAMS_INCOMPLETE,
				fmt.Sprintf("required parameter %q for tool %q is empty", required, desc.ID))
		}
	}
	for k, v := range params {
		if s, isStr := v.(string); isStr {
			if strings.Contains(s, "${") || strings.Contains(s, "{{") {
				return types.NewError(types.PARAMS_INCOMPLETE,
					fmt.Sprintf("parameter %q for tool %q contains unresolved placeholder %q", k, desc.ID, s))
			}
		}
	}
	return nil
}

// FallbackParameters derives a reduced-scope variant of params for the
// orchestrator's single retry after a timeout or failure. Returns false
// when no meaningful reduction exists, in which case the failure is
// surfaced as-is.
func (e *Engine) FallbackParameters(toolID string, params map[string]any) (map[string]any, bool) {
	reduced := make(map[string]any, len(params))
	for k, v := range params {
		reduced[k] = v
	}

	changed := false
	if ports, ok := reduced["ports"].(string); ok {
		if narrowed := narrowPortRange(ports); narrowed != ports {
			reduced["ports"] = narrowed
			changed = true
		}
	}
	if _, ok := reduced["wordlist"].(string); ok && reduced["wordlist"] != "small.txt" {
		reduced["wordlist"] = "small.txt"
		changed = true
	}
	for _, k := range []string{"threads", "rate", "tasks"} {
		if n, ok := asInt(reduced[k]); ok && n > 1 {
			reduced[k] = n / 2
			changed = true
		}
	}
	for _, k := range []string{"level", "risk", "aggression"} {
		if n, ok := asInt(reduced[k]); ok && n > 1 {
			reduced[k] = 1
			changed = true
		}
	}

	if !changed {
		return nil, false
	}
	e.logger.Debug("derived fallback parameters", "tool", toolID)
	return reduced, true
}

// narrowPortRange steps a port range specification down one scope tier.
func narrowPortRange(ports string) string {
	switch ports {
	case "1-65535":
		return "1-1024"
	case "1-1024", "1-1000":
		return "1-100"
	default:
		return ports
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
