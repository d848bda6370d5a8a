// Package catalog provides the static tool registry consulted by the
// decision engine. Descriptors are loaded once at process start, validated
// fail-fast, and shared read-only by all requests afterwards, so access
// needs no locking.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hexstrike/hexstrike/internal/types"
)

// Capability names a class of work a tool can perform. Descriptors may only
// reference capabilities registered in KnownCapabilities; an unknown
// reference fails catalog load.
type Capability string

const (
	CapabilityNetworkScan     Capability = "network_scan"
	CapabilityPortScan        Capability = "port_scan"
	CapabilityWebFuzzing      Capability = "web_fuzzing"
	CapabilityWebScan         Capability = "web_scan"
	CapabilityDNSEnumeration  Capability = "dns_enumeration"
	CapabilitySubdomainEnum   Capability = "subdomain_enumeration"
	CapabilitySQLInjection    Capability = "sql_injection"
	CapabilityVulnScan        Capability = "vulnerability_scan"
	CapabilityPasswordAttack  Capability = "password_attack"
	CapabilityBinaryAnalysis  Capability = "binary_analysis"
	CapabilityTechFingerprint Capability = "tech_fingerprint"
)

// KnownCapabilities is the closed set of capabilities descriptors may use.
var KnownCapabilities = map[Capability]struct{}{
	CapabilityNetworkScan:     {},
	CapabilityPortScan:        {},
	CapabilityWebFuzzing:      {},
	CapabilityWebScan:         {},
	CapabilityDNSEnumeration:  {},
	CapabilitySubdomainEnum:   {},
	CapabilitySQLInjection:    {},
	CapabilityVulnScan:        {},
	CapabilityPasswordAttack:  {},
	CapabilityBinaryAnalysis:  {},
	CapabilityTechFingerprint: {},
}

// ToolDescriptor is a catalog entry describing one external tool: what
// targets it applies to, its relative runtime weight, and the parameter
// surface it exposes. The tool's actual command-line syntax is opaque to
// the core; Binary plus rendered parameters is all the orchestrator needs.
type ToolDescriptor struct {
	ID                   string             `yaml:"id" json:"id"`
	Description          string             `yaml:"description" json:"description"`
	Binary               string             `yaml:"binary" json:"binary"`
	ApplicableTypes      []types.TargetType `yaml:"applicable_types" json:"applicable_types"`
	BaseCost             int                `yaml:"base_cost" json:"base_cost"`
	DefaultParams        map[string]any     `yaml:"default_params" json:"default_params"`
	RequiredParams       []string           `yaml:"required_params" json:"required_params,omitempty"`
	RequiredCapabilities []Capability       `yaml:"required_capabilities" json:"required_capabilities"`
	Keywords             []string           `yaml:"keywords" json:"keywords,omitempty"`

	// ProgressPattern is an optional regex with one capture group matching
	// a 0-100 percentage in the tool's incremental output. Tools without a
	// pattern report 0 until completion.
	ProgressPattern string `yaml:"progress_pattern" json:"progress_pattern,omitempty"`
}

// AppliesTo reports whether the descriptor covers the given target type.
func (d ToolDescriptor) AppliesTo(tt types.TargetType) bool {
	for _, t := range d.ApplicableTypes {
		if t == tt {
			return true
		}
	}
	return false
}

// Catalog is the immutable tool registry. Declaration order is preserved
// and used as the deterministic tie-break in tool selection.
type Catalog struct {
	tools []ToolDescriptor
	index map[string]int
}

// New builds a catalog from descriptors, validating every entry.
// Validation failures are fatal: the process must not start with a
// malformed catalog.
func New(descriptors []ToolDescriptor) (*Catalog, error) {
	c := &Catalog{
		tools: make([]ToolDescriptor, 0, len(descriptors)),
		index: make(map[string]int, len(descriptors)),
	}
	for i, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			return nil, types.WrapError(types.CATALOG_INVALID,
				fmt.Sprintf("descriptor %d (%q) invalid", i, d.ID), err)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, types.NewError(types.CATALOG_INVALID,
				fmt.Sprintf("duplicate tool id %q", d.ID))
		}
		c.index[d.ID] = len(c.tools)
		c.tools = append(c.tools, d)
	}
	return c, nil
}

// Load reads a YAML catalog file and builds a validated catalog from it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.CATALOG_INVALID, "failed to read catalog file", err)
	}
	return Parse(data)
}

// Parse builds a validated catalog from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var file struct {
		Tools []ToolDescriptor `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, types.WrapError(types.CATALOG_INVALID, "failed to parse catalog YAML", err)
	}
	if len(file.Tools) == 0 {
		return nil, types.NewError(types.CATALOG_INVALID, "catalog contains no tools")
	}
	return New(file.Tools)
}

func validateDescriptor(d ToolDescriptor) error {
	if d.ID == "" {
		return fmt.Errorf("tool id cannot be empty")
	}
	if d.Binary == "" {
		return fmt.Errorf("tool binary cannot be empty")
	}
	if d.BaseCost <= 0 {
		return fmt.Errorf("base_cost must be positive, got %d", d.BaseCost)
	}
	if len(d.ApplicableTypes) == 0 {
		return fmt.Errorf("tool must declare at least one applicable target type")
	}
	for _, tt := range d.ApplicableTypes {
		if !tt.IsValid() {
			return fmt.Errorf("unknown target type %q", tt)
		}
	}
	for _, cap := range d.RequiredCapabilities {
		if _, ok := KnownCapabilities[cap]; !ok {
			return fmt.Errorf("unknown capability %q", cap)
		}
	}
	for _, p := range d.RequiredParams {
		if p == "" {
			return fmt.Errorf("required parameter name cannot be empty")
		}
	}
	return nil
}

// Get retrieves a descriptor by tool id.
func (c *Catalog) Get(id string) (ToolDescriptor, error) {
	i, ok := c.index[id]
	if !ok {
		return ToolDescriptor{}, types.NewError(types.TOOL_NOT_FOUND,
			fmt.Sprintf("tool %q not found in catalog", id))
	}
	return c.tools[i], nil
}

// ListApplicable returns descriptors applicable to the given target type,
// in declaration order.
func (c *Catalog) ListApplicable(tt types.TargetType) []ToolDescriptor {
	var out []ToolDescriptor
	for _, d := range c.tools {
		if d.AppliesTo(tt) {
			out = append(out, d)
		}
	}
	return out
}

// List returns all descriptors in declaration order.
func (c *Catalog) List() []ToolDescriptor {
	out := make([]ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// DeclarationIndex returns the position of a tool in catalog declaration
// order, used by the decision engine for deterministic tie-breaks.
// Returns -1 for unknown ids.
func (c *Catalog) DeclarationIndex(id string) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Len returns the number of descriptors in the catalog.
func (c *Catalog) Len() int {
	return len(c.tools)
}
