package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexstrike/hexstrike/internal/types"
)

func validDescriptor(id string) ToolDescriptor {
	return ToolDescriptor{
		ID:                   id,
		Description:          "test tool",
		Binary:               "/usr/bin/" + id,
		ApplicableTypes:      []types.TargetType{types.TargetTypeHost},
		BaseCost:             2,
		DefaultParams:        map[string]any{"ports": "1-100"},
		RequiredCapabilities: []Capability{CapabilityPortScan},
	}
}

func TestNew_Valid(t *testing.T) {
	c, err := New([]ToolDescriptor{validDescriptor("alpha"), validDescriptor("beta")})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ToolDescriptor)
	}{
		{
			name:   "empty id",
			mutate: func(d *ToolDescriptor) { d.ID = "" },
		},
		{
			name:   "empty binary",
			mutate: func(d *ToolDescriptor) { d.Binary = "" },
		},
		{
			name:   "zero base cost",
			mutate: func(d *ToolDescriptor) { d.BaseCost = 0 },
		},
		{
			name:   "negative base cost",
			mutate: func(d *ToolDescriptor) { d.BaseCost = -3 },
		},
		{
			name:   "no applicable types",
			mutate: func(d *ToolDescriptor) { d.ApplicableTypes = nil },
		},
		{
			name:   "unknown target type",
			mutate: func(d *ToolDescriptor) { d.ApplicableTypes = []types.TargetType{"satellite"} },
		},
		{
			name:   "unknown capability",
			mutate: func(d *ToolDescriptor) { d.RequiredCapabilities = []Capability{"time_travel"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor("broken")
			tt.mutate(&d)
			_, err := New([]ToolDescriptor{d})
			require.Error(t, err)
			assert.Equal(t, types.CATALOG_INVALID, types.CodeOf(err))
		})
	}
}

func TestNew_DuplicateID(t *testing.T) {
	_, err := New([]ToolDescriptor{validDescriptor("dup"), validDescriptor("dup")})
	require.Error(t, err)
	assert.Equal(t, types.CATALOG_INVALID, types.CodeOf(err))
}

func TestGet_NotFound(t *testing.T) {
	c, err := New([]ToolDescriptor{validDescriptor("alpha")})
	require.NoError(t, err)

	_, err = c.Get("missing")
	require.Error(t, err)
	assert.Equal(t, types.TOOL_NOT_FOUND, types.CodeOf(err))
}

func TestListApplicable_DeclarationOrder(t *testing.T) {
	a := validDescriptor("a")
	b := validDescriptor("b")
	b.ApplicableTypes = []types.TargetType{types.TargetTypeWebApplication}
	c := validDescriptor("c")

	cat, err := New([]ToolDescriptor{a, b, c})
	require.NoError(t, err)

	hosts := cat.ListApplicable(types.TargetTypeHost)
	require.Len(t, hosts, 2)
	assert.Equal(t, "a", hosts[0].ID)
	assert.Equal(t, "c", hosts[1].ID)

	assert.Empty(t, cat.ListApplicable(types.TargetTypeBinary))
}

func TestParse_YAML(t *testing.T) {
	data := []byte(`
tools:
  - id: scanner
    description: test scanner
    binary: /usr/bin/scanner
    applicable_types: [host, network_range]
    base_cost: 3
    default_params:
      ports: "1-1024"
    required_capabilities: [port_scan]
    keywords: [port, scan]
`)
	c, err := Parse(data)
	require.NoError(t, err)

	d, err := c.Get("scanner")
	require.NoError(t, err)
	assert.Equal(t, 3, d.BaseCost)
	assert.True(t, d.AppliesTo(types.TargetTypeNetworkRange))
	assert.Equal(t, "1-1024", d.DefaultParams["ports"])
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("tools: []"))
	require.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	c := Builtin()
	require.Greater(t, c.Len(), 0)

	// The builtin arsenal must cover every target type except unknown.
	for _, tt := range []types.TargetType{
		types.TargetTypeWebApplication,
		types.TargetTypeHost,
		types.TargetTypeNetworkRange,
		types.TargetTypeDomain,
		types.TargetTypeBinary,
	} {
		assert.NotEmpty(t, c.ListApplicable(tt), "no builtin tool for %s", tt)
	}

	// Declaration index must be stable and total.
	for i, d := range c.List() {
		assert.Equal(t, i, c.DeclarationIndex(d.ID))
	}
	assert.Equal(t, -1, c.DeclarationIndex("no-such-tool"))
}
