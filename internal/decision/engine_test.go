package decision

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexstrike/hexstrike/internal/catalog"
	"github.com/hexstrike/hexstrike/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func profileOf(target string, tt types.TargetType, techs ...string) *types.TargetProfile {
	return &types.TargetProfile{
		RawTarget:            target,
		TargetType:           tt,
		ResolvedAddresses:    []string{},
		ConfidenceScore:      0.9,
		DetectedTechnologies: techs,
		CreatedAt:            time.Now(),
	}
}

// fixedStats is a StatsProvider with canned rates.
type fixedStats map[string]float64

func (s fixedStats) SuccessRate(toolID string) (float64, bool) {
	rate, ok := s[toolID]
	return rate, ok
}

func TestSelectTools_FiltersByTargetType(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())
	profile := profileOf("198.51.100.0/24", types.TargetTypeNetworkRange)

	selected := e.SelectTools(profile, "port_discovery", 0)
	require.NotEmpty(t, selected)

	for _, id := range selected {
		desc, err := catalog.Builtin().Get(id)
		require.NoError(t, err)
		assert.True(t, desc.AppliesTo(types.TargetTypeNetworkRange),
			"%s does not apply to network_range", id)
	}
}

func TestSelectTools_Deterministic(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())
	profile := profileOf("https://example.test", types.TargetTypeWebApplication)

	first := e.SelectTools(profile, "quick_web_check", 10)
	second := e.SelectTools(profile, "quick_web_check", 10)
	assert.Equal(t, first, second)
}

func TestSelectTools_NoApplicableToolsIsEmptyNotError(t *testing.T) {
	cat, err := catalog.New([]catalog.ToolDescriptor{{
		ID:              "webonly",
		Binary:          "webonly",
		ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication},
		BaseCost:        1,
	}})
	require.NoError(t, err)

	e := NewEngine(cat, testLogger())
	selected := e.SelectTools(profileOf("x.bin", types.TargetTypeBinary), "anything", 0)
	assert.NotNil(t, selected)
	assert.Empty(t, selected)
}

func TestSelectTools_BudgetGreedy(t *testing.T) {
	// Budget admits the best-scoring tool and the cheap one, but not the
	// mid-ranked expensive one.
	cat, err := catalog.New([]catalog.ToolDescriptor{
		{ID: "exact", Binary: "exact", ApplicableTypes: []types.TargetType{types.TargetTypeHost},
			BaseCost: 2, Keywords: []string{"port", "discovery"}},
		{ID: "partial", Binary: "partial", ApplicableTypes: []types.TargetType{types.TargetTypeHost},
			BaseCost: 4, Keywords: []string{"port"}},
		{ID: "cheap", Binary: "cheap", ApplicableTypes: []types.TargetType{types.TargetTypeHost},
			BaseCost: 1, Keywords: []string{"port"}},
	})
	require.NoError(t, err)

	e := NewEngine(cat, testLogger())
	selected := e.SelectTools(profileOf("192.0.2.1", types.TargetTypeHost), "port discovery", 3)

	// exact (cost 2) fits, partial (cost 4) exceeds the remaining 1,
	// cheap (cost 1) still fits: greedy, not globally optimal.
	assert.Equal(t, []string{"exact", "cheap"}, selected)
}

func TestSelectTools_TieBreakByDeclarationOrder(t *testing.T) {
	cat, err := catalog.New([]catalog.ToolDescriptor{
		{ID: "first", Binary: "first", ApplicableTypes: []types.TargetType{types.TargetTypeHost}, BaseCost: 2},
		{ID: "second", Binary: "second", ApplicableTypes: []types.TargetType{types.TargetTypeHost}, BaseCost: 2},
	})
	require.NoError(t, err)

	e := NewEngine(cat, testLogger())
	selected := e.SelectTools(profileOf("192.0.2.1", types.TargetTypeHost), "no keyword overlap", 0)
	assert.Equal(t, []string{"first", "second"}, selected)
}

func TestSelectTools_SuccessRateInfluencesRanking(t *testing.T) {
	cat, err := catalog.New([]catalog.ToolDescriptor{
		{ID: "flaky", Binary: "flaky", ApplicableTypes: []types.TargetType{types.TargetTypeHost}, BaseCost: 2},
		{ID: "reliable", Binary: "reliable", ApplicableTypes: []types.TargetType{types.TargetTypeHost}, BaseCost: 2},
	})
	require.NoError(t, err)

	e := NewEngine(cat, testLogger(), WithStats(fixedStats{"flaky": 0.1, "reliable": 0.95}))
	selected := e.SelectTools(profileOf("192.0.2.1", types.TargetTypeHost), "scan", 0)
	assert.Equal(t, []string{"reliable", "flaky"}, selected)
}

func TestOptimizeParameters_Precedence(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())
	profile := profileOf("https://example.test/wp-admin", types.TargetTypeWebApplication, "wordpress")

	// Derived beats default: detected CMS deepens the wordlist.
	params, err := e.OptimizeParameters("gobuster", profile, nil)
	require.NoError(t, err)
	assert.Equal(t, "wordpress.txt", params["wordlist"])
	assert.Equal(t, "https://example.test/wp-admin", params["target"])

	// Explicit override beats both and is never dropped.
	params, err = e.OptimizeParameters("gobuster", profile, map[string]any{"wordlist": "mine.txt"})
	require.NoError(t, err)
	assert.Equal(t, "mine.txt", params["wordlist"])
}

func TestOptimizeParameters_SmallCIDRNarrowsPorts(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())

	small := profileOf("198.51.100.0/28", types.TargetTypeNetworkRange)
	params, err := e.OptimizeParameters("masscan", small, nil)
	require.NoError(t, err)
	assert.Equal(t, "1-1024", params["ports"])

	large := profileOf("10.0.0.0/8", types.TargetTypeNetworkRange)
	params, err = e.OptimizeParameters("masscan", large, nil)
	require.NoError(t, err)
	assert.Equal(t, "1-65535", params["ports"])
}

func TestOptimizeParameters_IncompleteParameter(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())

	// hydra requires "service", which has no default and no derivation.
	_, err := e.OptimizeParameters("hydra", profileOf("192.0.2.1", types.TargetTypeHost), nil)
	require.Error(t, err)
	assert.Equal(t, types.PARAMS_INCOMPLETE, types.CodeOf(err))

	// Supplying it explicitly resolves the step.
	params, err := e.OptimizeParameters("hydra", profileOf("192.0.2.1", types.TargetTypeHost),
		map[string]any{"service": "ssh"})
	require.NoError(t, err)
	assert.Equal(t, "ssh", params["service"])
}

func TestOptimizeParameters_RejectsPlaceholders(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())

	_, err := e.OptimizeParameters("nmap", profileOf("192.0.2.1", types.TargetTypeHost),
		map[string]any{"ports": "${PORT_RANGE}"})
	require.Error(t, err)
	assert.Equal(t, types.PARAMS_INCOMPLETE, types.CodeOf(err))
}

func TestBuildPlan_DomainChainsEnumerationFirst(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())
	plan, err := e.BuildPlan(profileOf("example.test", types.TargetTypeDomain), "subdomain enumeration and vulnerability scan")
	require.NoError(t, err)
	require.NotEmpty(t, plan.Steps)

	// Find the first subdomain enumerator; every dependent step must
	// reference a tool that appears earlier in the plan.
	position := make(map[string]int)
	for i, step := range plan.Steps {
		position[step.ToolID] = i
	}
	sawDependency := false
	for _, step := range plan.Steps {
		if step.DependsOn == "" {
			continue
		}
		sawDependency = true
		dep, ok := position[step.DependsOn]
		require.True(t, ok, "step %s depends on %s which is not in the plan", step.ToolID, step.DependsOn)
		assert.Less(t, dep, position[step.ToolID])
	}
	assert.True(t, sawDependency, "expected at least one dependency edge in a domain plan")
}

func TestBuildPlan_DropsUnresolvableSteps(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())
	plan, err := e.BuildPlan(profileOf("192.0.2.1", types.TargetTypeHost), "password crack login brute")
	require.NoError(t, err)

	// hydra matches the objective but cannot resolve its required
	// "service" parameter, so it must not appear in the plan.
	for _, step := range plan.Steps {
		assert.NotEqual(t, "hydra", step.ToolID)
	}
}

func TestBuildPlan_EmptySelectionYieldsEmptyPlan(t *testing.T) {
	cat, err := catalog.New([]catalog.ToolDescriptor{{
		ID:              "webonly",
		Binary:          "webonly",
		ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication},
		BaseCost:        1,
	}})
	require.NoError(t, err)

	e := NewEngine(cat, testLogger())
	plan, err := e.BuildPlan(profileOf("sample.bin", types.TargetTypeBinary), "analyze")
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
}

func TestFallbackParameters(t *testing.T) {
	e := NewEngine(catalog.Builtin(), testLogger())

	reduced, ok := e.FallbackParameters("nmap", map[string]any{
		"ports":   "1-1000",
		"threads": 10,
		"timing":  "T4",
	})
	require.True(t, ok)
	assert.Equal(t, "1-100", reduced["ports"])
	assert.Equal(t, 5, reduced["threads"])
	assert.Equal(t, "T4", reduced["timing"])

	// Nothing left to reduce.
	_, ok = e.FallbackParameters("nmap", map[string]any{"timing": "T4"})
	assert.False(t, ok)
}
