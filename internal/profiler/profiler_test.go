package profiler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexstrike/hexstrike/internal/types"
)

// mockResolver implements Resolver for tests.
type mockResolver struct {
	hosts map[string][]string
	ns    map[string][]string
	delay time.Duration
}

func (m *mockResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if addrs, ok := m.hosts[host]; ok {
		return addrs, nil
	}
	return nil, fmt.Errorf("no such host: %s", host)
}

func (m *mockResolver) LookupNS(ctx context.Context, domain string) ([]string, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if hosts, ok := m.ns[domain]; ok {
		return hosts, nil
	}
	return nil, fmt.Errorf("no NS records for %s", domain)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProfiler(r Resolver) *Profiler {
	return New(testLogger(), WithResolver(r), WithResolveTimeout(500*time.Millisecond))
}

func TestAnalyze_URL(t *testing.T) {
	p := newTestProfiler(&mockResolver{hosts: map[string][]string{"example.test": {"203.0.113.10"}}})

	profile, err := p.Analyze(context.Background(), "  HTTPS://Example.Test/wp-admin  ")
	require.NoError(t, err)

	assert.Equal(t, types.TargetTypeWebApplication, profile.TargetType)
	assert.Equal(t, []string{"203.0.113.10"}, profile.ResolvedAddresses)
	assert.Contains(t, profile.DetectedTechnologies, "tls")
	assert.Contains(t, profile.DetectedTechnologies, "wordpress")
	assert.GreaterOrEqual(t, profile.ConfidenceScore, 0.9)
}

func TestAnalyze_CIDR(t *testing.T) {
	p := newTestProfiler(&mockResolver{})

	profile, err := p.Analyze(context.Background(), "198.51.100.0/24")
	require.NoError(t, err)

	assert.Equal(t, types.TargetTypeNetworkRange, profile.TargetType)
	assert.Equal(t, []string{"198.51.100.0/24"}, profile.ResolvedAddresses)
}

func TestAnalyze_LiteralIP(t *testing.T) {
	p := newTestProfiler(&mockResolver{})

	profile, err := p.Analyze(context.Background(), "192.0.2.7")
	require.NoError(t, err)

	assert.Equal(t, types.TargetTypeHost, profile.TargetType)
	assert.Equal(t, []string{"192.0.2.7"}, profile.ResolvedAddresses)
}

func TestAnalyze_DomainWithNS(t *testing.T) {
	p := newTestProfiler(&mockResolver{
		hosts: map[string][]string{"example.test": {"203.0.113.10"}},
		ns:    map[string][]string{"example.test": {"ns1.example.test."}},
	})

	profile, err := p.Analyze(context.Background(), "example.test")
	require.NoError(t, err)

	assert.Equal(t, types.TargetTypeDomain, profile.TargetType)
	assert.Equal(t, []string{"203.0.113.10"}, profile.ResolvedAddresses)
}

func TestAnalyze_HostWithoutNS(t *testing.T) {
	p := newTestProfiler(&mockResolver{
		hosts: map[string][]string{"server01.internal.test": {"10.0.0.5"}},
	})

	profile, err := p.Analyze(context.Background(), "server01.internal.test")
	require.NoError(t, err)

	assert.Equal(t, types.TargetTypeHost, profile.TargetType)
}

func TestAnalyze_ResolutionFailureLowersConfidence(t *testing.T) {
	p := newTestProfiler(&mockResolver{})

	profile, err := p.Analyze(context.Background(), "does-not-resolve.test")
	require.NoError(t, err)

	assert.Empty(t, profile.ResolvedAddresses)
	assert.Less(t, profile.ConfidenceScore, 0.5)
}

func TestAnalyze_ResolutionTimeout(t *testing.T) {
	p := New(testLogger(),
		WithResolver(&mockResolver{
			delay: time.Second,
			hosts: map[string][]string{"slow.test": {"203.0.113.99"}},
		}),
		WithResolveTimeout(50*time.Millisecond),
	)

	start := time.Now()
	profile, err := p.Analyze(context.Background(), "slow.test")
	require.NoError(t, err)

	// Two bounded lookups (A/AAAA then NS), each capped at 50ms.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, profile.ResolvedAddresses)
}

func TestAnalyze_Binary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x7f, 'E', 'L', 'F'}, 0o755))

	p := newTestProfiler(&mockResolver{})
	profile, err := p.Analyze(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, types.TargetTypeBinary, profile.TargetType)
}

func TestAnalyze_Unknown(t *testing.T) {
	p := newTestProfiler(&mockResolver{})

	profile, err := p.Analyze(context.Background(), "???not a target???")
	require.NoError(t, err)

	assert.Equal(t, types.TargetTypeUnknown, profile.TargetType)
	assert.Equal(t, 0.0, profile.ConfidenceScore)
}

func TestAnalyze_EmptyTarget(t *testing.T) {
	p := newTestProfiler(&mockResolver{})

	_, err := p.Analyze(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, types.PROFILE_INVALID_TARGET, types.CodeOf(err))
}

func TestAnalyze_ConfidenceBounds(t *testing.T) {
	p := newTestProfiler(&mockResolver{
		hosts: map[string][]string{"example.test": {"203.0.113.10"}},
	})

	for _, target := range []string{
		"https://example.test",
		"198.51.100.0/24",
		"192.0.2.7",
		"example.test",
		"garbage^^^",
		"10.0.0.1-50",
	} {
		profile, err := p.Analyze(context.Background(), target)
		require.NoError(t, err, target)
		assert.GreaterOrEqual(t, profile.ConfidenceScore, 0.0, target)
		assert.LessOrEqual(t, profile.ConfidenceScore, 1.0, target)
	}
}
