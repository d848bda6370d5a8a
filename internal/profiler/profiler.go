// Package profiler classifies raw target strings (IP, hostname, URL, CIDR,
// local binary path) into structured profiles consumed by the decision
// engine. Classification is best-effort: name resolution failures lower
// confidence instead of failing the analysis.
package profiler

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hexstrike/hexstrike/internal/types"
)

// DefaultResolveTimeout bounds DNS resolution per analysis request.
const DefaultResolveTimeout = 2 * time.Second

var hostnameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?)*$`)

// Profiler turns raw target strings into TargetProfiles.
type Profiler struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithResolver overrides the DNS resolver, mainly for tests.
func WithResolver(r Resolver) Option {
	return func(p *Profiler) { p.resolver = r }
}

// WithResolveTimeout overrides the resolution timeout.
func WithResolveTimeout(d time.Duration) Option {
	return func(p *Profiler) { p.timeout = d }
}

// New creates a Profiler.
func New(logger *slog.Logger, opts ...Option) *Profiler {
	p := &Profiler{
		timeout: DefaultResolveTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resolver == nil {
		p.resolver = NewResolver(p.timeout)
	}
	return p
}

// Analyze classifies a raw target string into a TargetProfile.
//
// Classifiers run in priority order: URL scheme, CIDR/range syntax,
// literal IP, local binary path, resolvable hostname. The highest
// confidence classification wins; ties keep the earlier classifier.
// Resolution failures never raise: the profile comes back with lowered
// confidence and an empty address list.
func (p *Profiler) Analyze(ctx context.Context, rawTarget string) (*types.TargetProfile, error) {
	normalized := normalize(rawTarget)
	if normalized == "" {
		return nil, types.NewError(types.PROFILE_INVALID_TARGET, "target cannot be empty")
	}

	profile := &types.TargetProfile{
		RawTarget:            rawTarget,
		TargetType:           types.TargetTypeUnknown,
		ResolvedAddresses:    []string{},
		DetectedTechnologies: []string{},
		CreatedAt:            time.Now(),
	}

	for _, classify := range []func(context.Context, string, *types.TargetProfile) float64{
		p.classifyURL,
		p.classifyRange,
		p.classifyIP,
		p.classifyBinary,
		p.classifyHostname,
	} {
		confidence := classify(ctx, normalized, profile)
		// Strictly greater: ties are broken by classifier declaration order.
		if confidence > profile.ConfidenceScore {
			profile.ConfidenceScore = confidence
		}
	}

	p.logger.Debug("target analyzed",
		"target", rawTarget,
		"type", profile.TargetType,
		"confidence", profile.ConfidenceScore,
		"addresses", len(profile.ResolvedAddresses),
	)
	return profile, nil
}

// normalize trims whitespace and lower-cases the scheme and host portion
// of the target while leaving any path/query intact.
func normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		scheme := strings.ToLower(s[:i])
		rest := s[i+3:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			return scheme + "://" + strings.ToLower(rest[:j]) + rest[j:]
		}
		return scheme + "://" + strings.ToLower(rest)
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 && !strings.HasPrefix(s, "/") {
		return strings.ToLower(s[:i]) + s[i:]
	}
	if strings.HasPrefix(s, "/") {
		return s
	}
	return strings.ToLower(s)
}

func (p *Profiler) classifyURL(ctx context.Context, target string, profile *types.TargetProfile) float64 {
	if !strings.Contains(target, "://") {
		return 0
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return 0
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return 0
	}

	if profile.ConfidenceScore < 0.95 {
		profile.TargetType = types.TargetTypeWebApplication
		profile.DetectedTechnologies = detectTechnologies(u)
		host := u.Hostname()
		if ip := net.ParseIP(host); ip != nil {
			profile.ResolvedAddresses = []string{ip.String()}
		} else {
			profile.ResolvedAddresses = p.resolve(ctx, host, profile)
		}
	}
	return 0.95
}

func (p *Profiler) classifyRange(_ context.Context, target string, profile *types.TargetProfile) float64 {
	if _, ipnet, err := net.ParseCIDR(target); err == nil {
		if profile.ConfidenceScore < 0.95 {
			profile.TargetType = types.TargetTypeNetworkRange
			profile.ResolvedAddresses = []string{ipnet.String()}
		}
		return 0.95
	}
	// Dashed ranges like 10.0.0.1-50 are accepted with lower confidence.
	if i := strings.Index(target, "-"); i > 0 {
		if net.ParseIP(target[:i]) != nil {
			if profile.ConfidenceScore < 0.8 {
				profile.TargetType = types.TargetTypeNetworkRange
				profile.ResolvedAddresses = []string{target}
			}
			return 0.8
		}
	}
	return 0
}

func (p *Profiler) classifyIP(_ context.Context, target string, profile *types.TargetProfile) float64 {
	ip := net.ParseIP(target)
	if ip == nil {
		return 0
	}
	if profile.ConfidenceScore < 0.9 {
		profile.TargetType = types.TargetTypeHost
		profile.ResolvedAddresses = []string{ip.String()}
	}
	return 0.9
}

func (p *Profiler) classifyBinary(_ context.Context, target string, profile *types.TargetProfile) float64 {
	if !strings.Contains(target, "/") {
		return 0
	}
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	if profile.ConfidenceScore < 0.85 {
		profile.TargetType = types.TargetTypeBinary
		profile.ResolvedAddresses = []string{}
	}
	return 0.85
}

func (p *Profiler) classifyHostname(ctx context.Context, target string, profile *types.TargetProfile) float64 {
	if !hostnameRe.MatchString(target) || !strings.Contains(target, ".") {
		return 0
	}

	addrs := p.resolve(ctx, target, profile)
	hasNS := p.hasNameservers(ctx, target)

	targetType := types.TargetTypeHost
	if hasNS {
		targetType = types.TargetTypeDomain
	}

	confidence := 0.85
	if len(addrs) == 0 && !hasNS {
		// Syntax matches a hostname but nothing resolves. Still report the
		// classification so callers can decide, just with low confidence.
		confidence = 0.3
	}

	if profile.ConfidenceScore < confidence {
		profile.TargetType = targetType
		profile.ResolvedAddresses = addrs
	}
	return confidence
}

// resolve performs bounded name resolution, returning an empty slice on any
// failure. Failures are logged, never propagated.
func (p *Profiler) resolve(ctx context.Context, host string, profile *types.TargetProfile) []string {
	resolveCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addrs, err := p.resolver.LookupHost(resolveCtx, host)
	if err != nil {
		p.logger.Debug("resolution failed", "host", host, "error", err)
		return []string{}
	}
	return addrs
}

func (p *Profiler) hasNameservers(ctx context.Context, domain string) bool {
	nsCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	hosts, err := p.resolver.LookupNS(nsCtx, domain)
	return err == nil && len(hosts) > 0
}

// detectTechnologies derives coarse technology hints from URL shape.
// This is intentionally shallow; deep fingerprinting belongs to tools like
// whatweb, which the decision engine schedules when hints are thin.
func detectTechnologies(u *url.URL) []string {
	var techs []string
	if u.Scheme == "https" {
		techs = append(techs, "tls")
	}
	switch u.Port() {
	case "8080", "8000":
		techs = append(techs, "http-alt")
	case "8443":
		techs = append(techs, "https-alt")
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.Contains(path, "wp-"):
		techs = append(techs, "wordpress")
	case strings.HasSuffix(path, ".php"):
		techs = append(techs, "php")
	case strings.HasSuffix(path, ".jsp"):
		techs = append(techs, "java")
	case strings.HasSuffix(path, ".aspx"):
		techs = append(techs, "aspnet")
	}
	if techs == nil {
		techs = []string{}
	}
	return techs
}
