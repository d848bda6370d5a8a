package catalog

import (
	"github.com/hexstrike/hexstrike/internal/types"
)

// Builtin returns the compiled-in default catalog used when no catalog
// file is configured. Entries mirror the common security tool arsenal;
// base costs are relative runtime weights, not seconds.
func Builtin() *Catalog {
	c, err := New(builtinDescriptors())
	if err != nil {
		// The builtin table is validated by tests; a failure here is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return c
}

func builtinDescriptors() []ToolDescriptor {
	return []ToolDescriptor{
		{
			ID:              "nmap",
			Description:     "Network exploration and port discovery scanner",
			Binary:          "nmap",
			ApplicableTypes: []types.TargetType{types.TargetTypeHost, types.TargetTypeNetworkRange, types.TargetTypeDomain},
			BaseCost:        4,
			DefaultParams: map[string]any{
				"ports":  "1-1000",
				"timing": "T4",
			},
			RequiredParams:       []string{"ports"},
			RequiredCapabilities: []Capability{CapabilityNetworkScan, CapabilityPortScan},
			Keywords:             []string{"port", "discovery", "network", "scan", "service"},
			ProgressPattern:      `About ([0-9.]+)% done`,
		},
		{
			ID:              "masscan",
			Description:     "High-rate asynchronous port scanner for large ranges",
			Binary:          "masscan",
			ApplicableTypes: []types.TargetType{types.TargetTypeNetworkRange},
			BaseCost:        3,
			DefaultParams: map[string]any{
				"ports": "1-65535",
				"rate":  10000,
			},
			RequiredParams:       []string{"ports", "rate"},
			RequiredCapabilities: []Capability{CapabilityPortScan},
			Keywords:             []string{"port", "discovery", "fast", "range"},
			ProgressPattern:      `([0-9.]+)% done`,
		},
		{
			ID:              "subfinder",
			Description:     "Passive subdomain enumeration",
			Binary:          "subfinder",
			ApplicableTypes: []types.TargetType{types.TargetTypeDomain},
			BaseCost:        2,
			DefaultParams: map[string]any{
				"sources": "all",
			},
			RequiredCapabilities: []Capability{CapabilitySubdomainEnum, CapabilityDNSEnumeration},
			Keywords:             []string{"subdomain", "enumeration", "dns", "recon"},
		},
		{
			ID:              "amass",
			Description:     "In-depth DNS enumeration and attack surface mapping",
			Binary:          "amass",
			ApplicableTypes: []types.TargetType{types.TargetTypeDomain},
			BaseCost:        6,
			DefaultParams: map[string]any{
				"mode": "passive",
			},
			RequiredCapabilities: []Capability{CapabilitySubdomainEnum, CapabilityDNSEnumeration},
			Keywords:             []string{"subdomain", "dns", "enumeration", "surface"},
		},
		{
			ID:              "gobuster",
			Description:     "Directory and file brute-forcing for web servers",
			Binary:          "gobuster",
			ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication},
			BaseCost:        3,
			DefaultParams: map[string]any{
				"wordlist": "common.txt",
				"threads":  10,
			},
			RequiredParams:       []string{"wordlist"},
			RequiredCapabilities: []Capability{CapabilityWebFuzzing},
			Keywords:             []string{"directory", "brute", "web", "fuzzing", "hidden"},
			ProgressPattern:      `Progress: \d+ / \d+ \(([0-9.]+)%\)`,
		},
		{
			ID:              "ffuf",
			Description:     "Fast web fuzzer for content discovery and parameter mining",
			Binary:          "ffuf",
			ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication},
			BaseCost:        3,
			DefaultParams: map[string]any{
				"wordlist": "common.txt",
				"threads":  40,
			},
			RequiredParams:       []string{"wordlist"},
			RequiredCapabilities: []Capability{CapabilityWebFuzzing},
			Keywords:             []string{"fuzzing", "web", "discovery", "parameter"},
		},
		{
			ID:              "nikto",
			Description:     "Web server vulnerability scanner",
			Binary:          "nikto",
			ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication},
			BaseCost:        5,
			DefaultParams: map[string]any{
				"tuning": "default",
			},
			RequiredCapabilities: []Capability{CapabilityWebScan, CapabilityVulnScan},
			Keywords:             []string{"web", "vulnerability", "scan", "server", "check"},
		},
		{
			ID:              "nuclei",
			Description:     "Template-based vulnerability scanner",
			Binary:          "nuclei",
			ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication, types.TargetTypeHost, types.TargetTypeDomain},
			BaseCost:        4,
			DefaultParams: map[string]any{
				"severity": "medium,high,critical",
			},
			RequiredCapabilities: []Capability{CapabilityVulnScan, CapabilityTechFingerprint},
			Keywords:             []string{"vulnerability", "cve", "template", "scan", "quick"},
			ProgressPattern:      `\[([0-9.]+)%\]`,
		},
		{
			ID:              "sqlmap",
			Description:     "Automated SQL injection detection and exploitation",
			Binary:          "sqlmap",
			ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication},
			BaseCost:        7,
			DefaultParams: map[string]any{
				"level": 1,
				"risk":  1,
			},
			RequiredParams:       []string{"level", "risk"},
			RequiredCapabilities: []Capability{CapabilitySQLInjection, CapabilityVulnScan},
			Keywords:             []string{"sql", "injection", "database", "exploit"},
		},
		{
			ID:              "hydra",
			Description:     "Online password brute-force against network services",
			Binary:          "hydra",
			ApplicableTypes: []types.TargetType{types.TargetTypeHost},
			BaseCost:        8,
			DefaultParams: map[string]any{
				"wordlist": "rockyou.txt",
				"tasks":    4,
			},
			RequiredParams:       []string{"wordlist", "service"},
			RequiredCapabilities: []Capability{CapabilityPasswordAttack},
			Keywords:             []string{"password", "brute", "crack", "login", "credential"},
		},
		{
			ID:              "binwalk",
			Description:     "Firmware and binary composition analysis",
			Binary:          "binwalk",
			ApplicableTypes: []types.TargetType{types.TargetTypeBinary},
			BaseCost:        2,
			DefaultParams: map[string]any{
				"extract": false,
			},
			RequiredCapabilities: []Capability{CapabilityBinaryAnalysis},
			Keywords:             []string{"binary", "firmware", "analysis", "extract"},
		},
		{
			ID:              "whatweb",
			Description:     "Web technology fingerprinting",
			Binary:          "whatweb",
			ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication, types.TargetTypeDomain},
			BaseCost:        1,
			DefaultParams: map[string]any{
				"aggression": 1,
			},
			RequiredCapabilities: []Capability{CapabilityTechFingerprint},
			Keywords:             []string{"fingerprint", "technology", "cms", "web", "quick", "check"},
		},
	}
}
