package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TargetType classifies the kind of target under analysis.
type TargetType string

const (
	TargetTypeWebApplication TargetType = "web_application"
	TargetTypeHost           TargetType = "host"
	TargetTypeNetworkRange   TargetType = "network_range"
	TargetTypeDomain         TargetType = "domain"
	TargetTypeBinary         TargetType = "binary"
	TargetTypeUnknown        TargetType = "unknown"
)

// String returns the string representation of TargetType.
func (t TargetType) String() string {
	return string(t)
}

// IsValid checks if the TargetType is a known value.
func (t TargetType) IsValid() bool {
	switch t {
	case TargetTypeWebApplication, TargetTypeHost, TargetTypeNetworkRange,
		TargetTypeDomain, TargetTypeBinary, TargetTypeUnknown:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (t TargetType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TargetType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	targetType := TargetType(str)
	if !targetType.IsValid() {
		return fmt.Errorf("invalid target type: %s", str)
	}
	*t = targetType
	return nil
}

// TargetProfile is the structured classification of a raw target string.
// Profiles are immutable once produced by the profiler and are owned by the
// caller that requested the analysis; they are never cached across requests
// since targets may change state between runs.
type TargetProfile struct {
	RawTarget            string     `json:"raw_target"`
	TargetType           TargetType `json:"target_type"`
	ResolvedAddresses    []string   `json:"resolved_addresses"`
	ConfidenceScore      float64    `json:"confidence_score"`
	DetectedTechnologies []string   `json:"detected_technologies"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Validate checks structural invariants on the profile.
func (p *TargetProfile) Validate() error {
	if p.RawTarget == "" {
		return fmt.Errorf("raw target cannot be empty")
	}
	if !p.TargetType.IsValid() {
		return fmt.Errorf("invalid target type: %s", p.TargetType)
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score %f outside [0,1]", p.ConfidenceScore)
	}
	return nil
}
