package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeTarget canonicalizes a target string for key derivation and the
// target index: trimmed, lower-cased, trailing slash stripped. Matches the
// profiler's normalization closely enough that API callers and the
// coordinator agree on the same key space.
func NormalizeTarget(target string) string {
	t := strings.ToLower(strings.TrimSpace(target))
	return strings.TrimSuffix(t, "/")
}

// Key derives the deterministic cache key for (toolID, target, params).
// Parameters are canonicalized first (sorted keys, numeric types unified),
// so permuting a parameter map's insertion order or passing int vs float64
// for the same value yields the same key.
func Key(toolID, target string, params map[string]any) (string, error) {
	canonical, err := canonicalParams(params)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize parameters: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(toolID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeTarget(target)))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalParams produces a canonical JSON encoding of the parameter map.
// A marshal/unmarshal round trip collapses all numeric types to float64
// before the final marshal, whose map ordering is sorted by key.
func canonicalParams(params map[string]any) ([]byte, error) {
	if len(params) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}
