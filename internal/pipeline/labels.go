package pipeline

import (
	"fmt"
	"strings"
)

// LabelMapper turns a user-facing route label (e.g. "S3") into the route_id used by the feed.
type LabelMapper func(label string) string

// Label mapping modes accepted by NewLabelMapper
const (
	LabelModeIdentity = "identity"
	LabelModePrefix   = "prefix"
	LabelModeTable    = "table"
)

// IdentityLabels uses the label as route_id
func IdentityLabels(label string) string {
	return label
}

// StripPrefix drops the first n characters of the label (a line-family prefix such as "S").
// Labels not longer than n map to themselves.
func StripPrefix(n int) LabelMapper {
	return func(label string) string {
		runes := []rune(label)
		if n <= 0 || len(runes) <= n {
			return label
		}
		return string(runes[n:])
	}
}

// LabelTable looks labels up in table; unknown labels map to themselves.
func LabelTable(table map[string]string) LabelMapper {
	copied := make(map[string]string, len(table))
	for k, v := range table {
		copied[k] = v
	}
	return func(label string) string {
		if id, ok := copied[label]; ok {
			return id
		}
		return label
	}
}

// NewLabelMapper builds the mapper for a configured mode
func NewLabelMapper(mode string, prefixLength int, table map[string]string) (LabelMapper, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", LabelModeIdentity:
		return IdentityLabels, nil
	case LabelModePrefix:
		if prefixLength <= 0 {
			return nil, fmt.Errorf("prefix label mapping needs a positive prefix length, got %d", prefixLength)
		}
		return StripPrefix(prefixLength), nil
	case LabelModeTable:
		if len(table) == 0 {
			return nil, fmt.Errorf("table label mapping needs at least one entry")
		}
		return LabelTable(table), nil
	default:
		return nil, fmt.Errorf("unknown label mapping mode: %s", mode)
	}
}
