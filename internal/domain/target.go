package domain

import (
	"fmt"
	"strings"
)

// TargetID identifies the civic entity sentiment is recorded against:
// a deck, optionally narrowed to a module and a component within it.
// Targets are referenced by submissions, never owned by them.
type TargetID struct {
	Group string
	Sub   string
	Item  string
}

// NewTargetID builds a TargetID from its parts. Empty sub/item narrow nothing.
func NewTargetID(group, sub, item string) TargetID {
	return TargetID{Group: group, Sub: sub, Item: item}
}

// String renders the canonical form "group/sub/item", omitting empty tails.
func (t TargetID) String() string {
	switch {
	case t.Item != "":
		return t.Group + "/" + t.Sub + "/" + t.Item
	case t.Sub != "":
		return t.Group + "/" + t.Sub
	default:
		return t.Group
	}
}

// Category returns the impact-weighting key for this target (its deck group).
func (t TargetID) Category() string {
	return t.Group
}

// IsZero reports whether the target is entirely unset.
func (t TargetID) IsZero() bool {
	return t.Group == "" && t.Sub == "" && t.Item == ""
}

// ParseTargetID parses the canonical "group[/sub[/item]]" form.
func ParseTargetID(s string) (TargetID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TargetID{}, fmt.Errorf("empty target id")
	}
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return TargetID{}, fmt.Errorf("target id %q has more than three segments", s)
	}
	for i, p := range parts {
		if p == "" {
			return TargetID{}, fmt.Errorf("target id %q has an empty segment at position %d", s, i)
		}
	}
	t := TargetID{Group: parts[0]}
	if len(parts) > 1 {
		t.Sub = parts[1]
	}
	if len(parts) > 2 {
		t.Item = parts[2]
	}
	return t, nil
}

// MarshalText implements encoding.TextMarshaler so TargetID can key JSON maps.
func (t TargetID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TargetID) UnmarshalText(b []byte) error {
	parsed, err := ParseTargetID(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
