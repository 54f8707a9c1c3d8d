// Package setups groups broker positions into managed multi-leg setups
// using the tag contract "<Prefix>_<setup_id>_<leg_index>" carried on
// every order the bot opens.
package setups

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix identifies which strategy family owns a setup.
type Prefix string

const (
	// PrefixMultiLeg tags progressive, drawdown-layering and hybrid setups.
	PrefixMultiLeg Prefix = "ACE"
	// PrefixTrailing tags single-leg trailing-stop setups.
	PrefixTrailing Prefix = "TSL"
	// PrefixExitSignal tags signal-managed single positions with re-entry.
	PrefixExitSignal Prefix = "EXIT"
)

// ErrUnparseableTag marks position tags that do not follow the
// prefix_setupID_legIndex contract. Such positions are never touched.
var ErrUnparseableTag = errors.New("unparseable position tag")

var knownPrefixes = map[Prefix]bool{
	PrefixMultiLeg:   true,
	PrefixTrailing:   true,
	PrefixExitSignal: true,
}

// Tag is the decoded form of a position tag.
type Tag struct {
	Prefix   Prefix
	SetupID  string
	LegIndex int
}

// EncodeTag builds the wire tag for one leg of a setup. Setup IDs must
// not contain underscores since underscore is the field separator.
// Leg indexes are 1-based.
func EncodeTag(prefix Prefix, setupID string, legIndex int) (string, error) {
	if !knownPrefixes[prefix] {
		return "", fmt.Errorf("unknown tag prefix %q", prefix)
	}
	if setupID == "" || strings.Contains(setupID, "_") {
		return "", fmt.Errorf("invalid setup id %q", setupID)
	}
	if legIndex < 1 {
		return "", fmt.Errorf("invalid leg index %d", legIndex)
	}
	return fmt.Sprintf("%s_%s_%d", prefix, setupID, legIndex), nil
}

// ParseTag decodes a position tag. Any malformed tag returns
// ErrUnparseableTag so the caller can route the position to the
// unmanaged bucket.
func ParseTag(tag string) (Tag, error) {
	parts := strings.Split(tag, "_")
	if len(parts) != 3 {
		return Tag{}, fmt.Errorf("%w: %q", ErrUnparseableTag, tag)
	}

	prefix := Prefix(parts[0])
	if !knownPrefixes[prefix] {
		return Tag{}, fmt.Errorf("%w: unknown prefix in %q", ErrUnparseableTag, tag)
	}

	if parts[1] == "" {
		return Tag{}, fmt.Errorf("%w: empty setup id in %q", ErrUnparseableTag, tag)
	}

	legIndex, err := strconv.Atoi(parts[2])
	if err != nil || legIndex < 1 {
		return Tag{}, fmt.Errorf("%w: bad leg index in %q", ErrUnparseableTag, tag)
	}

	return Tag{
		Prefix:   prefix,
		SetupID:  parts[1],
		LegIndex: legIndex,
	}, nil
}
