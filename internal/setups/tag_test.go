package setups

import (
	"errors"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		prefix   Prefix
		setupID  string
		legIndex int
		want     string
	}{
		{"multi leg first", PrefixMultiLeg, "20250103-0001", 1, "ACE_20250103-0001_1"},
		{"multi leg third", PrefixMultiLeg, "20250103-0001", 3, "ACE_20250103-0001_3"},
		{"trailing", PrefixTrailing, "20250103-0007", 1, "TSL_20250103-0007_1"},
		{"exit signal", PrefixExitSignal, "20250104-0012", 2, "EXIT_20250104-0012_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeTag(tt.prefix, tt.setupID, tt.legIndex)
			if err != nil {
				t.Fatalf("EncodeTag() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeTag() = %q, want %q", got, tt.want)
			}

			parsed, err := ParseTag(got)
			if err != nil {
				t.Fatalf("ParseTag(%q) error = %v", got, err)
			}
			if parsed.Prefix != tt.prefix || parsed.SetupID != tt.setupID || parsed.LegIndex != tt.legIndex {
				t.Errorf("ParseTag(%q) = %+v", got, parsed)
			}
		})
	}
}

func TestEncodeTagInvalid(t *testing.T) {
	tests := []struct {
		name     string
		prefix   Prefix
		setupID  string
		legIndex int
	}{
		{"unknown prefix", Prefix("FOO"), "20250103-0001", 1},
		{"underscore in setup id", PrefixMultiLeg, "2025_0001", 1},
		{"empty setup id", PrefixMultiLeg, "", 1},
		{"zero leg index", PrefixMultiLeg, "20250103-0001", 0},
		{"negative leg index", PrefixMultiLeg, "20250103-0001", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeTag(tt.prefix, tt.setupID, tt.legIndex); err == nil {
				t.Errorf("EncodeTag() expected error, got nil")
			}
		})
	}
}

func TestParseTagUnparseable(t *testing.T) {
	tests := []struct {
		name string
		tag  string
	}{
		{"empty", ""},
		{"no separators", "ACE"},
		{"one separator", "ACE_20250103-0001"},
		{"too many separators", "ACE_2025_0103_0"},
		{"unknown prefix", "XYZ_20250103-0001_1"},
		{"empty setup id", "ACE__1"},
		{"non numeric leg", "ACE_20250103-0001_a"},
		{"zero leg", "ACE_20250103-0001_0"},
		{"negative leg", "ACE_20250103-0001_-1"},
		{"manual order comment", "manual hedge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTag(tt.tag)
			if !errors.Is(err, ErrUnparseableTag) {
				t.Errorf("ParseTag(%q) error = %v, want ErrUnparseableTag", tt.tag, err)
			}
		})
	}
}
