package server

import (
	"testing"
	"time"
)

// TestCommandTable verifies the closed command set: exactly the documented
// commands exist and carry the expected authorization flags.
func TestCommandTable(t *testing.T) {
	expected := map[string]struct {
		adminOnly bool
		targeted  bool
	}{
		"/kick":  {adminOnly: true, targeted: true},
		"/ban":   {adminOnly: true, targeted: true},
		"/unban": {adminOnly: true, targeted: true},
		"/mute":  {adminOnly: true, targeted: true},
		"/help":  {},
	}

	if len(commandTable) != len(expected) {
		t.Errorf("command table has %d entries, want %d", len(commandTable), len(expected))
	}

	for name, want := range expected {
		cmd, ok := commandTable[name]
		if !ok {
			t.Errorf("command %s missing from table", name)
			continue
		}
		if cmd.adminOnly != want.adminOnly {
			t.Errorf("%s adminOnly = %v, want %v", name, cmd.adminOnly, want.adminOnly)
		}
		if cmd.targeted != want.targeted {
			t.Errorf("%s targeted = %v, want %v", name, cmd.targeted, want.targeted)
		}
		if cmd.run == nil {
			t.Errorf("%s has no handler", name)
		}
		if cmd.usage == "" || cmd.help == "" {
			t.Errorf("%s lacks usage or help text", name)
		}
	}
}

// TestParseMuteDuration verifies both accepted spellings and the rejection
// of garbage and non-positive values.
func TestParseMuteDuration(t *testing.T) {
	valid := []struct {
		in   string
		want time.Duration
	}{
		{"60", time.Minute},
		{"1", time.Second},
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"1h", time.Hour},
	}
	for _, tc := range valid {
		got, err := parseMuteDuration(tc.in)
		if err != nil {
			t.Errorf("parseMuteDuration(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseMuteDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"", "abc", "-5", "-2m", "0", "0s"} {
		if _, err := parseMuteDuration(in); err == nil {
			t.Errorf("parseMuteDuration(%q) succeeded, want error", in)
		}
	}
}
