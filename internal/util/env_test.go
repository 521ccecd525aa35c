package util

import (
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"garbage", true, true},
		{"garbage", false, false},
	}

	for _, c := range cases {
		t.Setenv("SCREENBOT_TEST_BOOL", c.value)
		if got := ParseBoolEnv("SCREENBOT_TEST_BOOL", c.defaultValue); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.defaultValue, got, c.want)
		}
	}
}
