package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"ON", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"OFF", true, false},
		{" true ", false, true},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("REPLYFLOW_TEST_BOOL", tc.value)
			if got := ParseBoolEnv("REPLYFLOW_TEST_BOOL", tc.def); got != tc.expected {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.expected)
			}
		})
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("REPLYFLOW_TEST_VAL", "configured")
	if got := EnvOrDefault("REPLYFLOW_TEST_VAL", "fallback"); got != "configured" {
		t.Errorf("expected configured value, got %q", got)
	}

	t.Setenv("REPLYFLOW_TEST_VAL", "   ")
	if got := EnvOrDefault("REPLYFLOW_TEST_VAL", "fallback"); got != "fallback" {
		t.Errorf("blank values fall back, got %q", got)
	}

	t.Setenv("REPLYFLOW_TEST_VAL", "")
	if got := EnvOrDefault("REPLYFLOW_TEST_VAL", "fallback"); got != "fallback" {
		t.Errorf("unset values fall back, got %q", got)
	}
}
