package main

import (
	"reflect"
	"testing"

	"github.com/nerdprompt/np/internal/config"
)

func TestParseParamValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"0.7", 0.7},
		{"2", 2},
		{"100", 100},
		{"true", true},
		{"False", false},
		{"gpt-4", "gpt-4"},
		{"1.0", 1},
	}
	for _, tt := range tests {
		if got := parseParamValue(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseParamValue(%q) = %v (%T), want %v (%T)", tt.raw, got, got, tt.want, tt.want)
		}
	}
}

func TestApplyParamFlags(t *testing.T) {
	overrides := map[string]map[string]any{
		"openai/gpt-4": {"temperature": 0.2},
	}
	err := applyParamFlags(overrides, []string{
		"openai/gpt-4", "temperature", "0.9",
		"google/gemini-pro", "max_tokens", "2048",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := overrides["openai/gpt-4"]["temperature"]; got != 0.9 {
		t.Errorf("temperature = %v, want CLI value to win", got)
	}
	if got := overrides["google/gemini-pro"]["max_tokens"]; got != 2048 {
		t.Errorf("max_tokens = %v", got)
	}
}

func TestApplyParamFlags_RejectsPartialTriplet(t *testing.T) {
	if err := applyParamFlags(map[string]map[string]any{}, []string{"model", "key"}); err == nil {
		t.Error("expected an error for a partial MODEL KEY VALUE triplet")
	}
}

func TestEffectiveExcludes(t *testing.T) {
	got := effectiveExcludes([]string{"*.log", "custom/"}, []string{"*.tmp", "*.log"})

	seen := map[string]int{}
	for _, p := range got {
		seen[p]++
	}
	for _, want := range []string{".git/", config.OutputDirName + "/", "custom/", "*.tmp", "*.log"} {
		if seen[want] != 1 {
			t.Errorf("pattern %q appears %d times, want exactly once", want, seen[want])
		}
	}
}
