package main

import (
	"strings"
	"testing"

	"github.com/ordolabs/ordo/internal/config"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	got := truncate(strings.Repeat("x", 100), 10)
	if got != strings.Repeat("x", 10)+"..." {
		t.Errorf("truncate long = %q", got)
	}
}

func TestConfigValuesMasksAPIKey(t *testing.T) {
	cfg := &config.Config{}
	for _, kv := range configValues(cfg) {
		if kv[0] == "anthropic.api_key" && kv[1] != "(not set)" {
			t.Errorf("unset api key displayed as %q", kv[1])
		}
	}

	cfg.Anthropic.APIKey = "sk-secret"
	for _, kv := range configValues(cfg) {
		if kv[0] == "anthropic.api_key" {
			if kv[1] != "****" {
				t.Errorf("api key displayed as %q", kv[1])
			}
			if strings.Contains(kv[1], "secret") {
				t.Error("api key leaked in config output")
			}
		}
	}
}
