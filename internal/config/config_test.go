package config

import (
	"os"
	"testing"
)

func TestDefault_HasSaneValues(t *testing.T) {
	cfg := Default()
	if cfg.ChainID == 0 {
		t.Error("default chain id should be non-zero")
	}
	if cfg.DefaultGasPriceWei == 0 {
		t.Error("default gas price should be non-zero")
	}
}

func TestFromEnv_OverridesDefaults(t *testing.T) {
	os.Setenv("ENGINE_SECRET", "env-secret")
	os.Setenv("CHAIN_ID", "5")
	defer os.Unsetenv("ENGINE_SECRET")
	defer os.Unsetenv("CHAIN_ID")

	cfg := FromEnv()
	if cfg.EngineSecret != "env-secret" {
		t.Errorf("engine secret = %q, want env-secret", cfg.EngineSecret)
	}
	if cfg.ChainID != 5 {
		t.Errorf("chain id = %d, want 5", cfg.ChainID)
	}
}

func TestFromEnv_IgnoresMalformedOverride(t *testing.T) {
	os.Setenv("CHAIN_ID", "not-a-number")
	defer os.Unsetenv("CHAIN_ID")

	cfg := FromEnv()
	if cfg.ChainID != Default().ChainID {
		t.Errorf("malformed CHAIN_ID should fall back to default, got %d", cfg.ChainID)
	}
}
