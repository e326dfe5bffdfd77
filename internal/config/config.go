// Package config loads the engine's launch configuration: the secret
// the keystore derives its at-rest encryption key from, default gas
// pricing, and broadcast/timeout tuning.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every configurable parameter for the engine.
type Config struct {
	// EngineSecret seeds the keystore's AES-256 encryption key. Must be
	// kept out of source control; FromEnv reads it from ENGINE_SECRET.
	EngineSecret string

	// ChainID is the EIP-155 chain id the engine logs at start-up. The
	// manager does not read it: withdrawals are signed under the chain id
	// carried by each WithdrawToExternal command.
	ChainID uint64

	// Default gas pricing values. The manager does not read these
	// fields: a withdrawal command that omits explicit overrides gets the
	// manager's built-in defaults (20 gwei; 21000 gas for ETH, 60000 for
	// ERC-20).
	DefaultGasPriceWei   uint64
	DefaultETHGasLimit   uint64
	DefaultERC20GasLimit uint64

	// BroadcastMaxRetries and ContextTimeout are loaded and carried here
	// only; no package in this module reads them, and the engine itself
	// neither broadcasts nor retries transactions.
	BroadcastMaxRetries int
	ContextTimeout      time.Duration
}

// Default returns a Config populated with sane defaults, suitable for
// local development and tests.
func Default() Config {
	return Config{
		EngineSecret:         "test_secret",
		ChainID:              1,
		DefaultGasPriceWei:   20_000_000_000,
		DefaultETHGasLimit:   21_000,
		DefaultERC20GasLimit: 60_000,
		BroadcastMaxRetries:  3,
		ContextTimeout:       15 * time.Second,
	}
}

// FromEnv returns a Config populated from a .env file (if present) and
// environment variables, falling back to Default for unset values.
func FromEnv() Config {
	_ = godotenv.Load()
	cfg := Default()

	if v := os.Getenv("ENGINE_SECRET"); v != "" {
		cfg.EngineSecret = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.ChainID = n
		}
	}
	if v := os.Getenv("DEFAULT_GAS_PRICE_WEI"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.DefaultGasPriceWei = n
		}
	}
	if v := os.Getenv("DEFAULT_ETH_GAS_LIMIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.DefaultETHGasLimit = n
		}
	}
	if v := os.Getenv("DEFAULT_ERC20_GAS_LIMIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.DefaultERC20GasLimit = n
		}
	}
	if v := os.Getenv("BROADCAST_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BroadcastMaxRetries = n
		}
	}
	if v := os.Getenv("CONTEXT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ContextTimeout = d
		}
	}

	return cfg
}
