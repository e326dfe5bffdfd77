// Package engine wires the keystore, manager, and dispatcher into a
// single handle, replacing the process-wide KMS/manager singletons the
// original enclave process used with explicit, constructor-injected
// dependencies.
package engine

import (
	"log/slog"

	"github.com/passwallet/engine/internal/config"
	"github.com/passwallet/engine/internal/dispatcher"
	"github.com/passwallet/engine/internal/keystore"
	"github.com/passwallet/engine/internal/manager"
)

// Engine is the top-level handle a host process holds: one keystore, one
// wallet manager, and the dispatcher that routes commands between them.
type Engine struct {
	Keystore   *keystore.Keystore
	Manager    *manager.Manager
	Dispatcher *dispatcher.Dispatcher

	cfg    config.Config
	logger *slog.Logger
}

// New builds an Engine from cfg. The keystore's at-rest encryption key is
// derived from cfg.EngineSecret — callers must supply a real secret in
// production; Config.Default's "test_secret" is for local development
// only.
func New(cfg config.Config) *Engine {
	logger := slog.Default().With("component", "engine")

	ks := keystore.New([]byte(cfg.EngineSecret))
	mgr := manager.New(ks)
	disp := dispatcher.New(ks, mgr)

	logger.Info("engine initialized", "chain_id", cfg.ChainID)

	return &Engine{
		Keystore:   ks,
		Manager:    mgr,
		Dispatcher: disp,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleCommand decodes and dispatches a single JSON-encoded command,
// returning the JSON-encoded response.
func (e *Engine) HandleCommand(raw []byte) []byte {
	return e.Dispatcher.DispatchJSON(raw)
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Close releases engine resources. The in-memory keystore and manager
// hold nothing that needs explicit teardown; Close exists so callers
// that manage engine lifetimes don't need a special case for this
// backend.
func (e *Engine) Close() error {
	return nil
}
