package engine

import (
	"encoding/json"
	"testing"

	"github.com/passwallet/engine/internal/config"
	"github.com/passwallet/engine/internal/dispatcher"
)

func TestNew_WiresDependencies(t *testing.T) {
	e := New(config.Default())
	if e.Keystore == nil || e.Manager == nil || e.Dispatcher == nil {
		t.Fatal("expected all engine dependencies to be wired")
	}
}

func TestHandleCommand_RoundTrips(t *testing.T) {
	e := New(config.Default())
	raw, _ := json.Marshal(dispatcher.Command{Type: dispatcher.CmdKeygen})

	out := e.HandleCommand(raw)
	var resp dispatcher.Response
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error: %s", resp.Error)
	}
}

func TestTwoEngines_AreIndependent(t *testing.T) {
	e1 := New(config.Default())
	e2 := New(config.Default())

	raw, _ := json.Marshal(dispatcher.Command{Type: dispatcher.CmdCreatePassWallet, Name: "w", Owner: "o"})
	out1 := e1.HandleCommand(raw)
	var resp1 dispatcher.Response
	json.Unmarshal(out1, &resp1)
	if !resp1.Success {
		t.Fatalf("engine 1 create wallet failed: %s", resp1.Error)
	}
	data := resp1.Data.(map[string]interface{})
	walletAddress := data["wallet_address"].(string)

	listRaw, _ := json.Marshal(dispatcher.Command{Type: dispatcher.CmdGetPassWalletState, WalletAddress: walletAddress})
	out2 := e2.HandleCommand(listRaw)
	var resp2 dispatcher.Response
	json.Unmarshal(out2, &resp2)
	if resp2.Success {
		t.Fatal("a wallet created on one engine should not be visible on another")
	}
}
