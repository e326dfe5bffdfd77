package manager

import (
	"sync"
	"testing"

	"github.com/passwallet/engine/internal/keystore"
	"github.com/passwallet/engine/internal/walleterr"
	"github.com/passwallet/engine/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ks := keystore.New([]byte("test engine secret"))
	return New(ks)
}

func fundWallet(t *testing.T, m *Manager, walletAddress, subaccountID, assetID string, amount uint64) {
	t.Helper()
	if err := m.AddSubaccount(walletAddress, models.Subaccount{ID: subaccountID, Label: subaccountID, Address: walletAddress}); err != nil {
		t.Fatal(err)
	}
	depositID := subaccountID + "-" + assetID + "-seed"
	if err := m.InboxDeposit(walletAddress, models.Deposit{AssetID: assetID, Amount: amount, DepositID: depositID}); err != nil {
		t.Fatal(err)
	}
	if err := m.ClaimInbox(walletAddress, depositID, subaccountID); err != nil {
		t.Fatal(err)
	}
}

func TestCreateWallet_RegistersEmptyWallet(t *testing.T) {
	m := newTestManager(t)
	addr, err := m.CreateWallet("wallet-1", "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	state, err := m.GetWalletState(addr)
	if err != nil {
		t.Fatal(err)
	}
	if state.Nonce != 0 || state.InboxCount != 0 {
		t.Errorf("unexpected initial state: %+v", state)
	}
}

func TestGetWallet_NotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetWallet("0xdoesnotexist00000000000000000000000000")
	if !walleterr.Is(err, walleterr.KindWalletNotFound) {
		t.Fatalf("expected wallet not found error, got %v", err)
	}
}

func TestWithdrawToExternal_ETH_SignsAndQueues(t *testing.T) {
	m := newTestManager(t)
	addr, err := m.CreateWallet("w", "owner")
	if err != nil {
		t.Fatal(err)
	}
	m.AddAsset(addr, "eth", models.Asset{TokenType: models.TokenETH, Symbol: "ETH", Decimals: 18})
	fundWallet(t, m, addr, "sub-1", "eth", 1000)

	pending, err := m.WithdrawToExternal(addr, "sub-1", "eth", 100, "0x00000000000000000000000000000000000000aa", WithdrawalParams{ChainID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if pending.SignedRawTransaction == "" {
		t.Error("expected a non-empty signed transaction")
	}
	if pending.Nonce != 1 {
		t.Errorf("global nonce = %d, want 1", pending.Nonce)
	}

	balance, err := m.GetBalance(addr, "sub-1", "eth")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 900 {
		t.Errorf("balance after withdrawal = %d, want 900", balance)
	}

	queue := m.GetOutboxQueue()
	if len(queue) != 1 {
		t.Fatalf("expected 1 queued withdrawal, got %d", len(queue))
	}

	m.RemoveFromOutbox(pending.Nonce)
	if len(m.GetOutboxQueue()) != 0 {
		t.Error("expected outbox to be empty after removal")
	}
}

func TestWithdrawToExternal_ERC20_SignsAndQueues(t *testing.T) {
	m := newTestManager(t)
	addr, err := m.CreateWallet("w", "owner")
	if err != nil {
		t.Fatal(err)
	}
	m.AddAsset(addr, "usdc", models.Asset{
		TokenType:       models.TokenERC20,
		ContractAddress: "0x0000000000000000000000000000000000000bbb",
		Symbol:          "USDC",
		Decimals:        6,
	})
	fundWallet(t, m, addr, "sub-1", "usdc", 5000)

	pending, err := m.WithdrawToExternal(addr, "sub-1", "usdc", 250, "0x00000000000000000000000000000000000000aa", WithdrawalParams{ChainID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if pending.SignedRawTransaction == "" {
		t.Error("expected a non-empty signed transaction")
	}
}

func TestWithdrawToExternal_RejectsUnsupportedAssetType(t *testing.T) {
	m := newTestManager(t)
	addr, err := m.CreateWallet("w", "owner")
	if err != nil {
		t.Fatal(err)
	}
	m.AddAsset(addr, "nft", models.Asset{TokenType: models.TokenERC721, Symbol: "NFT"})
	fundWallet(t, m, addr, "sub-1", "nft", 1)

	_, err = m.WithdrawToExternal(addr, "sub-1", "nft", 1, "0x00000000000000000000000000000000000000aa", WithdrawalParams{ChainID: 1})
	if !walleterr.Is(err, walleterr.KindUnsupportedAssetType) {
		t.Fatalf("expected unsupported asset type error, got %v", err)
	}
}

func TestWithdrawToExternal_RejectedWithdrawalDoesNotConsumeGlobalNonce(t *testing.T) {
	m := newTestManager(t)
	addr, err := m.CreateWallet("w", "owner")
	if err != nil {
		t.Fatal(err)
	}
	m.AddAsset(addr, "nft", models.Asset{TokenType: models.TokenERC721, Symbol: "NFT"})
	m.AddAsset(addr, "eth", models.Asset{TokenType: models.TokenETH, Symbol: "ETH", Decimals: 18})
	fundWallet(t, m, addr, "sub-1", "nft", 1)
	fundWallet(t, m, addr, "sub-1", "eth", 1000)

	_, err = m.WithdrawToExternal(addr, "sub-1", "nft", 1, "0x00000000000000000000000000000000000000aa", WithdrawalParams{ChainID: 1})
	if !walleterr.Is(err, walleterr.KindUnsupportedAssetType) {
		t.Fatalf("expected unsupported asset type error, got %v", err)
	}

	pending, err := m.WithdrawToExternal(addr, "sub-1", "eth", 100, "0x00000000000000000000000000000000000000aa", WithdrawalParams{ChainID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if pending.Nonce != 1 {
		t.Errorf("global nonce = %d, want 1 (the rejected withdrawal above must not have consumed a sequence number)", pending.Nonce)
	}

	balance, err := m.GetBalance(addr, "sub-1", "nft")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1 {
		t.Errorf("nft balance after rejected withdrawal = %d, want unchanged 1", balance)
	}
}

func TestWithdrawToExternal_RejectsInvalidDestination(t *testing.T) {
	m := newTestManager(t)
	addr, err := m.CreateWallet("w", "owner")
	if err != nil {
		t.Fatal(err)
	}
	m.AddAsset(addr, "eth", models.Asset{TokenType: models.TokenETH, Symbol: "ETH", Decimals: 18})
	fundWallet(t, m, addr, "sub-1", "eth", 1000)

	_, err = m.WithdrawToExternal(addr, "sub-1", "eth", 100, "not-an-address", WithdrawalParams{ChainID: 1})
	if !walleterr.Is(err, walleterr.KindInvalidAddress) {
		t.Fatalf("expected invalid address error, got %v", err)
	}
}

// TestWithdrawToExternal_ConcurrentAcrossWallets exercises 10 concurrent
// withdrawals spread across 3 wallets: each must receive a strictly
// increasing, globally unique nonce, and each wallet's own nonce must
// increase once per withdrawal against it.
func TestWithdrawToExternal_ConcurrentAcrossWallets(t *testing.T) {
	m := newTestManager(t)

	const numWallets = 3
	const numWithdrawals = 10
	addrs := make([]string, numWallets)
	for i := 0; i < numWallets; i++ {
		addr, err := m.CreateWallet("w", "owner")
		if err != nil {
			t.Fatal(err)
		}
		m.AddAsset(addr, "eth", models.Asset{TokenType: models.TokenETH, Symbol: "ETH", Decimals: 18})
		fundWallet(t, m, addr, "sub-1", "eth", 1_000_000)
		addrs[i] = addr
	}

	var wg sync.WaitGroup
	nonces := make([]uint64, numWithdrawals)
	errs := make([]error, numWithdrawals)
	for i := 0; i < numWithdrawals; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := addrs[i%numWallets]
			pending, err := m.WithdrawToExternal(addr, "sub-1", "eth", 10, "0x00000000000000000000000000000000000000aa", WithdrawalParams{ChainID: 1})
			nonces[i] = pending.Nonce
			errs[i] = err
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("withdrawal %d failed: %v", i, err)
		}
		if seen[nonces[i]] {
			t.Fatalf("global nonce %d was issued more than once", nonces[i])
		}
		seen[nonces[i]] = true
	}
	for n := uint64(1); n <= numWithdrawals; n++ {
		if !seen[n] {
			t.Errorf("global nonce %d was never issued", n)
		}
	}

	perWallet := make(map[string]uint64)
	for i := 0; i < numWithdrawals; i++ {
		perWallet[addrs[i%numWallets]]++
	}
	for _, addr := range addrs {
		state, err := m.GetWalletState(addr)
		if err != nil {
			t.Fatal(err)
		}
		if state.Nonce != perWallet[addr] {
			t.Errorf("wallet %s nonce = %d, want %d (one per withdrawal)", addr, state.Nonce, perWallet[addr])
		}
	}
}
