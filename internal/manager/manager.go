// Package manager owns the wallet registry and the one operation that
// spans wallet boundaries: signing and queuing an external withdrawal
// under the engine's global nonce sequencing.
package manager

import (
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/passwallet/engine/internal/keystore"
	"github.com/passwallet/engine/internal/ledger"
	"github.com/passwallet/engine/internal/txcodec"
	"github.com/passwallet/engine/internal/walleterr"
	"github.com/passwallet/engine/pkg/models"
)

const (
	defaultGasPriceWei   = 20_000_000_000 // 20 gwei
	defaultETHGasLimit   = 21_000
	defaultERC20GasLimit = 60_000
)

// Manager holds every wallet in the engine and serializes external
// withdrawals behind a single global nonce, matching the lock hierarchy
// global_nonce -> wallets map -> outbox_queue -> keystore.
type Manager struct {
	keystore *keystore.Keystore

	globalNonceMu sync.Mutex
	globalNonce   uint64

	walletsMu sync.RWMutex
	wallets   map[string]*ledger.Wallet

	outboxMu    sync.Mutex
	outboxQueue []models.PendingWithdrawal
}

// New builds a Manager backed by ks for key generation and signing.
func New(ks *keystore.Keystore) *Manager {
	return &Manager{
		keystore: ks,
		wallets:  make(map[string]*ledger.Wallet),
	}
}

// CreateWallet generates a fresh Ethereum account via the keystore and
// registers an empty wallet state under its address.
func (m *Manager) CreateWallet(name, owner string) (string, error) {
	account, err := m.keystore.Keygen()
	if err != nil {
		return "", err
	}

	w := ledger.New(account.Address, name, owner)
	m.walletsMu.Lock()
	m.wallets[strings.ToLower(account.Address)] = w
	m.walletsMu.Unlock()

	return account.Address, nil
}

// GetWallet returns the wallet registered at address.
func (m *Manager) GetWallet(address string) (*ledger.Wallet, error) {
	m.walletsMu.RLock()
	defer m.walletsMu.RUnlock()
	w, ok := m.wallets[strings.ToLower(address)]
	if !ok {
		return nil, walleterr.New(walleterr.KindWalletNotFound, "wallet %s not found", address)
	}
	return w, nil
}

// ListWallets returns every registered wallet address.
func (m *Manager) ListWallets() []string {
	m.walletsMu.RLock()
	defer m.walletsMu.RUnlock()
	out := make([]string, 0, len(m.wallets))
	for addr := range m.wallets {
		out = append(out, addr)
	}
	return out
}

// SignMessage signs domain+":"+message with wallet_address's key.
func (m *Manager) SignMessage(walletAddress, domain, message string) (string, error) {
	if _, err := m.GetWallet(walletAddress); err != nil {
		return "", err
	}
	fullMessage := domain + ":" + message
	return m.keystore.SignMessage(walletAddress, fullMessage)
}

// InboxDeposit records an external deposit against walletAddress.
func (m *Manager) InboxDeposit(walletAddress string, deposit models.Deposit) error {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return err
	}
	return w.InboxDeposit(deposit)
}

// ClaimInbox claims a deposit into a subaccount.
func (m *Manager) ClaimInbox(walletAddress, depositID, subaccountID string) error {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return err
	}
	return w.ClaimInbox(depositID, subaccountID)
}

// InternalTransfer moves balance between two subaccounts of the same
// wallet.
func (m *Manager) InternalTransfer(walletAddress, assetID string, amount uint64, fromSubaccount, toSubaccount string) error {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return err
	}
	return w.InternalTransfer(assetID, amount, fromSubaccount, toSubaccount)
}

// Withdraw queues a legacy, unsigned outbox entry. See
// WithdrawToExternal for the variant that builds and signs a real
// transaction.
func (m *Manager) Withdraw(walletAddress, assetID string, amount uint64, subaccountID, destination string) error {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return err
	}
	return w.Withdraw(assetID, amount, subaccountID, destination)
}

// ProcessOutbox drains walletAddress's legacy outbox queue.
func (m *Manager) ProcessOutbox(walletAddress string) ([]models.OutboxEntry, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	return w.ProcessOutbox(), nil
}

// AddAsset registers an asset against a wallet.
func (m *Manager) AddAsset(walletAddress, assetID string, asset models.Asset) error {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return err
	}
	w.AddAsset(assetID, asset)
	return nil
}

// AddSubaccount registers a subaccount against a wallet.
func (m *Manager) AddSubaccount(walletAddress string, sub models.Subaccount) error {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return err
	}
	w.AddSubaccount(sub)
	return nil
}

// GetBalance returns the balance of assetID held by subaccountID.
func (m *Manager) GetBalance(walletAddress, subaccountID, assetID string) (uint64, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return 0, err
	}
	return w.GetBalance(subaccountID, assetID), nil
}

// GetSubaccountBalances returns every non-zero balance for subaccountID.
func (m *Manager) GetSubaccountBalances(walletAddress, subaccountID string) (map[string]uint64, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	return w.GetSubaccountBalances(subaccountID), nil
}

// GetWalletState returns the compact summary view of a wallet.
func (m *Manager) GetWalletState(walletAddress string) (models.WalletSummary, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return models.WalletSummary{}, err
	}
	return w.Summary(), nil
}

// GetWalletAssets returns every registered asset with its aggregate and
// per-subaccount balances.
func (m *Manager) GetWalletAssets(walletAddress string) (map[string]models.AssetSummary, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	return w.GetAssets(), nil
}

// GetProvenanceLog returns the full provenance history of a wallet.
func (m *Manager) GetProvenanceLog(walletAddress string) ([]models.ProvenanceRecord, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	return w.GetProvenanceLog(), nil
}

// GetProvenanceByAsset filters a wallet's provenance history by asset.
func (m *Manager) GetProvenanceByAsset(walletAddress, assetID string) ([]models.ProvenanceRecord, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	return w.GetProvenanceByAsset(assetID), nil
}

// GetProvenanceBySubaccount filters a wallet's provenance history by
// subaccount.
func (m *Manager) GetProvenanceBySubaccount(walletAddress, subaccountID string) ([]models.ProvenanceRecord, error) {
	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	return w.GetProvenanceBySubaccount(subaccountID), nil
}

// WithdrawalParams carries the optional gas overrides accepted by
// WithdrawToExternal.
type WithdrawalParams struct {
	GasPriceWei uint64 // 0 means use the default
	GasLimit    uint64 // 0 means use the asset-type default
	ChainID     uint64
}

// WithdrawToExternal validates and debits the subaccount, builds and
// signs the appropriate legacy transaction (ETH transfer or ERC-20
// transfer(address,uint256) call), and queues it on the manager's
// global outbox.
//
// Validation (destination, wallet, balance, asset type) runs, and the
// wallet is debited, before the global nonce is incremented, so a
// rejected withdrawal never consumes a queue sequence number. The whole
// withdrawal runs under the global nonce lock, so withdrawals across all
// wallets are serialized and each wallet's transaction nonces follow the
// order of the global queue sequence numbers.
func (m *Manager) WithdrawToExternal(walletAddress, subaccountID, assetID string, amount uint64, destination string, params WithdrawalParams) (models.PendingWithdrawal, error) {
	m.globalNonceMu.Lock()
	defer m.globalNonceMu.Unlock()

	toAddress, err := parseAddress(destination)
	if err != nil {
		return models.PendingWithdrawal{}, walleterr.New(walleterr.KindInvalidAddress, "invalid destination: %v", err)
	}

	w, err := m.GetWallet(walletAddress)
	if err != nil {
		return models.PendingWithdrawal{}, err
	}

	if w.GetBalance(subaccountID, assetID) < amount {
		return models.PendingWithdrawal{}, walleterr.New(walleterr.KindInsufficientBalance, "subaccount %s has insufficient %s balance", subaccountID, assetID)
	}

	asset, ok := w.Asset(assetID)
	if !ok {
		return models.PendingWithdrawal{}, walleterr.New(walleterr.KindAssetNotFound, "asset %s not registered", assetID)
	}

	var contract [20]byte
	switch asset.TokenType {
	case models.TokenETH:
	case models.TokenERC20:
		c, cerr := parseAddress(asset.ContractAddress)
		if cerr != nil {
			return models.PendingWithdrawal{}, walleterr.New(walleterr.KindInvalidAddress, "invalid contract address for asset %s: %v", assetID, cerr)
		}
		contract = c
	default:
		return models.PendingWithdrawal{}, walleterr.New(walleterr.KindUnsupportedAssetType, "withdrawal not supported for asset type %s", asset.TokenType)
	}

	asset, walletNonce, err := w.PrepareWithdrawal(assetID, amount, subaccountID, destination)
	if err != nil {
		return models.PendingWithdrawal{}, err
	}

	m.globalNonce++
	txNonce := m.globalNonce

	gasPrice := params.GasPriceWei
	if gasPrice == 0 {
		gasPrice = defaultGasPriceWei
	}

	var (
		raw      string
		gasLimit uint64
	)
	switch asset.TokenType {
	case models.TokenETH:
		gasLimit = params.GasLimit
		if gasLimit == 0 {
			gasLimit = defaultETHGasLimit
		}
		raw, err = m.signETHTransfer(walletAddress, toAddress, amount, walletNonce, gasPrice, gasLimit, params.ChainID)
	case models.TokenERC20:
		gasLimit = params.GasLimit
		if gasLimit == 0 {
			gasLimit = defaultERC20GasLimit
		}
		raw, err = m.signERC20Transfer(walletAddress, contract, toAddress, amount, walletNonce, gasPrice, gasLimit, params.ChainID)
	}
	if err != nil {
		return models.PendingWithdrawal{}, err
	}

	pending := models.PendingWithdrawal{
		WalletAddress:        walletAddress,
		SubaccountID:         subaccountID,
		AssetID:              assetID,
		Amount:               amount,
		Destination:          destination,
		Nonce:                txNonce,
		SignedRawTransaction: raw,
		CreatedAt:            time.Now().Unix(),
	}

	m.outboxMu.Lock()
	m.outboxQueue = append(m.outboxQueue, pending)
	m.outboxMu.Unlock()

	return pending, nil
}

func (m *Manager) signETHTransfer(walletAddress string, to [20]byte, amount, nonce, gasPriceWei, gasLimit, chainID uint64) (string, error) {
	tx := txcodec.LegacyTransaction{
		Nonce:    nonce,
		GasPrice: new(big.Int).SetUint64(gasPriceWei),
		GasLimit: gasLimit,
		To:       to[:],
		Value:    new(big.Int).SetUint64(amount),
	}
	return m.keystore.SignTransaction(walletAddress, tx, chainID)
}

func (m *Manager) signERC20Transfer(walletAddress string, contract, to [20]byte, amount, nonce, gasPriceWei, gasLimit, chainID uint64) (string, error) {
	tx := txcodec.LegacyTransaction{
		Nonce:    nonce,
		GasPrice: new(big.Int).SetUint64(gasPriceWei),
		GasLimit: gasLimit,
		To:       contract[:],
		Value:    big.NewInt(0),
		Data:     txcodec.ERC20TransferData(to, new(big.Int).SetUint64(amount)),
	}
	return m.keystore.SignTransaction(walletAddress, tx, chainID)
}

// GetOutboxQueue returns every pending signed withdrawal awaiting
// broadcast.
func (m *Manager) GetOutboxQueue() []models.PendingWithdrawal {
	m.outboxMu.Lock()
	defer m.outboxMu.Unlock()
	out := make([]models.PendingWithdrawal, len(m.outboxQueue))
	copy(out, m.outboxQueue)
	return out
}

// RemoveFromOutbox removes a broadcast (or abandoned) withdrawal by its
// global nonce.
func (m *Manager) RemoveFromOutbox(nonce uint64) {
	m.outboxMu.Lock()
	defer m.outboxMu.Unlock()
	filtered := m.outboxQueue[:0]
	for _, w := range m.outboxQueue {
		if w.Nonce != nonce {
			filtered = append(filtered, w)
		}
	}
	m.outboxQueue = filtered
}

func parseAddress(addr string) ([20]byte, error) {
	clean := strings.TrimPrefix(addr, "0x")
	var out [20]byte
	if len(clean) != 40 {
		return out, walleterr.New(walleterr.KindInvalidAddress, "address must be 40 hex chars, got %d", len(clean))
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
