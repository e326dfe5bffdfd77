// Package ledger implements the per-wallet PASS state machine: inbox
// deposits, subaccount balances, internal transfers, withdrawals, the
// outbox queue, and the append-only provenance log.
package ledger

import (
	"sync"
	"time"

	"github.com/passwallet/engine/internal/walleterr"
	"github.com/passwallet/engine/pkg/models"
)

// Wallet is a single PASS wallet's state, guarded by its own mutex so
// concurrent operations against different wallets never contend with
// each other.
type Wallet struct {
	mu sync.Mutex

	Address   string
	Name      string
	Owner     string
	Nonce     uint64
	CreatedAt int64

	inbox       []models.Deposit
	outbox      []models.OutboxEntry
	assets      map[string]models.Asset
	subaccounts map[string]models.Subaccount
	balances    map[string]uint64 // "subaccountID:assetID" -> amount
	history     []models.ProvenanceRecord
}

// New creates an empty wallet state for address.
func New(address, name, owner string) *Wallet {
	return &Wallet{
		Address:     address,
		Name:        name,
		Owner:       owner,
		CreatedAt:   time.Now().Unix(),
		assets:      make(map[string]models.Asset),
		subaccounts: make(map[string]models.Subaccount),
		balances:    make(map[string]uint64),
	}
}

func balanceKey(subaccountID, assetID string) string {
	return subaccountID + ":" + assetID
}

// AddAsset registers an asset under assetID.
func (w *Wallet) AddAsset(assetID string, asset models.Asset) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assets[assetID] = asset
}

// AddSubaccount registers a subaccount.
func (w *Wallet) AddSubaccount(sub models.Subaccount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subaccounts[sub.ID] = sub
}

// GetBalance returns the balance of assetID held by subaccountID,
// zero if unset.
func (w *Wallet) GetBalance(subaccountID, assetID string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[balanceKey(subaccountID, assetID)]
}

func (w *Wallet) setBalance(subaccountID, assetID string, amount uint64) {
	w.balances[balanceKey(subaccountID, assetID)] = amount
}

func (w *Wallet) checkAllow(subaccountID, assetID string, amount uint64) bool {
	return w.balances[balanceKey(subaccountID, assetID)] >= amount
}

// InboxDeposit records an external deposit awaiting claim. Returns a
// walleterr.KindDuplicateDepositID error if depositID is already present.
func (w *Wallet) InboxDeposit(deposit models.Deposit) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.inbox {
		if d.DepositID == deposit.DepositID {
			return walleterr.New(walleterr.KindDuplicateDepositID, "deposit id %s already exists", deposit.DepositID)
		}
	}
	w.inbox = append(w.inbox, deposit)
	return nil
}

// ClaimInbox moves a deposit out of the inbox and credits subaccountID's
// balance for the deposited asset.
func (w *Wallet) ClaimInbox(depositID, subaccountID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := -1
	for i, d := range w.inbox {
		if d.DepositID == depositID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return walleterr.New(walleterr.KindDepositNotFound, "deposit %s not found in inbox", depositID)
	}

	deposit := w.inbox[idx]
	w.inbox = append(w.inbox[:idx], w.inbox[idx+1:]...)

	current := w.balances[balanceKey(subaccountID, deposit.AssetID)]
	w.setBalance(subaccountID, deposit.AssetID, current+deposit.Amount)

	w.history = append(w.history, models.ProvenanceRecord{
		Operation: models.Operation{
			Kind:         models.OpClaim,
			AssetID:      deposit.AssetID,
			Amount:       deposit.Amount,
			DepositID:    deposit.DepositID,
			SubaccountID: subaccountID,
		},
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// InternalTransfer moves amount of assetID from one subaccount to
// another within the same wallet.
func (w *Wallet) InternalTransfer(assetID string, amount uint64, fromSubaccount, toSubaccount string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.checkAllow(fromSubaccount, assetID, amount) {
		return walleterr.New(walleterr.KindInsufficientBalance, "subaccount %s has insufficient %s balance", fromSubaccount, assetID)
	}

	fromBalance := w.balances[balanceKey(fromSubaccount, assetID)]
	toBalance := w.balances[balanceKey(toSubaccount, assetID)]
	w.setBalance(fromSubaccount, assetID, fromBalance-amount)
	w.setBalance(toSubaccount, assetID, toBalance+amount)

	w.history = append(w.history, models.ProvenanceRecord{
		Operation: models.Operation{
			Kind:           models.OpTransfer,
			AssetID:        assetID,
			Amount:         amount,
			FromSubaccount: fromSubaccount,
			ToSubaccount:   toSubaccount,
		},
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// Withdraw debits subaccountID and queues a legacy, unsigned outbox
// entry for external_destination. Distinct from the manager's
// WithdrawToExternal, which builds and signs the actual transaction.
func (w *Wallet) Withdraw(assetID string, amount uint64, subaccountID, destination string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.checkAllow(subaccountID, assetID, amount) {
		return walleterr.New(walleterr.KindInsufficientBalance, "subaccount %s has insufficient %s balance", subaccountID, assetID)
	}

	current := w.balances[balanceKey(subaccountID, assetID)]
	w.setBalance(subaccountID, assetID, current-amount)

	w.outbox = append(w.outbox, models.OutboxEntry{
		AssetID:             assetID,
		Amount:              amount,
		ExternalDestination: destination,
		Nonce:               w.Nonce,
	})

	w.history = append(w.history, models.ProvenanceRecord{
		Operation: models.Operation{
			Kind:         models.OpWithdraw,
			AssetID:      assetID,
			Amount:       amount,
			SubaccountID: subaccountID,
			Destination:  destination,
		},
		Timestamp: time.Now().Unix(),
	})
	return nil
}

// ProcessOutbox drains the legacy outbox queue, advancing the wallet
// nonce once per drained entry, and returns the drained entries in FIFO
// order.
func (w *Wallet) ProcessOutbox() []models.OutboxEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	processed := w.outbox
	w.outbox = nil
	w.Nonce += uint64(len(processed))
	return processed
}

// PrepareWithdrawal validates that subaccountID holds amount of assetID,
// debits it, advances the wallet nonce, and appends a Withdraw
// provenance record — all atomically under the wallet lock. It returns
// the asset being withdrawn and the wallet's new nonce so the caller
// (the manager) can build and sign the outbound transaction outside
// this lock.
func (w *Wallet) PrepareWithdrawal(assetID string, amount uint64, subaccountID, destination string) (models.Asset, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.checkAllow(subaccountID, assetID, amount) {
		return models.Asset{}, 0, walleterr.New(walleterr.KindInsufficientBalance, "subaccount %s has insufficient %s balance", subaccountID, assetID)
	}
	asset, ok := w.assets[assetID]
	if !ok {
		return models.Asset{}, 0, walleterr.New(walleterr.KindAssetNotFound, "asset %s not registered", assetID)
	}

	w.Nonce++
	walletNonce := w.Nonce

	current := w.balances[balanceKey(subaccountID, assetID)]
	w.setBalance(subaccountID, assetID, current-amount)

	w.history = append(w.history, models.ProvenanceRecord{
		Operation: models.Operation{
			Kind:         models.OpWithdraw,
			AssetID:      assetID,
			Amount:       amount,
			SubaccountID: subaccountID,
			Destination:  destination,
		},
		Timestamp: time.Now().Unix(),
	})

	return asset, walletNonce, nil
}

// GetSubaccountBalances returns every non-zero assetID -> amount balance
// held by subaccountID.
func (w *Wallet) GetSubaccountBalances(subaccountID string) map[string]uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]uint64)
	prefix := subaccountID + ":"
	for key, amount := range w.balances {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix && amount > 0 {
			out[key[len(prefix):]] = amount
		}
	}
	return out
}

// GetAssets returns every registered asset together with its total
// balance across all subaccounts and the non-zero per-subaccount
// breakdown.
func (w *Wallet) GetAssets() map[string]models.AssetSummary {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make(map[string]models.AssetSummary, len(w.assets))
	for assetID, asset := range w.assets {
		summary := models.AssetSummary{
			Asset:              asset,
			SubaccountBalances: make(map[string]uint64),
		}
		for key, amount := range w.balances {
			subID, balAssetID := splitBalanceKey(key)
			if balAssetID != assetID {
				continue
			}
			summary.TotalBalance += amount
			if amount > 0 {
				summary.SubaccountBalances[subID] = amount
			}
		}
		out[assetID] = summary
	}
	return out
}

// Asset looks up a registered asset by id.
func (w *Wallet) Asset(assetID string) (models.Asset, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	asset, ok := w.assets[assetID]
	return asset, ok
}

// GetProvenanceLog returns the full, unfiltered append-only history.
func (w *Wallet) GetProvenanceLog() []models.ProvenanceRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.ProvenanceRecord, len(w.history))
	copy(out, w.history)
	return out
}

// GetProvenanceByAsset returns history entries touching assetID.
func (w *Wallet) GetProvenanceByAsset(assetID string) []models.ProvenanceRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.ProvenanceRecord
	for _, rec := range w.history {
		if rec.Operation.MatchesAsset(assetID) {
			out = append(out, rec)
		}
	}
	return out
}

// GetProvenanceBySubaccount returns history entries touching
// subaccountID.
func (w *Wallet) GetProvenanceBySubaccount(subaccountID string) []models.ProvenanceRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.ProvenanceRecord
	for _, rec := range w.history {
		if rec.Operation.MatchesSubaccount(subaccountID) {
			out = append(out, rec)
		}
	}
	return out
}

// Summary returns the compact state view used by GetPassWalletState.
func (w *Wallet) Summary() models.WalletSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.WalletSummary{
		Address:         w.Address,
		Name:            w.Name,
		Owner:           w.Owner,
		Nonce:           w.Nonce,
		InboxCount:      len(w.inbox),
		OutboxCount:     len(w.outbox),
		AssetsCount:     len(w.assets),
		SubaccountCount: len(w.subaccounts),
		HistoryCount:    len(w.history),
		CreatedAt:       w.CreatedAt,
	}
}

func splitBalanceKey(key string) (subaccountID, assetID string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
