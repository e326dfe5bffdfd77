// Package models holds the wire-level domain entities shared across the
// keystore, ledger, manager, and dispatcher packages.
package models

// TokenType identifies the asset taxonomy an Asset belongs to. Only ETH and
// ERC20 are valid withdrawal targets; ERC721/ERC1155 are recognized but
// rejected by the manager at withdrawal time.
type TokenType string

const (
	TokenETH     TokenType = "ETH"
	TokenERC20   TokenType = "ERC20"
	TokenERC721  TokenType = "ERC721"
	TokenERC1155 TokenType = "ERC1155"
)

// Asset describes a token registered against a wallet.
type Asset struct {
	TokenType       TokenType `json:"token_type"`
	ContractAddress string    `json:"contract_address,omitempty"`
	TokenID         string    `json:"token_id,omitempty"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	Decimals        uint32    `json:"decimals"`
}

// Subaccount is a logical partition of balances within a wallet.
type Subaccount struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Address string `json:"address"`
}

// Deposit is an external deposit sitting in a wallet's inbox, awaiting claim.
type Deposit struct {
	AssetID         string `json:"asset_id"`
	Amount          uint64 `json:"amount"`
	DepositID       string `json:"deposit_id"`
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     uint64 `json:"block_number"`
	FromAddress     string `json:"from_address"`
	ToAddress       string `json:"to_address"`
}

// OutboxEntry is a wallet-scoped, legacy (unsigned) withdrawal intent,
// drained by ProcessOutbox. Distinct from PendingWithdrawal, which carries
// a signed transaction and lives in the manager's queue.
type OutboxEntry struct {
	AssetID             string `json:"asset_id"`
	Amount              uint64 `json:"amount"`
	ExternalDestination string `json:"external_destination"`
	Nonce               uint64 `json:"nonce"`
}

// OperationKind discriminates the structural fields carried by a
// ProvenanceRecord.
type OperationKind string

const (
	OpClaim    OperationKind = "Claim"
	OpTransfer OperationKind = "Transfer"
	OpWithdraw OperationKind = "Withdraw"
)

// Operation is the append-only provenance payload for a single ledger
// mutation. Only the fields relevant to Kind are populated.
type Operation struct {
	Kind           OperationKind `json:"kind"`
	AssetID        string        `json:"asset_id"`
	Amount         uint64        `json:"amount"`
	DepositID      string        `json:"deposit_id,omitempty"`
	SubaccountID   string        `json:"subaccount_id,omitempty"`
	FromSubaccount string        `json:"from_subaccount,omitempty"`
	ToSubaccount   string        `json:"to_subaccount,omitempty"`
	Destination    string        `json:"destination,omitempty"`
}

// MatchesAsset reports whether the operation touches the given asset.
func (o Operation) MatchesAsset(assetID string) bool {
	return o.AssetID == assetID
}

// MatchesSubaccount reports whether the operation touches the given
// subaccount. A Transfer matches if either endpoint matches.
func (o Operation) MatchesSubaccount(subaccountID string) bool {
	switch o.Kind {
	case OpTransfer:
		return o.FromSubaccount == subaccountID || o.ToSubaccount == subaccountID
	default:
		return o.SubaccountID == subaccountID
	}
}

// ProvenanceRecord is one append-only history entry.
type ProvenanceRecord struct {
	Operation   Operation `json:"operation"`
	Timestamp   int64     `json:"timestamp"`
	BlockNumber *uint64   `json:"block_number,omitempty"`
}

// PendingWithdrawal is a signed, manager-queued withdrawal awaiting
// external broadcast.
type PendingWithdrawal struct {
	WalletAddress        string `json:"wallet_address"`
	SubaccountID         string `json:"subaccount_id"`
	AssetID              string `json:"asset_id"`
	Amount               uint64 `json:"amount"`
	Destination          string `json:"destination"`
	Nonce                uint64 `json:"nonce"`
	SignedRawTransaction string `json:"signed_raw_transaction"`
	CreatedAt            int64  `json:"created_at"`
}

// Account is the keystore's public view of a generated key record —
// address plus (per spec.md's observed wire contract) the plaintext
// private key at generation time.
type Account struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// AssetSummary is the per-asset, per-wallet aggregate returned by
// GetAssets: the asset's registration plus its total balance across all
// subaccounts and the non-zero per-subaccount breakdown.
type AssetSummary struct {
	Asset              Asset             `json:"asset"`
	TotalBalance       uint64            `json:"total_balance"`
	SubaccountBalances map[string]uint64 `json:"subaccount_balances"`
}

// WalletSummary is the compact state view returned by GetPassWalletState.
type WalletSummary struct {
	Address         string `json:"address"`
	Name            string `json:"name"`
	Owner           string `json:"owner"`
	Nonce           uint64 `json:"nonce"`
	InboxCount      int    `json:"inbox_count"`
	OutboxCount     int    `json:"outbox_count"`
	AssetsCount     int    `json:"assets_count"`
	SubaccountCount int    `json:"subaccounts_count"`
	HistoryCount    int    `json:"history_count"`
	CreatedAt       int64  `json:"created_at"`
}
