// Package walleterr defines the uniform error taxonomy returned by the
// ledger, keystore, and manager packages.
package walleterr

import "fmt"

// Kind is a stable, wire-safe error code.
type Kind string

const (
	KindDuplicateDepositID   Kind = "duplicate_deposit_id"
	KindDepositNotFound      Kind = "deposit_not_found"
	KindInsufficientBalance  Kind = "insufficient_balance"
	KindAssetNotFound        Kind = "asset_not_found"
	KindUnsupportedAssetType Kind = "unsupported_asset_type"
	KindSubaccountNotFound   Kind = "subaccount_not_found"
	KindWalletNotFound       Kind = "wallet_not_found"
	KindInvalidAddress       Kind = "invalid_address"
	KindInvalidTokenType     Kind = "invalid_token_type"
	KindMalformedCommand     Kind = "malformed_command"
	KindKeyNotFound          Kind = "key_not_found"
	KindSignatureInvalid     Kind = "signature_invalid"
	KindWithdrawalNotFound   Kind = "withdrawal_not_found"
	KindInternal             Kind = "internal"
)

// Error carries a stable Kind alongside a human-readable message, so
// callers can branch on Kind while the message stays free to evolve.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an Error of the given Kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a walleterr.Error of the given Kind.
func Is(err error, kind Kind) bool {
	we, ok := err.(*Error)
	return ok && we.Kind == kind
}
