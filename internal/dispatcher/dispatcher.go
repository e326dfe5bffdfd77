// Package dispatcher decodes tagged JSON commands and routes them to
// the keystore and manager, returning a uniform {success, data, error}
// response envelope.
package dispatcher

import (
	"encoding/json"

	"github.com/passwallet/engine/internal/keystore"
	"github.com/passwallet/engine/internal/manager"
	"github.com/passwallet/engine/internal/walleterr"
	"github.com/passwallet/engine/pkg/models"
)

// CommandType discriminates which operation a Command carries.
type CommandType string

const (
	CmdKeygen                    CommandType = "Keygen"
	CmdKeygenFromMnemonic        CommandType = "KeygenFromMnemonic"
	CmdSign                      CommandType = "Sign"
	CmdList                      CommandType = "List"
	CmdVerify                    CommandType = "Verify"
	CmdCreatePassWallet          CommandType = "CreatePassWallet"
	CmdListPassWallets           CommandType = "ListPassWallets"
	CmdGetPassWalletState        CommandType = "GetPassWalletState"
	CmdAddAsset                  CommandType = "AddAsset"
	CmdAddSubaccount             CommandType = "AddSubaccount"
	CmdInboxDeposit              CommandType = "InboxDeposit"
	CmdClaimInbox                CommandType = "ClaimInbox"
	CmdInternalTransfer          CommandType = "InternalTransfer"
	CmdWithdraw                  CommandType = "Withdraw"
	CmdWithdrawToExternal        CommandType = "WithdrawToExternal"
	CmdProcessOutbox             CommandType = "ProcessOutbox"
	CmdGetBalance                CommandType = "GetBalance"
	CmdGetSubaccountBalances     CommandType = "GetSubaccountBalances"
	CmdSignGSM                   CommandType = "SignGSM"
	CmdGetAssets                 CommandType = "GetAssets"
	CmdGetProvenanceLog          CommandType = "GetProvenanceLog"
	CmdGetProvenanceByAsset      CommandType = "GetProvenanceByAsset"
	CmdGetProvenanceBySubaccount CommandType = "GetProvenanceBySubaccount"
	CmdGetOutboxQueue            CommandType = "GetOutboxQueue"
	CmdRemoveFromOutbox          CommandType = "RemoveFromOutbox"
)

// Command is the flat, tagged wire shape for every operation the
// dispatcher can run. Only the fields relevant to Type are populated —
// the idiomatic Go analogue of the original tagged union.
type Command struct {
	Type CommandType `json:"type"`

	Address   string `json:"address,omitempty"`
	Message   string `json:"message,omitempty"`
	Signature string `json:"signature,omitempty"`
	Mnemonic  string `json:"mnemonic,omitempty"`
	Index     uint32 `json:"index,omitempty"`

	WalletAddress string `json:"wallet_address,omitempty"`
	Name          string `json:"name,omitempty"`
	Owner         string `json:"owner,omitempty"`

	AssetID         string `json:"asset_id,omitempty"`
	TokenType       string `json:"token_type,omitempty"`
	ContractAddress string `json:"contract_address,omitempty"`
	TokenIDStr      string `json:"token_id,omitempty"`
	Symbol          string `json:"symbol,omitempty"`
	Decimals        uint32 `json:"decimals,omitempty"`

	SubaccountID   string `json:"subaccount_id,omitempty"`
	Label          string `json:"label,omitempty"`
	FromSubaccount string `json:"from_subaccount,omitempty"`
	ToSubaccount   string `json:"to_subaccount,omitempty"`

	Amount          uint64 `json:"amount,omitempty"`
	DepositID       string `json:"deposit_id,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	BlockNumber     uint64 `json:"block_number,omitempty"`
	FromAddress     string `json:"from_address,omitempty"`
	ToAddress       string `json:"to_address,omitempty"`

	Destination string `json:"destination,omitempty"`
	GasPrice    uint64 `json:"gas_price,omitempty"`
	GasLimit    uint64 `json:"gas_limit,omitempty"`
	ChainID     uint64 `json:"chain_id,omitempty"`

	Domain string `json:"domain,omitempty"`
	Nonce  uint64 `json:"nonce,omitempty"`
}

// Response is the uniform envelope every command resolves to.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func ok(data interface{}) Response {
	return Response{Success: true, Data: data}
}

func fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// Dispatcher routes decoded commands to the keystore and manager.
type Dispatcher struct {
	keystore *keystore.Keystore
	manager  *manager.Manager
}

// New builds a Dispatcher over the given keystore and manager.
func New(ks *keystore.Keystore, mgr *manager.Manager) *Dispatcher {
	return &Dispatcher{keystore: ks, manager: mgr}
}

// DispatchJSON decodes raw as a Command and dispatches it, returning the
// response serialized back to JSON.
func (d *Dispatcher) DispatchJSON(raw []byte) []byte {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		resp := Response{Success: false, Error: "failed to parse command: " + err.Error()}
		out, _ := json.Marshal(resp)
		return out
	}
	out, _ := json.Marshal(d.Dispatch(cmd))
	return out
}

// Dispatch routes a single decoded command.
func (d *Dispatcher) Dispatch(cmd Command) Response {
	switch cmd.Type {
	case CmdKeygen:
		return d.handleKeygen()
	case CmdKeygenFromMnemonic:
		return d.handleKeygenFromMnemonic(cmd)
	case CmdSign:
		return d.handleSign(cmd)
	case CmdList:
		return d.handleList()
	case CmdVerify:
		return d.handleVerify(cmd)
	case CmdCreatePassWallet:
		return d.handleCreatePassWallet(cmd)
	case CmdListPassWallets:
		return d.handleListPassWallets()
	case CmdGetPassWalletState:
		return d.handleGetPassWalletState(cmd)
	case CmdAddAsset:
		return d.handleAddAsset(cmd)
	case CmdAddSubaccount:
		return d.handleAddSubaccount(cmd)
	case CmdInboxDeposit:
		return d.handleInboxDeposit(cmd)
	case CmdClaimInbox:
		return d.handleClaimInbox(cmd)
	case CmdInternalTransfer:
		return d.handleInternalTransfer(cmd)
	case CmdWithdraw:
		return d.handleWithdraw(cmd)
	case CmdWithdrawToExternal:
		return d.handleWithdrawToExternal(cmd)
	case CmdProcessOutbox:
		return d.handleProcessOutbox(cmd)
	case CmdGetBalance:
		return d.handleGetBalance(cmd)
	case CmdGetSubaccountBalances:
		return d.handleGetSubaccountBalances(cmd)
	case CmdSignGSM:
		return d.handleSignGSM(cmd)
	case CmdGetAssets:
		return d.handleGetAssets(cmd)
	case CmdGetProvenanceLog:
		return d.handleGetProvenanceLog(cmd)
	case CmdGetProvenanceByAsset:
		return d.handleGetProvenanceByAsset(cmd)
	case CmdGetProvenanceBySubaccount:
		return d.handleGetProvenanceBySubaccount(cmd)
	case CmdGetOutboxQueue:
		return d.handleGetOutboxQueue()
	case CmdRemoveFromOutbox:
		return d.handleRemoveFromOutbox(cmd)
	default:
		return Response{Success: false, Error: "unrecognized command type: " + string(cmd.Type)}
	}
}

func (d *Dispatcher) handleKeygen() Response {
	account, err := d.keystore.Keygen()
	if err != nil {
		return fail(err)
	}
	return ok(account)
}

func (d *Dispatcher) handleKeygenFromMnemonic(cmd Command) Response {
	account, err := d.keystore.KeygenFromMnemonic(cmd.Mnemonic, cmd.Index)
	if err != nil {
		return fail(err)
	}
	return ok(account)
}

func (d *Dispatcher) handleSign(cmd Command) Response {
	sig, err := d.keystore.SignMessage(cmd.Address, cmd.Message)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"signature": sig,
		"message":   cmd.Message,
		"address":   cmd.Address,
	})
}

func (d *Dispatcher) handleList() Response {
	return ok(d.keystore.ListAddresses())
}

func (d *Dispatcher) handleVerify(cmd Command) Response {
	valid, err := keystore.VerifyMessage(cmd.Address, cmd.Message, cmd.Signature)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"valid":   valid,
		"address": cmd.Address,
		"message": cmd.Message,
	})
}

func (d *Dispatcher) handleCreatePassWallet(cmd Command) Response {
	address, err := d.manager.CreateWallet(cmd.Name, cmd.Owner)
	if err != nil {
		return fail(err)
	}
	state, err := d.manager.GetWalletState(address)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": address,
		"name":           cmd.Name,
		"owner":          cmd.Owner,
		"state":          state,
	})
}

func (d *Dispatcher) handleListPassWallets() Response {
	return ok(map[string]interface{}{"wallets": d.manager.ListWallets()})
}

func (d *Dispatcher) handleGetPassWalletState(cmd Command) Response {
	state, err := d.manager.GetWalletState(cmd.WalletAddress)
	if err != nil {
		return fail(err)
	}
	return ok(state)
}

func (d *Dispatcher) handleAddAsset(cmd Command) Response {
	tokenType, err := parseTokenType(cmd.TokenType)
	if err != nil {
		return fail(err)
	}
	asset := models.Asset{
		TokenType:       tokenType,
		ContractAddress: cmd.ContractAddress,
		TokenID:         cmd.TokenIDStr,
		Symbol:          cmd.Symbol,
		Name:            cmd.Name,
		Decimals:        cmd.Decimals,
	}
	if err := d.manager.AddAsset(cmd.WalletAddress, cmd.AssetID, asset); err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": cmd.WalletAddress,
		"asset_id":       cmd.AssetID,
		"symbol":         cmd.Symbol,
		"name":           cmd.Name,
	})
}

func (d *Dispatcher) handleAddSubaccount(cmd Command) Response {
	sub := models.Subaccount{ID: cmd.SubaccountID, Label: cmd.Label, Address: cmd.Address}
	if err := d.manager.AddSubaccount(cmd.WalletAddress, sub); err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": cmd.WalletAddress,
		"subaccount_id":  cmd.SubaccountID,
		"label":          cmd.Label,
		"address":        cmd.Address,
	})
}

func (d *Dispatcher) handleInboxDeposit(cmd Command) Response {
	deposit := models.Deposit{
		AssetID:         cmd.AssetID,
		Amount:          cmd.Amount,
		DepositID:       cmd.DepositID,
		TransactionHash: cmd.TransactionHash,
		BlockNumber:     cmd.BlockNumber,
		FromAddress:     cmd.FromAddress,
		ToAddress:       cmd.ToAddress,
	}
	if err := d.manager.InboxDeposit(cmd.WalletAddress, deposit); err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address":   cmd.WalletAddress,
		"asset_id":         cmd.AssetID,
		"amount":           cmd.Amount,
		"deposit_id":       cmd.DepositID,
		"transaction_hash": cmd.TransactionHash,
	})
}

func (d *Dispatcher) handleClaimInbox(cmd Command) Response {
	if err := d.manager.ClaimInbox(cmd.WalletAddress, cmd.DepositID, cmd.SubaccountID); err != nil {
		return fail(err)
	}
	state, err := d.manager.GetWalletState(cmd.WalletAddress)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": cmd.WalletAddress,
		"deposit_id":     cmd.DepositID,
		"subaccount_id":  cmd.SubaccountID,
		"state":          state,
	})
}

func (d *Dispatcher) handleInternalTransfer(cmd Command) Response {
	if err := d.manager.InternalTransfer(cmd.WalletAddress, cmd.AssetID, cmd.Amount, cmd.FromSubaccount, cmd.ToSubaccount); err != nil {
		return fail(err)
	}
	fromBalance, _ := d.manager.GetBalance(cmd.WalletAddress, cmd.FromSubaccount, cmd.AssetID)
	toBalance, _ := d.manager.GetBalance(cmd.WalletAddress, cmd.ToSubaccount, cmd.AssetID)
	return ok(map[string]interface{}{
		"wallet_address":  cmd.WalletAddress,
		"asset_id":        cmd.AssetID,
		"amount":          cmd.Amount,
		"from_subaccount": cmd.FromSubaccount,
		"to_subaccount":   cmd.ToSubaccount,
		"from_balance":    fromBalance,
		"to_balance":      toBalance,
	})
}

func (d *Dispatcher) handleWithdraw(cmd Command) Response {
	if err := d.manager.Withdraw(cmd.WalletAddress, cmd.AssetID, cmd.Amount, cmd.SubaccountID, cmd.Destination); err != nil {
		return fail(err)
	}
	remaining, _ := d.manager.GetBalance(cmd.WalletAddress, cmd.SubaccountID, cmd.AssetID)
	return ok(map[string]interface{}{
		"wallet_address":    cmd.WalletAddress,
		"asset_id":          cmd.AssetID,
		"amount":            cmd.Amount,
		"subaccount_id":     cmd.SubaccountID,
		"destination":       cmd.Destination,
		"remaining_balance": remaining,
	})
}

func (d *Dispatcher) handleWithdrawToExternal(cmd Command) Response {
	params := manager.WithdrawalParams{
		GasPriceWei: cmd.GasPrice,
		GasLimit:    cmd.GasLimit,
		ChainID:     cmd.ChainID,
	}
	pending, err := d.manager.WithdrawToExternal(cmd.WalletAddress, cmd.SubaccountID, cmd.AssetID, cmd.Amount, cmd.Destination, params)
	if err != nil {
		return fail(err)
	}
	return ok(pending)
}

func (d *Dispatcher) handleProcessOutbox(cmd Command) Response {
	processed, err := d.manager.ProcessOutbox(cmd.WalletAddress)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address":  cmd.WalletAddress,
		"processed_items": processed,
		"count":           len(processed),
	})
}

func (d *Dispatcher) handleGetBalance(cmd Command) Response {
	balance, err := d.manager.GetBalance(cmd.WalletAddress, cmd.SubaccountID, cmd.AssetID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": cmd.WalletAddress,
		"subaccount_id":  cmd.SubaccountID,
		"asset_id":       cmd.AssetID,
		"balance":        balance,
	})
}

func (d *Dispatcher) handleGetSubaccountBalances(cmd Command) Response {
	balances, err := d.manager.GetSubaccountBalances(cmd.WalletAddress, cmd.SubaccountID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": cmd.WalletAddress,
		"subaccount_id":  cmd.SubaccountID,
		"balances":       balances,
	})
}

func (d *Dispatcher) handleSignGSM(cmd Command) Response {
	sig, err := d.manager.SignMessage(cmd.WalletAddress, cmd.Domain, cmd.Message)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": cmd.WalletAddress,
		"signature":      sig,
		"domain":         cmd.Domain,
		"message":        cmd.Message,
	})
}

func (d *Dispatcher) handleGetAssets(cmd Command) Response {
	assets, err := d.manager.GetWalletAssets(cmd.WalletAddress)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address": cmd.WalletAddress,
		"assets":         assets,
	})
}

func (d *Dispatcher) handleGetProvenanceLog(cmd Command) Response {
	records, err := d.manager.GetProvenanceLog(cmd.WalletAddress)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address":     cmd.WalletAddress,
		"provenance_records": records,
	})
}

func (d *Dispatcher) handleGetProvenanceByAsset(cmd Command) Response {
	records, err := d.manager.GetProvenanceByAsset(cmd.WalletAddress, cmd.AssetID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address":     cmd.WalletAddress,
		"asset_id":           cmd.AssetID,
		"provenance_records": records,
	})
}

func (d *Dispatcher) handleGetProvenanceBySubaccount(cmd Command) Response {
	records, err := d.manager.GetProvenanceBySubaccount(cmd.WalletAddress, cmd.SubaccountID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"wallet_address":     cmd.WalletAddress,
		"subaccount_id":      cmd.SubaccountID,
		"provenance_records": records,
	})
}

func (d *Dispatcher) handleGetOutboxQueue() Response {
	return ok(map[string]interface{}{
		"outbox_queue": d.manager.GetOutboxQueue(),
	})
}

func (d *Dispatcher) handleRemoveFromOutbox(cmd Command) Response {
	d.manager.RemoveFromOutbox(cmd.Nonce)
	return ok(map[string]interface{}{"nonce": cmd.Nonce})
}

func parseTokenType(s string) (models.TokenType, error) {
	switch s {
	case "ETH":
		return models.TokenETH, nil
	case "ERC20":
		return models.TokenERC20, nil
	case "ERC721":
		return models.TokenERC721, nil
	case "ERC1155":
		return models.TokenERC1155, nil
	default:
		return "", walleterr.New(walleterr.KindInvalidTokenType, "invalid token type %q", s)
	}
}
