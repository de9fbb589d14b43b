package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Klingon-tech/klingnet-keycore/pkg/units"
)

// TransferGas is the gas limit of a plain value transfer.
const TransferGas = 21000

// TxRequest is the sign payload for the account chain. Numeric fields
// accept JSON numbers, decimal strings or 0x-hex strings.
type TxRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Data string `json:"data,omitempty"`

	// Amount is in ether; Value is in wei. At most one may be set.
	Amount units.Amount `json:"amount,omitempty"`
	Value  units.Amount `json:"value,omitempty"`

	Nonce    units.Amount `json:"nonce,omitempty"`
	GasLimit units.Amount `json:"gasLimit,omitempty"`
	ChainID  units.Amount `json:"chainId,omitempty"`

	GasPrice             units.Amount `json:"gasPrice,omitempty"`
	MaxFeePerGas         units.Amount `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas units.Amount `json:"maxPriorityFeePerGas,omitempty"`
}

// ParseTxRequest decodes a sign payload.
func ParseTxRequest(raw json.RawMessage) (*TxRequest, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("missing transaction data")
	}
	var req TxRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode transaction data: %w", err)
	}
	return &req, nil
}

// Dynamic reports whether the request carries EIP-1559 fee fields.
func (r *TxRequest) Dynamic() bool {
	return !r.MaxFeePerGas.IsZero() || !r.MaxPriorityFeePerGas.IsZero()
}

// Build assembles the unsigned transaction. Missing numeric fields are zero,
// except the gas limit, which defaults to TransferGas for calls without data,
// and the chain id, which defaults to defaultChainID.
func (r *TxRequest) Build(defaultChainID *big.Int) (*types.Transaction, *big.Int, error) {
	var to *common.Address
	if r.To != "" {
		if !ValidAddress(r.To) {
			return nil, nil, fmt.Errorf("invalid recipient %q", r.To)
		}
		addr := common.HexToAddress(r.To)
		to = &addr
	}

	var data []byte
	if r.Data != "" && r.Data != "0x" {
		d, err := hexutil.Decode(r.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid data: %w", err)
		}
		data = d
	}
	if to == nil && len(data) == 0 {
		return nil, nil, errors.New("transaction needs a recipient or data")
	}

	value, err := r.value()
	if err != nil {
		return nil, nil, err
	}

	nonce, err := uintField("nonce", r.Nonce)
	if err != nil {
		return nil, nil, err
	}
	gas, err := uintField("gasLimit", r.GasLimit)
	if err != nil {
		return nil, nil, err
	}
	if gas == 0 {
		if len(data) > 0 {
			return nil, nil, errors.New("gasLimit is required for calls with data")
		}
		gas = TransferGas
	}

	chainID, err := bigField("chainId", r.ChainID)
	if err != nil {
		return nil, nil, err
	}
	if chainID == nil || chainID.Sign() == 0 {
		chainID = new(big.Int).Set(defaultChainID)
	}

	if r.Dynamic() {
		if !r.GasPrice.IsZero() {
			return nil, nil, errors.New("gasPrice cannot be combined with EIP-1559 fee fields")
		}
		feeCap, err := bigField("maxFeePerGas", r.MaxFeePerGas)
		if err != nil {
			return nil, nil, err
		}
		tip, err := bigField("maxPriorityFeePerGas", r.MaxPriorityFeePerGas)
		if err != nil {
			return nil, nil, err
		}
		feeCap, tip = orZero(feeCap), orZero(tip)
		if tip.Cmp(feeCap) > 0 {
			return nil, nil, errors.New("maxPriorityFeePerGas exceeds maxFeePerGas")
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        to,
			Value:     value,
			Data:      data,
		}), chainID, nil
	}

	gasPrice, err := bigField("gasPrice", r.GasPrice)
	if err != nil {
		return nil, nil, err
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: orZero(gasPrice),
		Gas:      gas,
		To:       to,
		Value:    value,
		Data:     data,
	}), chainID, nil
}

func (r *TxRequest) value() (*big.Int, error) {
	switch {
	case !r.Amount.IsZero() && !r.Value.IsZero():
		return nil, errors.New("amount and value are mutually exclusive")
	case !r.Amount.IsZero():
		v, err := r.Amount.ToMinor(units.EtherDecimals)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		if v.Sign() < 0 {
			return nil, fmt.Errorf("amount: %w", units.ErrNonPositive)
		}
		return v, nil
	default:
		v, err := bigField("value", r.Value)
		return orZero(v), err
	}
}

func bigField(name string, a units.Amount) (*big.Int, error) {
	v, err := units.ParseBig(string(a))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func uintField(name string, a units.Amount) (uint64, error) {
	v, err := bigField(name, a)
	if err != nil || v == nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s: %w", name, units.ErrOverflow)
	}
	return v.Uint64(), nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
