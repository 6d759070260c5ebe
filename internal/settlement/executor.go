package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dialpay/dial_pay/internal/chain"
)

// Native ledger units per whole token.
const tokenDecimals = 18

var (
	// ErrUnsupportedToken rejects any symbol other than the native token
	// before a ledger call is made.
	ErrUnsupportedToken = errors.New("unsupported token")

	// ErrInvalidAmount rejects zero, negative or unparseable amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrReverted indicates the ledger executed and rolled back the
	// transfer. Terminal; no recording or notification may follow.
	ErrReverted = errors.New("settlement reverted")

	// ErrTimeout indicates confirmation was not observed within the bound.
	// The transfer may or may not have landed; callers must report the
	// outcome as unknown rather than failed.
	ErrTimeout = errors.New("settlement confirmation timeout")
)

// Result is the confirmed outcome of one settlement.
type Result struct {
	TxID        string
	Confirmed   bool
	Reverted    bool
	BlockNumber uint64
}

// Executor submits native transfers and blocks until the ledger confirms.
// Blocking is deliberate: the nonce consumed by the transfer must be observed
// as committed before the notification event is submitted from the same
// signer, or the follow-up risks a sequence-number conflict.
type Executor struct {
	ledger         chain.Ledger
	nativeToken    string
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// NewExecutor builds a settlement executor for the configured native token.
func NewExecutor(ledger chain.Ledger, nativeToken string, confirmTimeout time.Duration, logger *slog.Logger) *Executor {
	if confirmTimeout <= 0 {
		confirmTimeout = 120 * time.Second
	}
	return &Executor{
		ledger:         ledger,
		nativeToken:    strings.ToUpper(nativeToken),
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}
}

// ParseAmount converts a human-entered decimal amount ("1.5") into base
// ledger units.
func ParseAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if d.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	return d, nil
}

// BaseUnits scales a decimal token amount to integer ledger units.
func BaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(tokenDecimals).Truncate(0).BigInt()
}

// FromBaseUnits is the inverse of BaseUnits, used when rendering history.
func FromBaseUnits(units *big.Int) decimal.Decimal {
	if units == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(units, -tokenDecimals)
}

// Execute submits a native transfer and waits for its receipt. It returns a
// confirmed Result only for a successful, non-reverted settlement; every
// other path is a terminal error.
func (e *Executor) Execute(ctx context.Context, to string, amount decimal.Decimal, token string) (Result, error) {
	if strings.ToUpper(token) != e.nativeToken {
		return Result{}, fmt.Errorf("%w: %q (only %s transfers are supported)", ErrUnsupportedToken, token, e.nativeToken)
	}
	if to == "" {
		return Result{}, fmt.Errorf("missing recipient address")
	}
	if amount.Sign() <= 0 {
		return Result{}, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}

	units := BaseUnits(amount)
	txID, err := e.ledger.SubmitTransfer(ctx, to, units)
	if err != nil {
		return Result{}, fmt.Errorf("submit transfer: %w", err)
	}

	e.logger.Info("transfer submitted", "tx_id", txID, "to", to, "amount", amount.String())

	receipt, err := e.ledger.WaitForConfirmation(ctx, txID, e.confirmTimeout)
	if err != nil {
		return Result{TxID: txID}, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if receipt.Reverted {
		return Result{TxID: txID, Confirmed: true, Reverted: true, BlockNumber: receipt.BlockNumber},
			fmt.Errorf("%w: tx %s", ErrReverted, txID)
	}

	e.logger.Info("transfer confirmed", "tx_id", txID, "block", receipt.BlockNumber)
	return Result{TxID: txID, Confirmed: true, BlockNumber: receipt.BlockNumber}, nil
}
