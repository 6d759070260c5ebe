package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dialpay/dial_pay/internal/chain"
	"github.com/dialpay/dial_pay/internal/logging"
)

func TestExecuteConfirmedTransfer(t *testing.T) {
	sim := chain.NewSim("")
	e := NewExecutor(sim, "SOM", time.Second, logging.Discard())

	amount := decimal.RequireFromString("1.5")
	res, err := e.Execute(context.Background(), "0xAAA", amount, "SOM")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !res.Confirmed || res.Reverted || res.TxID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	want := new(big.Int)
	want.SetString("1500000000000000000", 10)
	if sim.Balance("0xAAA").Cmp(want) != 0 {
		t.Fatalf("balance not credited: %s", sim.Balance("0xAAA"))
	}
}

func TestExecuteRejectsNonNativeTokenBeforeLedgerCall(t *testing.T) {
	sim := chain.NewSim("")
	e := NewExecutor(sim, "SOM", time.Second, logging.Discard())

	_, err := e.Execute(context.Background(), "0xAAA", decimal.NewFromInt(1), "USDC")
	if !errors.Is(err, ErrUnsupportedToken) {
		t.Fatalf("expected ErrUnsupportedToken, got %v", err)
	}
	if nonce, _ := sim.PendingNonce(context.Background()); nonce != 0 {
		t.Fatalf("ledger was called for unsupported token, nonce=%d", nonce)
	}
}

func TestExecuteRevertedTransfer(t *testing.T) {
	sim := chain.NewSim("")
	chain.RevertNextTransfer(sim)
	e := NewExecutor(sim, "SOM", time.Second, logging.Discard())

	res, err := e.Execute(context.Background(), "0xAAA", decimal.NewFromInt(2), "som")
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
	if !res.Reverted || !res.Confirmed {
		t.Fatalf("expected confirmed+reverted result, got %+v", res)
	}
	if sim.Balance("0xAAA").Sign() != 0 {
		t.Fatal("reverted transfer credited funds")
	}
}

func TestExecuteConfirmationTimeout(t *testing.T) {
	sim := chain.NewSim("")
	chain.DelayConfirmation(sim, 10*time.Second)
	e := NewExecutor(sim, "SOM", 50*time.Millisecond, logging.Discard())

	_, err := e.Execute(context.Background(), "0xAAA", decimal.NewFromInt(1), "SOM")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount("1.5"); err != nil {
		t.Fatalf("valid amount rejected: %v", err)
	}
	for _, bad := range []string{"", "abc", "-1", "0"} {
		if _, err := ParseAmount(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q): expected ErrInvalidAmount, got %v", bad, err)
		}
	}
}

func TestBaseUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("0.000000000000000001")
	units := BaseUnits(amount)
	if units.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("smallest unit mis-scaled: %s", units)
	}
	if !FromBaseUnits(units).Equal(amount) {
		t.Fatalf("round trip lost precision: %s", FromBaseUnits(units))
	}
}
