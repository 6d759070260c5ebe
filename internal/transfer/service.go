package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dialpay/dial_pay/internal/notify"
	"github.com/dialpay/dial_pay/internal/phonehash"
	"github.com/dialpay/dial_pay/internal/record"
	"github.com/dialpay/dial_pay/internal/registry"
	"github.com/dialpay/dial_pay/internal/settlement"
)

// ErrInvalidInput rejects a request before any side effect.
var ErrInvalidInput = errors.New("invalid transfer input")

// Input captures one transfer request from the messaging layer.
type Input struct {
	ToPhone   string
	FromPhone string
	Amount    string
	Token     string
}

// Outcome reports a settled transfer. RecordingFailed and NotificationFailed
// are soft warnings: the value moved regardless.
type Outcome struct {
	TxID               string
	ToAddress          string
	Amount             string
	Token              string
	RecordingFailed    bool
	NotificationFailed bool
}

// Warnings renders the soft-failure flags for the caller.
func (o Outcome) Warnings() []string {
	var w []string
	if o.RecordingFailed {
		w = append(w, "transfer completed but history entry could not be written")
	}
	if o.NotificationFailed {
		w = append(w, "transfer completed but the recipient may not be auto-notified")
	}
	return w
}

// Service runs the full settlement pipeline: resolve the recipient, move the
// value, and only after confirmed success record history and emit the
// notification. Each request is sequential; nothing here is attempted before
// the previous step's confirmed outcome.
type Service struct {
	hasher   *phonehash.Hasher
	resolver *registry.Resolver
	executor *settlement.Executor
	recorder *record.Recorder
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewService wires the settlement pipeline.
func NewService(hasher *phonehash.Hasher, resolver *registry.Resolver, executor *settlement.Executor,
	recorder *record.Recorder, notifier *notify.Notifier, logger *slog.Logger) *Service {
	return &Service{
		hasher:   hasher,
		resolver: resolver,
		executor: executor,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleTransfer settles one phone-to-phone transfer.
func (s *Service) HandleTransfer(ctx context.Context, in Input) (Outcome, error) {
	if strings.TrimSpace(in.ToPhone) == "" {
		return Outcome{}, fmt.Errorf("%w: missing recipient phone", ErrInvalidInput)
	}
	amount, err := settlement.ParseAmount(in.Amount)
	if err != nil {
		return Outcome{}, err
	}

	toHash := s.hasher.HashPhone(in.ToPhone)
	fromHash := phonehash.ZeroHash
	if strings.TrimSpace(in.FromPhone) != "" {
		fromHash = s.hasher.HashPhone(in.FromPhone)
	}

	reg, err := s.resolver.Resolve(ctx, toHash)
	if err != nil {
		return Outcome{}, err
	}

	res, err := s.executor.Execute(ctx, reg.WalletAddress, amount, in.Token)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		TxID:      res.TxID,
		ToAddress: reg.WalletAddress,
		Amount:    amount.String(),
		Token:     strings.ToUpper(in.Token),
	}

	rec := record.Record{
		FromIdentityHash: fromHash,
		ToIdentityHash:   toHash,
		FromPhone:        s.hasher.Normalize(in.FromPhone),
		ToPhone:          s.hasher.Normalize(in.ToPhone),
		Amount:           settlement.BaseUnits(amount),
		Token:            outcome.Token,
		TxID:             res.TxID,
		Timestamp:        time.Now().UTC(),
	}

	if err := s.recorder.Record(ctx, rec); err != nil {
		outcome.RecordingFailed = true
	}
	if err := s.notifier.Notify(ctx, rec); err != nil {
		s.logger.Warn("transfer notification not emitted", "tx_id", res.TxID, "error", err)
		outcome.NotificationFailed = true
	}

	return outcome, nil
}
