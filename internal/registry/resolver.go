package registry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dialpay/dial_pay/internal/chain"
)

// ErrNotRegistered indicates no registration exists for the queried identity
// under any candidate owner. Terminal and user-facing, not retryable.
var ErrNotRegistered = errors.New("recipient not registered")

// Resolver maps identity hashes to wallet addresses by probing the keyed
// store across candidate publisher owners with an ordered strategy chain.
type Resolver struct {
	store    chain.Store
	schemaID string
	owners   []string
	cache    *Cache
	logger   *slog.Logger

	strategies []strategy
}

// NewResolver builds a resolver over the registration schema. cache may be
// nil to disable caching.
func NewResolver(store chain.Store, schemaID string, owners []string, cache *Cache, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		schemaID: schemaID,
		owners:   owners,
		cache:    cache,
		logger:   logger,
		strategies: []strategy{
			directLookup{store: store, schemaID: schemaID},
			bulkScan{store: store, schemaID: schemaID},
		},
	}
}

// strategy is one named lookup approach. found=false with err=nil means the
// owner simply has no matching data; err is a transient per-owner failure
// that must not abort the chain.
type strategy interface {
	name() string
	lookup(ctx context.Context, owner, identityHash string) (Registration, bool, error)
}

// Resolve returns the registration for an identity hash, trying each strategy
// across every candidate owner in order. One failing owner never blocks the
// rest.
func (r *Resolver) Resolve(ctx context.Context, identityHash string) (Registration, error) {
	if cached, ok := r.cache.Get(ctx, identityHash); ok {
		return cached, nil
	}

	for _, strat := range r.strategies {
		for _, owner := range r.owners {
			reg, found, err := strat.lookup(ctx, owner, identityHash)
			if err != nil {
				r.logger.Debug("registry lookup failed",
					"strategy", strat.name(), "owner", owner, "error", err)
				continue
			}
			if !found {
				continue
			}
			r.cache.Put(ctx, reg)
			return reg, nil
		}
	}
	return Registration{}, ErrNotRegistered
}

// ReverseLookup finds the identity hash registered for a wallet address by
// scanning every owner's registrations. The store has no reverse index, so
// this is a full scan.
func (r *Resolver) ReverseLookup(ctx context.Context, walletAddress string) (string, error) {
	for _, owner := range r.owners {
		entries, err := r.store.GetAllForOwner(ctx, r.schemaID, owner)
		if err != nil {
			r.logger.Debug("registry reverse scan failed", "owner", owner, "error", err)
			continue
		}
		for _, e := range entries {
			reg, err := DecodeRegistration(e)
			if err != nil {
				continue
			}
			if reg.WalletAddress == walletAddress {
				return reg.IdentityHash, nil
			}
		}
	}
	return "", ErrNotRegistered
}

type directLookup struct {
	store    chain.Store
	schemaID string
}

func (directLookup) name() string { return "direct" }

func (d directLookup) lookup(ctx context.Context, owner, identityHash string) (Registration, bool, error) {
	entries, err := d.store.GetByKey(ctx, d.schemaID, owner, identityHash)
	if err != nil {
		return Registration{}, false, err
	}
	for _, e := range entries {
		reg, err := DecodeRegistration(e)
		if err != nil {
			continue
		}
		// A store may answer an unknown key with stale data instead of an
		// empty result; the embedded hash is the authority.
		if reg.IdentityHash != identityHash {
			continue
		}
		return reg, true, nil
	}
	return Registration{}, false, nil
}

type bulkScan struct {
	store    chain.Store
	schemaID string
}

func (bulkScan) name() string { return "bulk-scan" }

func (b bulkScan) lookup(ctx context.Context, owner, identityHash string) (Registration, bool, error) {
	entries, err := b.store.GetAllForOwner(ctx, b.schemaID, owner)
	if err != nil {
		return Registration{}, false, err
	}
	for _, e := range entries {
		reg, err := DecodeRegistration(e)
		if err != nil {
			continue
		}
		if reg.IdentityHash == identityHash {
			return reg, true, nil
		}
	}
	return Registration{}, false, nil
}
