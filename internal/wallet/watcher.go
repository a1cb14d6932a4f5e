package wallet

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/adapter"
	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/logger"
)

// ChainIDSource reports the chain the client is connected to
type ChainIDSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// WatcherConfig controls the polling of wallet state
type WatcherConfig struct {
	Interval time.Duration
	// WatchAccounts polls RequestAccounts as well, for backends without native account events
	WatchAccounts bool
}

// Watcher polls the chain ID, and optionally the accounts, and emits change events
type Watcher struct {
	provider Provider
	chain    ChainIDSource
	clock    adapter.Clock
	cfg      WatcherConfig
	feed     event.Feed

	initialized  bool
	lastChainID  *big.Int
	lastAccounts []string
}

// NewWatcher creates a watcher; the first poll only records the baseline
func NewWatcher(provider Provider, chain ChainIDSource, clock adapter.Clock, cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Watcher{
		provider: provider,
		chain:    chain,
		clock:    clock,
		cfg:      cfg,
	}
}

// Subscribe delivers change events to sink
func (w *Watcher) Subscribe(sink chan<- Event) event.Subscription {
	return w.feed.Subscribe(sink)
}

// Run polls until the context is canceled
func (w *Watcher) Run(ctx context.Context) {
	for {
		w.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(w.cfg.Interval):
		}
	}
}

// Poll performs a single check and emits events for whatever changed
func (w *Watcher) Poll(ctx context.Context) {
	chainID, err := w.chain.ChainID(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "failed to read chain id", zap.Error(err))
	} else {
		if w.initialized && w.lastChainID != nil && w.lastChainID.Cmp(chainID) != 0 {
			w.feed.Send(Event{Kind: EventChainChanged, ChainID: new(big.Int).Set(chainID)})
		}
		w.lastChainID = chainID
	}

	if w.cfg.WatchAccounts {
		accounts, err := w.provider.RequestAccounts(ctx)
		switch {
		case errors.Is(err, domain.ErrNoAccounts):
			accounts = nil
		case err != nil:
			logger.WarnCtx(ctx, "failed to read wallet accounts", zap.Error(err))
			w.initialized = true
			return
		}

		if w.initialized && !sameAccounts(w.lastAccounts, accounts) {
			w.feed.Send(Event{Kind: EventAccountsChanged, Accounts: accounts})
		}
		w.lastAccounts = accounts
	}

	w.initialized = true
}

func sameAccounts(a, b []string) bool {
	return slices.EqualFunc(a, b, func(x, y string) bool {
		return strings.EqualFold(x, y)
	})
}
