package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/incubation"
	"github.com/cayc/incubator/internal/logger"
	"github.com/cayc/incubator/internal/ownership"
	"github.com/cayc/incubator/internal/session"
	"github.com/cayc/incubator/internal/wallet"
)

// EventSource delivers wallet events, implemented by wallet providers and watchers
type EventSource interface {
	Subscribe(sink chan<- wallet.Event) event.Subscription
}

// App drives one incubation session from the terminal
type App struct {
	term         *Terminal
	store        *session.Store
	wallet       wallet.Provider
	chain        wallet.ChainIDSource
	resolver     ownership.Resolver
	orchestrator *incubation.Orchestrator
}

// NewApp creates the console controller. The terminal must be the orchestrator's confirmer.
func NewApp(term *Terminal, store *session.Store, provider wallet.Provider, chain wallet.ChainIDSource, resolver ownership.Resolver, orchestrator *incubation.Orchestrator) *App {
	return &App{
		term:         term,
		store:        store,
		wallet:       provider,
		chain:        chain,
		resolver:     resolver,
		orchestrator: orchestrator,
	}
}

// State returns the current session snapshot
func (a *App) State() session.State {
	return a.store.State()
}

// Menu prints the collection menu
func (a *App) Menu() {
	a.term.RenderMenu(domain.Collections(), a.orchestrator.Closed())
}

// Connect requests the wallet accounts and records the first one
func (a *App) Connect(ctx context.Context) error {
	if a.wallet == nil {
		a.store.Dispatch(session.AlertRaised{Alert: session.AlertWalletUnavailable})
		return domain.ErrWalletUnavailable
	}

	accounts, err := a.wallet.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = domain.ErrNoAccounts
	}
	if err != nil {
		logger.WarnCtx(ctx, "failed to connect wallet", zap.Error(err))
		a.store.Dispatch(session.AlertRaised{Alert: session.AlertConnectFailed})
		return fmt.Errorf("failed to connect wallet: %w", err)
	}

	chainID, err := a.chain.ChainID(ctx)
	if err != nil {
		a.store.Dispatch(session.AlertRaised{Alert: session.AlertConnectFailed})
		return fmt.Errorf("failed to read chain id: %w", err)
	}

	a.store.Dispatch(session.Connected{Account: accounts[0], ChainID: chainID})
	logger.InfoCtx(ctx, "wallet connected",
		zap.String("account", accounts[0]),
		zap.String("chain", string(domain.ChainFromID(chainID))))
	return nil
}

// ChooseCollection opens an active collection
func (a *App) ChooseCollection(key domain.CollectionKey) (domain.Collection, error) {
	c, err := domain.CollectionByKey(key)
	if err != nil {
		return domain.Collection{}, err
	}
	if !c.Active() {
		return domain.Collection{}, domain.ErrCollectionInactive
	}
	a.store.Dispatch(session.CollectionChosen{Collection: c})
	a.dropStalePending()
	return c, nil
}

// LoadTokens discovers the owned tokens of the open collection
func (a *App) LoadTokens(ctx context.Context) error {
	s := a.store.State()
	if !s.Connected() {
		return domain.ErrNoAccounts
	}
	if s.Collection == nil {
		return domain.ErrCollectionNotFound
	}

	a.store.Dispatch(session.LoadingStarted{})
	a.term.RenderTokens(a.store.State())

	tokens, err := a.resolver.Resolve(ctx, *s.Collection, s.Account)
	a.store.Dispatch(session.TokensLoaded{
		Account:    s.Account,
		Collection: s.Collection.Key,
		Tokens:     tokens,
		Err:        err,
	})
	if err != nil {
		return fmt.Errorf("failed to load tokens: %w", err)
	}
	return nil
}

// Toggle selects or deselects a discovered token by number or contract:number
func (a *App) Toggle(query string) error {
	tok, err := domain.FindToken(a.store.State().Tokens, query)
	if err != nil {
		return err
	}
	a.store.Dispatch(session.SelectionToggled{Ref: tok.Ref()})
	return nil
}

// ChooseTokens lets the owner toggle tokens until exactly three are selected and INCUBATE is entered.
// It returns false when the owner quits.
func (a *App) ChooseTokens(ctx context.Context) (bool, error) {
	for {
		a.term.RenderTokens(a.store.State())
		if len(a.store.State().Tokens) == 0 {
			return false, nil
		}

		answer, err := a.term.Ask(ctx, "Token ID to select, INCUBATE to continue, QUIT to exit: ")
		if err != nil {
			return false, err
		}

		switch strings.ToLower(answer) {
		case "":
			continue
		case "quit", "q", "cancel":
			return false, nil
		case "incubate":
			if a.store.State().Selection.Complete() {
				return true, nil
			}
			a.store.Dispatch(session.AlertRaised{Alert: session.AlertSelectionIncomplete})
			continue
		}

		a.store.Dispatch(session.AlertDismissed{})
		if err := a.Toggle(answer); err != nil {
			a.term.Printf("%v\n", err)
		}
	}
}

// Incubate runs the transfer workflow for the current selection and walks
// the owner through retries until every token moved or the retry is canceled
func (a *App) Incubate(ctx context.Context) error {
	s := a.store.State()
	if s.Collection == nil {
		return domain.ErrCollectionNotFound
	}
	if !s.Selection.Complete() {
		a.store.Dispatch(session.AlertRaised{Alert: session.AlertSelectionIncomplete})
		return domain.ErrSelectionIncomplete
	}
	a.dropStalePending()

	a.store.Dispatch(session.TransferStarted{})
	result, err := a.orchestrator.Incubate(ctx, s.Account, *s.Collection, s.Selection, s.Tokens)
	if err != nil {
		a.abort(err)
		return err
	}
	a.finish(result)

	for {
		st := a.store.State()
		if !st.RetryPending() {
			// The session may have dropped the outcome on an account or chain change
			a.dropStalePending()
			return nil
		}

		retry, err := a.term.AskRetry(ctx, *st.Outcome)
		if err != nil {
			return err
		}
		if !a.store.State().RetryPending() {
			a.dropStalePending()
			return nil
		}

		if !retry {
			result, err := a.orchestrator.CancelRetry()
			if err != nil {
				return err
			}
			a.store.Dispatch(session.RetryCanceled{Message: result.Message})
			return nil
		}

		a.store.Dispatch(session.TransferStarted{})
		result, err := a.orchestrator.Retry(ctx)
		if err != nil {
			a.abort(err)
			return err
		}
		a.finish(result)
	}
}

// dropStalePending abandons an orchestrator retry the session no longer offers
func (a *App) dropStalePending() {
	if a.store.State().RetryPending() {
		return
	}
	if _, ok := a.orchestrator.Pending(); !ok {
		return
	}
	result, err := a.orchestrator.CancelRetry()
	if err != nil {
		logger.Warn("failed to abandon pending retry", zap.Error(err))
		return
	}
	logger.Info("pending retry abandoned", zap.Strings("failed", domain.TokenIDs(result.Outcome.Failed)))
}

func (a *App) abort(err error) {
	alert := ""
	if !errors.Is(err, domain.ErrConfirmationDeclined) {
		alert = err.Error()
	}
	a.store.Dispatch(session.TransferAborted{Alert: alert})
}

func (a *App) finish(result incubation.Result) {
	a.store.Dispatch(session.TransferFinished{
		State:   result.State,
		Outcome: result.Outcome,
		Message: result.Message,
	})
	if result.NotificationFailed {
		a.store.Dispatch(session.StatusNoteAppended{Note: incubation.NotificationFailedNote})
	}
}

// Watch forwards wallet events into the session until the context is canceled
func (a *App) Watch(ctx context.Context, sources ...EventSource) {
	events := make(chan wallet.Event, 16)
	subs := make([]event.Subscription, 0, len(sources))
	for _, src := range sources {
		subs = append(subs, src.Subscribe(events))
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			a.handle(ctx, ev)
		}
	}
}

func (a *App) handle(ctx context.Context, ev wallet.Event) {
	switch ev.Kind {
	case wallet.EventAccountsChanged:
		logger.InfoCtx(ctx, "wallet accounts changed", zap.Strings("accounts", ev.Accounts))
		a.store.Dispatch(session.AccountsChanged{Accounts: ev.Accounts})
	case wallet.EventChainChanged:
		logger.InfoCtx(ctx, "wallet chain changed", zap.Stringer("chainId", ev.ChainID))
		a.store.Dispatch(session.ChainChanged{ChainID: ev.ChainID})
	default:
		return
	}
	a.dropStalePending()
}
