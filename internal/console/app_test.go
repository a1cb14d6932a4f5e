package console_test

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayc/incubator/internal/console"
	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/incubation"
	"github.com/cayc/incubator/internal/mocks"
	"github.com/cayc/incubator/internal/session"
	"github.com/cayc/incubator/internal/wallet"
)

const (
	account  = "0x1111111111111111111111111111111111111111"
	contract = "0xfd39CD1F87a237C628C42c0Efde88AC02654B775"
)

type appMocks struct {
	wallet   *mocks.MockWalletProvider
	ledger   *mocks.MockLedgerClient
	resolver *mocks.MockOwnershipResolver
	notifier *mocks.MockNotifier
}

type testApp struct {
	app          *console.App
	store        *session.Store
	orchestrator *incubation.Orchestrator
	out          *bytes.Buffer
	mocks        *appMocks
}

func newTestApp(t *testing.T, input string, closed bool) *testApp {
	ctrl := gomock.NewController(t)
	m := &appMocks{
		wallet:   mocks.NewMockWalletProvider(ctrl),
		ledger:   mocks.NewMockLedgerClient(ctrl),
		resolver: mocks.NewMockOwnershipResolver(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
	}

	out := &bytes.Buffer{}
	term := console.NewTerminal(strings.NewReader(input), out)
	store := session.NewStore()
	orchestrator := incubation.NewOrchestrator(m.ledger, m.wallet, m.notifier, term, incubation.Config{Closed: closed})

	return &testApp{
		app:          console.NewApp(term, store, m.wallet, m.ledger, m.resolver, orchestrator),
		store:        store,
		orchestrator: orchestrator,
		out:          out,
		mocks:        m,
	}
}

func discoveredTokens() []domain.Token {
	return []domain.Token{
		{TokenID: "1", ContractAddress: contract, TokenURI: "https://gateway.pinata.cloud/ipfs/Qm1", Image: "https://gateway.pinata.cloud/ipfs/Qm1.png"},
		{TokenID: "2", ContractAddress: contract, TokenURI: "https://gateway.pinata.cloud/ipfs/Qm2"},
		{TokenID: "3", ContractAddress: contract},
		{TokenID: "4", ContractAddress: contract},
	}
}

// ready connects, opens the rarity collection and loads the discovered tokens
func (ta *testApp) ready(t *testing.T) {
	ctx := context.Background()
	ta.mocks.wallet.EXPECT().RequestAccounts(gomock.Any()).Return([]string{account}, nil)
	ta.mocks.ledger.EXPECT().ChainID(gomock.Any()).Return(big.NewInt(1), nil)
	require.NoError(t, ta.app.Connect(ctx))

	collection, err := ta.app.ChooseCollection(domain.CollectionRarity)
	require.NoError(t, err)

	ta.mocks.resolver.EXPECT().Resolve(gomock.Any(), collection, account).Return(discoveredTokens(), nil)
	require.NoError(t, ta.app.LoadTokens(ctx))
}

func (ta *testApp) selectTokens(t *testing.T, ids ...string) {
	for _, id := range ids {
		require.NoError(t, ta.app.Toggle(id))
	}
}

func TestApp_Connect(t *testing.T) {
	ta := newTestApp(t, "", false)
	ta.mocks.wallet.EXPECT().RequestAccounts(gomock.Any()).Return([]string{account}, nil)
	ta.mocks.ledger.EXPECT().ChainID(gomock.Any()).Return(big.NewInt(1), nil)

	require.NoError(t, ta.app.Connect(context.Background()))

	s := ta.store.State()
	assert.Equal(t, account, s.Account)
	assert.Equal(t, int64(1), s.ChainID.Int64())
	assert.Empty(t, s.Alert)
}

func TestApp_ConnectFailures(t *testing.T) {
	t.Run("wallet refuses", func(t *testing.T) {
		ta := newTestApp(t, "", false)
		ta.mocks.wallet.EXPECT().RequestAccounts(gomock.Any()).Return(nil, errors.New("user rejected"))

		err := ta.app.Connect(context.Background())
		assert.ErrorContains(t, err, "user rejected")
		assert.Equal(t, session.AlertConnectFailed, ta.store.State().Alert)
		assert.False(t, ta.store.State().Connected())
	})

	t.Run("no accounts", func(t *testing.T) {
		ta := newTestApp(t, "", false)
		ta.mocks.wallet.EXPECT().RequestAccounts(gomock.Any()).Return([]string{}, nil)

		err := ta.app.Connect(context.Background())
		assert.ErrorIs(t, err, domain.ErrNoAccounts)
		assert.Equal(t, session.AlertConnectFailed, ta.store.State().Alert)
	})

	t.Run("no wallet configured", func(t *testing.T) {
		store := session.NewStore()
		app := console.NewApp(console.NewTerminal(strings.NewReader(""), &bytes.Buffer{}), store, nil, nil, nil, nil)

		err := app.Connect(context.Background())
		assert.ErrorIs(t, err, domain.ErrWalletUnavailable)
		assert.Equal(t, session.AlertWalletUnavailable, store.State().Alert)
	})
}

func TestApp_ChooseCollection(t *testing.T) {
	ta := newTestApp(t, "", false)

	c, err := ta.app.ChooseCollection(domain.CollectionGorilla)
	require.NoError(t, err)
	assert.Equal(t, "CAYC GORILLA INCUBATION CHAMBER", c.Heading)
	assert.Equal(t, domain.CollectionGorilla, ta.store.State().Collection.Key)

	_, err = ta.app.ChooseCollection("unknown")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestApp_LoadTokens(t *testing.T) {
	t.Run("requires a wallet", func(t *testing.T) {
		ta := newTestApp(t, "", false)
		_, err := ta.app.ChooseCollection(domain.CollectionRarity)
		require.NoError(t, err)

		assert.ErrorIs(t, ta.app.LoadTokens(context.Background()), domain.ErrNoAccounts)
	})

	t.Run("loads tokens", func(t *testing.T) {
		ta := newTestApp(t, "", false)
		ta.ready(t)

		s := ta.store.State()
		assert.False(t, s.Loading)
		assert.Len(t, s.Tokens, 4)
		assert.Contains(t, ta.out.String(), "Reading NFTs available...")
	})

	t.Run("resolver failure", func(t *testing.T) {
		ta := newTestApp(t, "", false)
		ta.mocks.wallet.EXPECT().RequestAccounts(gomock.Any()).Return([]string{account}, nil)
		ta.mocks.ledger.EXPECT().ChainID(gomock.Any()).Return(big.NewInt(1), nil)
		require.NoError(t, ta.app.Connect(context.Background()))
		_, err := ta.app.ChooseCollection(domain.CollectionRarity)
		require.NoError(t, err)
		ta.mocks.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), account).Return(nil, errors.New("rpc down"))

		err = ta.app.LoadTokens(context.Background())
		assert.ErrorContains(t, err, "rpc down")
		assert.Error(t, ta.store.State().LoadErr)
	})
}

func TestApp_Toggle(t *testing.T) {
	ta := newTestApp(t, "", false)
	ta.ready(t)

	ta.selectTokens(t, "1", "2", "3")
	assert.True(t, ta.store.State().Selection.Complete())

	require.NoError(t, ta.app.Toggle("4"))
	assert.Equal(t, session.AlertSelectionFull, ta.store.State().Alert)
	assert.Equal(t, []string{"1", "2", "3"}, ta.store.State().Selection.IDs())

	assert.ErrorIs(t, ta.app.Toggle("99"), domain.ErrTokenNotDiscovered)
}

func TestApp_ChooseTokens(t *testing.T) {
	ta := newTestApp(t, "1\nincubate\n2\n3\nINCUBATE\n", false)
	ta.ready(t)

	proceed, err := ta.app.ChooseTokens(context.Background())
	require.NoError(t, err)
	assert.True(t, proceed)
	assert.Equal(t, []string{"1", "2", "3"}, ta.store.State().Selection.IDs())
}

func TestApp_Incubate_AllSucceeded(t *testing.T) {
	ta := newTestApp(t, "OK\n", false)
	ta.ready(t)
	unfollow := console.NewTerminal(strings.NewReader(""), ta.out).Follow(ta.store)
	defer unfollow()
	ta.selectTokens(t, "1", "2", "3")

	for _, id := range []string{"1", "2", "3"} {
		ta.mocks.ledger.EXPECT().
			ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, id).
			Return("0xhash"+id, nil)
	}
	ta.mocks.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, ta.app.Incubate(context.Background()))

	s := ta.store.State()
	assert.Equal(t, domain.IncubationStateAllSucceeded, s.IncubationState)
	assert.Equal(t, "All selected NFTs transferred successfully!\nTransferred token IDs: 1, 2, 3", s.Status)
	assert.Len(t, s.Tokens, 1)
	assert.Zero(t, s.Selection.Len())
	assert.Contains(t, ta.out.String(), "STEPS TO INCUBATE")
	assert.Contains(t, ta.out.String(), "Transferring your selected NFTs...")
}

func TestApp_Incubate_NotificationFailed(t *testing.T) {
	ta := newTestApp(t, "ok\n", false)
	ta.ready(t)
	ta.selectTokens(t, "1", "2", "3")

	ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, gomock.Any()).
		Return("0xhash", nil).Times(3)
	ta.mocks.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("relay unavailable"))

	require.NoError(t, ta.app.Incubate(context.Background()))

	s := ta.store.State()
	assert.Equal(t, domain.IncubationStateAllSucceeded, s.IncubationState)
	assert.True(t, strings.HasSuffix(s.Status, incubation.NotificationFailedNote))
}

func TestApp_Incubate_RetrySucceeds(t *testing.T) {
	ta := newTestApp(t, "OK\nretry\n", false)
	ta.ready(t)
	ta.selectTokens(t, "1", "2", "3")

	gomock.InOrder(
		ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "1").Return("0x1", nil),
		ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "2").Return("", errors.New("insufficient funds")),
		ta.mocks.ledger.EXPECT().ERC721OwnerOf(gomock.Any(), contract, "2").Return(account, nil),
		ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "3").Return("0x3", nil),
		ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "2").Return("0x2", nil),
	)
	ta.mocks.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, ta.app.Incubate(context.Background()))

	s := ta.store.State()
	assert.Equal(t, domain.IncubationStateAllSucceeded, s.IncubationState)
	assert.Equal(t, "All transfers succeeded after retry!\nTransferred token IDs: 1, 2, 3", s.Status)
	assert.Contains(t, ta.out.String(), "The following token IDs failed to transfer: 2.")
}

func TestApp_Incubate_RetryCanceled(t *testing.T) {
	ta := newTestApp(t, "OK\ncancel\n", false)
	ta.ready(t)
	ta.selectTokens(t, "1", "2", "3")

	ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "1").Return("0x1", nil)
	ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "2").Return("", errors.New("rejected"))
	ta.mocks.ledger.EXPECT().ERC721OwnerOf(gomock.Any(), contract, "2").Return(account, nil)
	ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "3").Return("", errors.New("rejected"))
	ta.mocks.ledger.EXPECT().ERC721OwnerOf(gomock.Any(), contract, "3").Return(account, nil)

	require.NoError(t, ta.app.Incubate(context.Background()))

	s := ta.store.State()
	assert.Equal(t, domain.IncubationStateIdle, s.IncubationState)
	assert.False(t, s.RetryPending())
	assert.Contains(t, s.Status, "Succeeded: 1\nFailed: 2, 3")
	// The transferred token is gone, the failed ones stay selectable
	assert.Len(t, s.Tokens, 3)
}

func TestApp_Incubate_Declined(t *testing.T) {
	ta := newTestApp(t, "CANCEL\n", false)
	ta.ready(t)
	ta.selectTokens(t, "1", "2", "3")

	err := ta.app.Incubate(context.Background())
	assert.ErrorIs(t, err, domain.ErrConfirmationDeclined)

	s := ta.store.State()
	assert.Equal(t, domain.IncubationStateIdle, s.IncubationState)
	assert.Empty(t, s.Alert)
	assert.Equal(t, 3, s.Selection.Len())
}

func TestApp_Incubate_Guards(t *testing.T) {
	t.Run("incomplete selection", func(t *testing.T) {
		ta := newTestApp(t, "", false)
		ta.ready(t)
		ta.selectTokens(t, "1", "2")

		assert.ErrorIs(t, ta.app.Incubate(context.Background()), domain.ErrSelectionIncomplete)
		assert.Equal(t, session.AlertSelectionIncomplete, ta.store.State().Alert)
	})

	t.Run("closed", func(t *testing.T) {
		ta := newTestApp(t, "", true)
		ta.ready(t)
		ta.selectTokens(t, "1", "2", "3")

		assert.ErrorIs(t, ta.app.Incubate(context.Background()), domain.ErrIncubationClosed)
		s := ta.store.State()
		assert.Equal(t, domain.IncubationStateIdle, s.IncubationState)
		assert.Equal(t, domain.ErrIncubationClosed.Error(), s.Alert)
	})
}

type feedSource struct {
	feed event.Feed
}

func (f *feedSource) Subscribe(sink chan<- wallet.Event) event.Subscription {
	return f.feed.Subscribe(sink)
}

func TestApp_Watch(t *testing.T) {
	ta := newTestApp(t, "", false)
	ta.ready(t)

	src := &feedSource{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ta.app.Watch(ctx, src)
		close(done)
	}()

	// Nothing is delivered until the watcher has subscribed
	assert.Eventually(t, func() bool {
		return src.feed.Send(wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: []string{}}) > 0
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return ta.store.State().Alert == session.AlertWalletDisconnected
	}, time.Second, 10*time.Millisecond)
	assert.False(t, ta.store.State().Connected())

	src.feed.Send(wallet.Event{Kind: wallet.EventChainChanged, ChainID: big.NewInt(5)})
	assert.Eventually(t, func() bool {
		s := ta.store.State()
		return s.ChainID != nil && s.ChainID.Int64() == 5 && s.Collection == nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestApp_WalletChangeAbandonsPendingRetry(t *testing.T) {
	tests := []struct {
		name  string
		event wallet.Event
	}{
		{
			name:  "account switched",
			event: wallet.Event{Kind: wallet.EventAccountsChanged, Accounts: []string{"0x2222222222222222222222222222222222222222"}},
		},
		{
			name:  "chain switched",
			event: wallet.Event{Kind: wallet.EventChainChanged, ChainID: big.NewInt(11155111)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Input ends at the retry prompt, leaving the partial transfer pending
			ta := newTestApp(t, "OK\n", false)
			ta.ready(t)
			ta.selectTokens(t, "1", "2", "3")

			ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "1").Return("0x1", nil)
			ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "2").Return("0x2", nil)
			ta.mocks.ledger.EXPECT().ERC721TransferFrom(gomock.Any(), gomock.Any(), contract, account, domain.StagingAddress, "3").Return("", errors.New("rejected"))
			ta.mocks.ledger.EXPECT().ERC721OwnerOf(gomock.Any(), contract, "3").Return(account, nil)

			assert.Error(t, ta.app.Incubate(context.Background()))
			require.True(t, ta.store.State().RetryPending())
			_, pending := ta.orchestrator.Pending()
			require.True(t, pending)

			src := &feedSource{}
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				ta.app.Watch(ctx, src)
				close(done)
			}()

			assert.Eventually(t, func() bool {
				return src.feed.Send(tt.event) > 0
			}, time.Second, 10*time.Millisecond)
			assert.Eventually(t, func() bool {
				_, pending := ta.orchestrator.Pending()
				return !pending
			}, time.Second, 10*time.Millisecond)
			assert.False(t, ta.store.State().RetryPending())

			cancel()
			<-done

			// A new incubation is no longer blocked by the abandoned retry
			_, err := ta.orchestrator.Retry(context.Background())
			assert.ErrorIs(t, err, domain.ErrNoPendingRetry)
		})
	}
}
