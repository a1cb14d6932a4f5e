package wallet_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayc/incubator/internal/adapter"
	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/mocks"
	"github.com/cayc/incubator/internal/wallet"
)

type chainSequence struct {
	ids []int64
	pos int
}

func (c *chainSequence) ChainID(context.Context) (*big.Int, error) {
	if c.pos >= len(c.ids) {
		return nil, errors.New("node unavailable")
	}
	id := c.ids[c.pos]
	c.pos++
	return big.NewInt(id), nil
}

func drain(ch <-chan wallet.Event) []wallet.Event {
	var out []wallet.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestWatcher_ChainChanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockWalletProvider(ctrl)

	w := wallet.NewWatcher(provider, &chainSequence{ids: []int64{1, 1, 11155111}}, adapter.NewClock(), wallet.WatcherConfig{})
	events := make(chan wallet.Event, 4)
	sub := w.Subscribe(events)
	defer sub.Unsubscribe()

	ctx := context.Background()
	w.Poll(ctx)
	w.Poll(ctx)
	assert.Empty(t, drain(events))

	w.Poll(ctx)
	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, wallet.EventChainChanged, got[0].Kind)
	assert.Equal(t, big.NewInt(11155111), got[0].ChainID)

	// A failed read keeps the last known chain
	w.Poll(ctx)
	assert.Empty(t, drain(events))
}

func TestWatcher_AccountsChanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockWalletProvider(ctrl)

	first := "0x1111111111111111111111111111111111111111"
	second := "0x2222222222222222222222222222222222222222"
	gomock.InOrder(
		provider.EXPECT().RequestAccounts(gomock.Any()).Return([]string{first}, nil),
		provider.EXPECT().RequestAccounts(gomock.Any()).Return([]string{"0x1111111111111111111111111111111111111111"}, nil),
		provider.EXPECT().RequestAccounts(gomock.Any()).Return([]string{second}, nil),
		provider.EXPECT().RequestAccounts(gomock.Any()).Return(nil, domain.ErrNoAccounts),
	)

	w := wallet.NewWatcher(provider, &chainSequence{ids: []int64{1, 1, 1, 1}}, adapter.NewClock(), wallet.WatcherConfig{WatchAccounts: true})
	events := make(chan wallet.Event, 4)
	sub := w.Subscribe(events)
	defer sub.Unsubscribe()

	ctx := context.Background()
	w.Poll(ctx)
	w.Poll(ctx)
	assert.Empty(t, drain(events))

	w.Poll(ctx)
	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, wallet.EventAccountsChanged, got[0].Kind)
	assert.Equal(t, []string{second}, got[0].Accounts)

	w.Poll(ctx)
	got = drain(events)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Accounts)
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockWalletProvider(ctrl)
	clock := mocks.NewMockClock(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)
	clock.EXPECT().After(gomock.Any()).Return((<-chan time.Time)(tick)).AnyTimes()

	w := wallet.NewWatcher(provider, &chainSequence{ids: []int64{1, 1, 1}}, clock, wallet.WatcherConfig{})

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	<-done
}
