package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// EventKind is the kind of wallet notification
type EventKind string

const (
	// EventAccountsChanged fires when the exposed account list changes, an empty list means disconnected
	EventAccountsChanged EventKind = "accounts_changed"
	// EventChainChanged fires when the wallet or node switches networks
	EventChainChanged EventKind = "chain_changed"
)

// Event is a wallet notification delivered to subscribers
type Event struct {
	Kind     EventKind
	Accounts []string
	ChainID  *big.Int
}

// Provider is the wallet boundary: account access, transaction approval and change notifications
//
//go:generate mockgen -source=provider.go -destination=../mocks/wallet.go -package=mocks -mock_names=Provider=MockWalletProvider
type Provider interface {
	// RequestAccounts asks the wallet to expose its accounts, blocking until the wallet answers
	RequestAccounts(ctx context.Context) ([]string, error)

	// SignTx asks the wallet owner to approve and sign the transaction
	SignTx(ctx context.Context, account string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)

	// Subscribe delivers wallet events to sink until the subscription is unsubscribed
	Subscribe(sink chan<- Event) event.Subscription

	// Close releases the wallet backend
	Close()
}
